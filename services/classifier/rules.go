package classifier

import (
	"regexp"
	"strings"
)

// Rule extracts one identifier from classifier text. Rules are evaluated in order and the
// first match wins.
type Rule interface {
	Name() string
	Match(text string) (string, bool)
}

type patternRule struct {
	name string
	re   *regexp.Regexp
}

// NewPatternRule builds a rule whose first capture group is the extracted value.
func NewPatternRule(name, pattern string) Rule {
	return &patternRule{name: name, re: regexp.MustCompile(pattern)}
}

func (r *patternRule) Name() string {
	return r.name
}

func (r *patternRule) Match(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	value := strings.TrimSpace(m[1])
	if value == "" {
		return "", false
	}
	return value, true
}

func DefaultDriverRules() []Rule {
	return []Rule{
		NewPatternRule("driver_id", `(?i)driver[\s:_-]*id\b[\s:_-]*([A-Za-z0-9\-]+)`),
		NewPatternRule("driver_hash", `(?i)driver[\s:_-]*#\s*([A-Za-z0-9\-]+)`),
		NewPatternRule("did", `(?i)\bDID\s*[:#-]\s*([A-Za-z0-9\-]{3,})\b`),
	}
}

func DefaultVehicleRules() []Rule {
	return []Rule{
		NewPatternRule("vehicle_no", `(?i)vehicle[\s:_-]*no\b[\s:_-]*([A-Za-z0-9\-]+)`),
		NewPatternRule("vehicle_number", `(?i)vehicle[\s:_-]*number[\s:_-]*([A-Za-z0-9\-]+)`),
		NewPatternRule("vrn", `(?i)\bVRN\s*[:#-]\s*([A-Za-z0-9\-]{3,})\b`),
	}
}

func firstMatch(rules []Rule, text string) (value string, rule string) {
	for _, r := range rules {
		if v, ok := r.Match(text); ok {
			return v, r.Name()
		}
	}
	return "", ""
}

// FallbackRule matches free text of the form "<Name> (<Id>) driving".
type FallbackRule struct {
	re *regexp.Regexp
}

type FallbackMatch struct {
	DriverName string
	DriverID   string
}

var daPrefix = regexp.MustCompile(`(?i)^\s*DA\s+`)

func NewFallbackRule() *FallbackRule {
	return &FallbackRule{
		re: regexp.MustCompile(`(?i)\b([A-Z][A-Za-z .'-]+)\s*\(([A-Za-z0-9._-]{6,})\)\s+driving\b`),
	}
}

func (f *FallbackRule) Match(text string) (FallbackMatch, bool) {
	m := f.re.FindStringSubmatch(text)
	if len(m) < 3 {
		return FallbackMatch{}, false
	}
	name := strings.TrimSpace(daPrefix.ReplaceAllString(strings.TrimSpace(m[1]), ""))
	return FallbackMatch{
		DriverName: name,
		DriverID:   strings.TrimSpace(m[2]),
	}, true
}

// a bare space after VIN only counts when the value carries a digit, so "VIN number" is not a VIN
var vinPattern = regexp.MustCompile(`(?i)\bVIN(?:\s*[#:]\s*([A-Z0-9]+)|\s+([A-Z0-9]*[0-9][A-Z0-9]*))\b`)

// ExtractVIN returns the uppercased VIN following a "VIN" label.
func ExtractVIN(text string) string {
	m := vinPattern.FindStringSubmatch(text)
	if len(m) < 3 {
		return ""
	}
	if m[1] != "" {
		return strings.ToUpper(m[1])
	}
	return strings.ToUpper(m[2])
}
