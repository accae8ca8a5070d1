package classifier

import (
	"regexp"
	"strings"
	"time"
)

var occurredAtRules = []Rule{
	NewPatternRule("occurred_at", `(?i)Occurred\s*At\s*[:\-]\s*([^\n]+)`),
	NewPatternRule("event_time", `(?i)Event(?:\s*Time)?\s*[:\-]\s*([^\n]+)`),
	NewPatternRule("date", `(?i)\bDate\s*[:\-]\s*([^\n]+)`),
	NewPatternRule("timestamp", `(?i)\bTimestamp\s*[:\-]\s*([^\n]+)`),
}

var occurredAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

var trailingZone = regexp.MustCompile(`(?i)\s+(UTC|GMT|Z)$`)

// ExtractOccurredAt reads the first labeled timestamp line and parses it as UTC. Values that
// do not parse are ignored.
func ExtractOccurredAt(text string) *time.Time {
	for _, rule := range occurredAtRules {
		raw, ok := rule.Match(text)
		if !ok {
			continue
		}
		if t, ok := parseLooseTime(raw); ok {
			return &t
		}
	}
	return nil
}

func parseLooseTime(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	candidates := []string{value}
	if stripped := trailingZone.ReplaceAllString(value, ""); stripped != value {
		candidates = append(candidates, stripped)
	}
	for _, candidate := range candidates {
		for _, layout := range occurredAtLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
