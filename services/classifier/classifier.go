package classifier

import (
	"regexp"
	"strings"
	"time"

	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/utils"
)

const (
	maxTextUsed   = 4000
	maxRawExcerpt = 500
)

type Result struct {
	DriverExternalID string
	VehicleNumber    string
	DriverName       string
	Categories       []enum.ViolationCategory
	VIN              string
	OccurredAt       *time.Time
	// DriverRule names the rule that produced DriverExternalID.
	DriverRule  string
	VehicleRule string
	TextUsed    string
	RawExcerpt  string
}

func (r Result) HasDriverReference() bool {
	return r.DriverExternalID != "" || r.VehicleNumber != ""
}

func (r Result) HasCategories() bool {
	return len(r.Categories) > 0
}

func (r Result) HasCategory(category enum.ViolationCategory) bool {
	for _, c := range r.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Extraction is the JSON form stored on the inbound message.
func (r Result) Extraction() map[string]interface{} {
	categories := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		categories = append(categories, c.String())
	}
	out := map[string]interface{}{
		"driverExternalId": r.DriverExternalID,
		"vehicleNumber":    r.VehicleNumber,
		"violationTypes":   categories,
	}
	if r.DriverName != "" {
		out["driverName"] = r.DriverName
	}
	if r.VIN != "" {
		out["vin"] = r.VIN
	}
	if r.OccurredAt != nil {
		out["occurredAt"] = r.OccurredAt.Format(time.RFC3339)
	}
	if r.DriverRule != "" {
		out["driverRule"] = r.DriverRule
	}
	return out
}

type Classifier struct {
	driverRules  []Rule
	vehicleRules []Rule
	fallback     *FallbackRule
	guard        *regexp.Regexp
	categories   []categoryMatcher
}

type Option func(*options)

type options struct {
	driverRules  []Rule
	vehicleRules []Rule
	keywords     KeywordMap
}

func WithDriverRules(rules ...Rule) Option {
	return func(o *options) { o.driverRules = rules }
}

func WithVehicleRules(rules ...Rule) Option {
	return func(o *options) { o.vehicleRules = rules }
}

func WithKeywords(keywords KeywordMap) Option {
	return func(o *options) { o.keywords = keywords }
}

func New(opts ...Option) *Classifier {
	o := &options{
		driverRules:  DefaultDriverRules(),
		vehicleRules: DefaultVehicleRules(),
		keywords:     DefaultKeywordMap(),
	}
	for _, opt := range opts {
		opt(o)
	}

	guard, matchers := compileKeywords(o.keywords)
	return &Classifier{
		driverRules:  o.driverRules,
		vehicleRules: o.vehicleRules,
		fallback:     NewFallbackRule(),
		guard:        guard,
		categories:   matchers,
	}
}

var defaultClassifier = New()

// Classify runs the default rule set.
func Classify(subject, body string) Result {
	return defaultClassifier.Classify(subject, body)
}

// Classify is pure: the same subject and body always yield the same Result.
func (c *Classifier) Classify(subject, body string) Result {
	original := subject + "\n" + body
	lower := strings.ToLower(original)

	result := Result{
		TextUsed:   utils.Truncate(original, maxTextUsed),
		RawExcerpt: utils.Truncate(original, maxRawExcerpt),
		Categories: []enum.ViolationCategory{},
	}

	if v, rule := firstMatch(c.driverRules, lower); v != "" {
		result.DriverExternalID = strings.ToUpper(v)
		result.DriverRule = rule
	}
	if v, rule := firstMatch(c.vehicleRules, lower); v != "" {
		result.VehicleNumber = strings.ToUpper(v)
		result.VehicleRule = rule
	}
	if result.DriverExternalID == "" {
		if m, ok := c.fallback.Match(original); ok {
			result.DriverExternalID = strings.ToUpper(m.DriverID)
			result.DriverName = m.DriverName
			result.DriverRule = "fallback_driving"
		}
	}

	result.VIN = ExtractVIN(original)
	result.OccurredAt = ExtractOccurredAt(original)
	result.Categories = c.matchCategories(lower)

	return result
}

func (c *Classifier) matchCategories(lower string) []enum.ViolationCategory {
	found := []enum.ViolationCategory{}
	if c.guard != nil && c.guard.MatchString(lower) {
		for _, m := range c.categories {
			if m.re.MatchString(lower) {
				found = append(found, m.category)
			}
		}
	}
	if len(found) == 0 && genericIncident.MatchString(lower) {
		found = append(found, enum.ViolationOther)
	}
	return found
}
