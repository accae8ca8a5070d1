package classifier

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/violationstack/internal/enum"
)

func TestClassify_DriverIdOverspeedingVin(t *testing.T) {
	result := Classify("Safety Alert", "Driver ID: DRV-1001 was flagged for overspeeding near the depot. VIN# 1A2B3C")

	assert.Equal(t, "DRV-1001", result.DriverExternalID)
	assert.Equal(t, []enum.ViolationCategory{enum.ViolationOverSpeeding}, result.Categories)
	assert.Equal(t, "1A2B3C", result.VIN)
	assert.Equal(t, "driver_id", result.DriverRule)
	assert.True(t, result.HasDriverReference())
}

func TestClassify_NoKeywords(t *testing.T) {
	result := Classify("Weekly newsletter", "Driver ID: DRV-1001 completed all deliveries on time.")

	assert.Empty(t, result.Categories)
	assert.False(t, result.HasCategories())
	assert.Equal(t, "DRV-1001", result.DriverExternalID)
}

func TestClassify_GenericIncidentFallsBackToOther(t *testing.T) {
	result := Classify("Incident report", "Driver # X-77 was involved in an incident at the gate.")

	assert.Equal(t, []enum.ViolationCategory{enum.ViolationOther}, result.Categories)
	assert.Equal(t, "X-77", result.DriverExternalID)
	assert.Equal(t, "driver_hash", result.DriverRule)
}

func TestClassify_OtherNeverAddedWhenKeywordMatched(t *testing.T) {
	result := Classify("Violation notice", "Seat belt violation recorded for Driver ID: D-1.")

	assert.Equal(t, []enum.ViolationCategory{enum.ViolationSeatBelt}, result.Categories)
	assert.False(t, result.HasCategory(enum.ViolationOther))
}

func TestClassify_MultipleCategoriesInCanonicalOrder(t *testing.T) {
	result := Classify("Alerts", "Tailgating observed, then the driver ran red. Also speeding. Driver ID: ABC")

	assert.Equal(t, []enum.ViolationCategory{
		enum.ViolationOverSpeeding,
		enum.ViolationFollowingDistance,
		enum.ViolationSignalBreak,
	}, result.Categories)
}

func TestClassify_CaseInsensitive(t *testing.T) {
	lower := Classify("safety alert", "driver id: drv-9 overspeeding vin# abc123")
	upper := Classify("SAFETY ALERT", "DRIVER ID: DRV-9 OVERSPEEDING VIN# ABC123")
	mixed := Classify("Safety Alert", "Driver Id: Drv-9 OverSpeeding Vin# aBc123")

	for _, r := range []Result{lower, upper, mixed} {
		assert.Equal(t, "DRV-9", r.DriverExternalID)
		assert.Equal(t, "ABC123", r.VIN)
		assert.Equal(t, []enum.ViolationCategory{enum.ViolationOverSpeeding}, r.Categories)
	}
}

func TestClassify_KeywordsRequireWordBoundary(t *testing.T) {
	result := Classify("Report", "The paperworks team praised the driver.")

	assert.Empty(t, result.Categories)
}

func TestClassify_VehicleRules(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		rule string
	}{
		{"vehicle no", "Vehicle No: ab-123 seatbelt", "AB-123", "vehicle_no"},
		{"vehicle number", "Vehicle Number - xy9000 seatbelt", "XY9000", "vehicle_number"},
		{"vrn", "VRN: kl01ab seatbelt", "KL01AB", "vrn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify("", tt.body)
			assert.Equal(t, tt.want, result.VehicleNumber)
			assert.Equal(t, tt.rule, result.VehicleRule)
			assert.Empty(t, result.DriverExternalID)
			assert.True(t, result.HasDriverReference())
		})
	}
}

func TestClassify_FirstDriverRuleWins(t *testing.T) {
	result := Classify("", "Driver ID: FIRST-1\nDriver #SECOND-2\nDID: THIRD-3\nspeeding")

	assert.Equal(t, "FIRST-1", result.DriverExternalID)
	assert.Equal(t, "driver_id", result.DriverRule)
}

func TestClassify_FallbackDrivingPattern(t *testing.T) {
	body := "Hello team,\nDA Jane Doe (A1B2C3D4E5) driving VIN# 5YJ3E1EA7KF\nwas caught speeding.\nOccurred At: 2024-03-05T10:15:00Z"

	result := Classify("Amazon safety event", body)

	assert.Equal(t, "A1B2C3D4E5", result.DriverExternalID)
	assert.Equal(t, "Jane Doe", result.DriverName)
	assert.Equal(t, "fallback_driving", result.DriverRule)
	assert.Equal(t, "5YJ3E1EA7KF", result.VIN)
	require.NotNil(t, result.OccurredAt)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC), *result.OccurredAt)
}

func TestClassify_FallbackNotUsedWhenLabeledIdPresent(t *testing.T) {
	result := Classify("", "Driver ID: LBL-1\nJohn Roe (ZZZ999999) driving seatbelt")

	assert.Equal(t, "LBL-1", result.DriverExternalID)
	assert.Empty(t, result.DriverName)
}

func TestClassify_ExcerptAndTextLimits(t *testing.T) {
	body := strings.Repeat("x", 5000)

	result := Classify("subject", body)

	assert.Len(t, []rune(result.RawExcerpt), maxRawExcerpt)
	assert.Len(t, []rune(result.TextUsed), maxTextUsed)
	assert.True(t, strings.HasPrefix(result.RawExcerpt, "subject\n"))
}

func TestClassify_PermutedKeywordListsYieldSameCategories(t *testing.T) {
	inputs := []struct{ subject, body string }{
		{"Safety Alert", "Driver ID: DRV-1001 overspeeding and no seatbelt, using phone"},
		{"Alert", "Red light ran, tailgating, docs missing"},
		{"Notice", "An infraction happened"},
		{"Nothing", "all good"},
	}
	rng := rand.New(rand.NewSource(42))

	for _, in := range inputs {
		want := Classify(in.subject, in.body).Categories
		for i := 0; i < 10; i++ {
			shuffled := KeywordMap{}
			for category, phrases := range DefaultKeywordMap() {
				p := append([]string(nil), phrases...)
				rng.Shuffle(len(p), func(a, b int) { p[a], p[b] = p[b], p[a] })
				shuffled[category] = p
			}
			got := New(WithKeywords(shuffled)).Classify(in.subject, in.body).Categories
			assert.Equal(t, want, got, "input %q", in.body)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	first := Classify("Safety", "Driver ID: A-1 speeding Date: 2024-01-02 03:04:05")
	second := Classify("Safety", "Driver ID: A-1 speeding Date: 2024-01-02 03:04:05")

	assert.Equal(t, first, second)
}

func TestClassify_CustomDriverRules(t *testing.T) {
	c := New(WithDriverRules(NewPatternRule("badge", `(?i)badge\s*([0-9]+)`)))

	result := c.Classify("", "Badge 4411 speeding. Driver ID: IGNORED")

	assert.Equal(t, "4411", result.DriverExternalID)
	assert.Equal(t, "badge", result.DriverRule)
}

func TestExtractVIN(t *testing.T) {
	assert.Equal(t, "1HGCM82633A004352", ExtractVIN("VIN: 1hgcm82633a004352"))
	assert.Equal(t, "ABC", ExtractVIN("see VIN#ABC for details"))
	assert.Empty(t, ExtractVIN("driving to the depot"))
	assert.Equal(t, "5YJ3E1EA7KF", ExtractVIN("vin 5yj3e1ea7kf"))
	assert.Empty(t, ExtractVIN("Vincent was speeding"))
	assert.Empty(t, ExtractVIN("the VIN number is missing"))
}

func TestExtractOccurredAt(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *time.Time
	}{
		{"rfc3339", "Occurred At: 2024-05-01T08:30:00+02:00", ptrTime(time.Date(2024, 5, 1, 6, 30, 0, 0, time.UTC))},
		{"event time", "Event Time - 2024-05-01 08:30:00", ptrTime(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC))},
		{"date only", "Date: 2024-05-01", ptrTime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))},
		{"trailing utc", "Timestamp: 2024-05-01 08:30 UTC", ptrTime(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC))},
		{"unparseable", "Date: sometime last week", nil},
		{"absent", "no labels here", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractOccurredAt(tt.text)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
		})
	}
}

func TestResult_Extraction(t *testing.T) {
	result := Classify("Safety Alert", "Driver ID: DRV-1001 overspeeding VIN# 1A2B3C")

	extraction := result.Extraction()

	assert.Equal(t, "DRV-1001", extraction["driverExternalId"])
	assert.Equal(t, []string{"OverSpeeding"}, extraction["violationTypes"])
	assert.Equal(t, "1A2B3C", extraction["vin"])
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestClassify_LabelsNeedSeparator(t *testing.T) {
	result := Classify("Safety Alert", "Driver did not wear seat belt. Vincent reported it.")

	assert.Empty(t, result.DriverExternalID)
	assert.Empty(t, result.VIN)

	result = Classify("Safety Alert", "DA Jane Doe (A1B2C3D4E5) driving and did not wear seatbelt")
	assert.Equal(t, "A1B2C3D4E5", result.DriverExternalID)
	assert.Equal(t, "Jane Doe", result.DriverName)
}
