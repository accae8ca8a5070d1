package enum

import "strings"

type ViolationCategory string

const (
	ViolationOverSpeeding      ViolationCategory = "OverSpeeding"
	ViolationSeatBelt          ViolationCategory = "SeatBelt"
	ViolationFollowingDistance ViolationCategory = "FollowingDistance"
	ViolationPhoneUse          ViolationCategory = "PhoneUse"
	ViolationSignalBreak       ViolationCategory = "SignalBreak"
	ViolationDocumentsMissing  ViolationCategory = "DocumentsMissing"
	ViolationOther             ViolationCategory = "Other"
)

// ViolationCategories lists the closed set in canonical order.
var ViolationCategories = []ViolationCategory{
	ViolationOverSpeeding,
	ViolationSeatBelt,
	ViolationFollowingDistance,
	ViolationPhoneUse,
	ViolationSignalBreak,
	ViolationDocumentsMissing,
	ViolationOther,
}

func (c ViolationCategory) String() string {
	return string(c)
}

func (c ViolationCategory) IsValid() bool {
	for _, known := range ViolationCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Label is the human readable form used in driver notifications.
func (c ViolationCategory) Label() string {
	switch c {
	case ViolationOverSpeeding:
		return "Over speeding"
	case ViolationSeatBelt:
		return "Seat belt"
	case ViolationFollowingDistance:
		return "Following distance"
	case ViolationPhoneUse:
		return "Phone use"
	case ViolationSignalBreak:
		return "Signal break"
	case ViolationDocumentsMissing:
		return "Documents missing"
	default:
		return "Other"
	}
}

// ParseViolationCategory matches case-insensitively against the closed set.
func ParseViolationCategory(raw string) (ViolationCategory, bool) {
	raw = strings.TrimSpace(raw)
	for _, c := range ViolationCategories {
		if strings.EqualFold(string(c), raw) {
			return c, true
		}
	}
	return "", false
}

type ViolationSource string

const (
	ViolationSourceEmail  ViolationSource = "email"
	ViolationSourceManual ViolationSource = "manual"
	ViolationSourceAPI    ViolationSource = "api"
)

func (s ViolationSource) String() string {
	return string(s)
}

func (s ViolationSource) IsValid() bool {
	switch s {
	case ViolationSourceEmail, ViolationSourceManual, ViolationSourceAPI:
		return true
	}
	return false
}

type ViolationStatus string

const (
	ViolationStatusPendingMatch ViolationStatus = "pending_match"
	ViolationStatusMatched      ViolationStatus = "matched"
)

func (s ViolationStatus) String() string {
	return string(s)
}
