package classifier

import (
	"regexp"
	"strings"

	"github.com/customeros/violationstack/internal/enum"
)

// KeywordMap lists the phrases that identify each category. Other has no phrases; it is only
// emitted by the generic incident fallback.
type KeywordMap map[enum.ViolationCategory][]string

func DefaultKeywordMap() KeywordMap {
	return KeywordMap{
		enum.ViolationOverSpeeding:      {"overspeed", "over-speed", "overspeeding", "speeding", "speed limit", "over speed"},
		enum.ViolationSeatBelt:          {"seatbelt", "seat belt", "no seatbelt", "belt not fastened"},
		enum.ViolationFollowingDistance: {"following distance", "tailgating", "too close", "safe distance"},
		enum.ViolationPhoneUse:          {"phone use", "using phone", "mobile use", "cellphone", "handheld device"},
		enum.ViolationSignalBreak:       {"signal break", "red light", "signal violation", "ran red", "signalbreak"},
		enum.ViolationDocumentsMissing:  {"missing documents", "license missing", "registration missing", "paperwork", "docs missing"},
		enum.ViolationOther:             {},
	}
}

var genericIncident = regexp.MustCompile(`(?i)violation|incident|infraction|offense`)

type categoryMatcher struct {
	category enum.ViolationCategory
	re       *regexp.Regexp
}

// compileKeywords builds the combined guard and one matcher per category, iterating categories
// in their canonical order so the result does not depend on map iteration.
func compileKeywords(keywords KeywordMap) (*regexp.Regexp, []categoryMatcher) {
	var all []string
	var matchers []categoryMatcher

	for _, category := range enum.ViolationCategories {
		phrases := keywords[category]
		if len(phrases) == 0 {
			continue
		}
		quoted := make([]string, 0, len(phrases))
		for _, p := range phrases {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(p)))
		}
		if len(quoted) == 0 {
			continue
		}
		all = append(all, quoted...)
		matchers = append(matchers, categoryMatcher{
			category: category,
			re:       regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}

	if len(all) == 0 {
		return nil, nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(all, "|") + `)\b`), matchers
}
