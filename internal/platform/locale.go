package platform

import (
	"golang.org/x/text/language"

	"github.com/nupi-ai/teleprompter-engine/internal/scriptmodel"
)

// ResolveLocale picks the backend locale to request: prefer an exact
// match for the user's preferred locale, then same-language-family, then
// the script's dominant CJK hint, then system locale, then English, then
// whatever the recognizer supports first.
func ResolveLocale(preferred string, supported []string, scriptText string, systemLocale string) string {
	if len(supported) == 0 {
		return preferred
	}

	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		if tag, err := language.Parse(s); err == nil {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return supported[0]
	}

	matcher := language.NewMatcher(tags)

	if preferred != "" {
		if want, err := language.Parse(preferred); err == nil {
			if _, index, confidence := matcher.Match(want); confidence >= language.Exact {
				return supported[index]
			}
			if base, _ := want.Base(); base.String() != "" {
				if idx := findSameLanguage(tags, base.String()); idx >= 0 {
					return supported[idx]
				}
			}
		}
	}

	if hint, ok := scriptmodel.DominantCJKHint(scriptText); ok {
		if idx := findSameLanguage(tags, hint); idx >= 0 {
			return supported[idx]
		}
	}

	if systemLocale != "" {
		if sys, err := language.Parse(systemLocale); err == nil {
			if _, index, confidence := matcher.Match(sys); confidence >= language.Exact {
				return supported[index]
			}
		}
	}

	if idx := findSameLanguage(tags, "en"); idx >= 0 {
		return supported[idx]
	}

	return supported[0]
}

func findSameLanguage(tags []language.Tag, lang string) int {
	for i, t := range tags {
		base, _ := t.Base()
		if base.String() == lang {
			return i
		}
	}
	return -1
}
