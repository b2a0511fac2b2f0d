package scriptmodel

import "unicode"

// DominantCJKHint scans text for Han, Hiragana/Katakana, and Hangul
// codepoints and reports the BCP-47 language tag of whichever script
// dominates, for the platform backend's locale-resolution fallback when
// the preferred locale is unset or not supported. ok is false only when
// the text holds none of these codepoints at all.
func DominantCJKHint(text string) (tag string, ok bool) {
	var han, kana, hangul int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		}
	}
	if han == 0 && kana == 0 && hangul == 0 {
		return "", false
	}
	switch {
	case kana >= han && kana >= hangul:
		return "ja", true
	case hangul >= han:
		return "ko", true
	default:
		return "zh", true
	}
}
