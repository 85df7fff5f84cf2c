package language

import "strings"

// NormalizeTag lowercases a BCP 47 style tag and joins its subtags with "-". "_" is accepted as a
// separator and empty subtags are dropped. The primary subtag must be 2 or 3 letters, later subtags 1 to
// 8 letters or digits (zh-hans, es-419). Anything else, including "*", normalizes to "".
func NormalizeTag(raw string) string {
	subtags := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(raw)), func(r rune) bool {
		return r == '-' || r == '_'
	})
	if len(subtags) == 0 {
		return ""
	}

	primary := subtags[0]
	if len(primary) < 2 || len(primary) > 3 || !onlyRunes(primary, isLetter) {
		return ""
	}
	for _, subtag := range subtags[1:] {
		if len(subtag) > 8 || !onlyRunes(subtag, func(r rune) bool { return isLetter(r) || isDigit(r) }) {
			return ""
		}
	}
	return strings.Join(subtags, "-")
}

// NormalizeCode returns the primary language subtag, "en" for "en-US".
func NormalizeCode(raw string) string {
	code, _, _ := strings.Cut(NormalizeTag(raw), "-")
	return code
}

func onlyRunes(value string, ok func(rune) bool) bool {
	for _, r := range value {
		if !ok(r) {
			return false
		}
	}
	return true
}

func isLetter(r rune) bool { return r >= 'a' && r <= 'z' }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
