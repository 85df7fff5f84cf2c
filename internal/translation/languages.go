package translation

import (
	"sort"
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"horse.fit/catalog/internal/language"
)

// localLanguageCodes are the languages the HY-MT model is trained on.
var localLanguageCodes = []string{
	"ar", "de", "en", "es", "fr", "id", "it", "ja",
	"ko", "pl", "pt", "ru", "th", "tr", "vi", "zh",
}

var (
	englishNamer = display.Languages(xlang.English)
	chineseNamer = display.Languages(xlang.SimplifiedChinese)
)

// languageName returns the display name of code in English, or in Chinese when inChinese is set.
// Unknown codes are returned unchanged.
func languageName(code string, inChinese bool) string {
	normalized := language.NormalizeTag(code)
	if normalized == "" {
		return strings.TrimSpace(code)
	}
	tag, err := xlang.Parse(normalized)
	if err != nil {
		return normalized
	}

	namer := englishNamer
	if inChinese {
		namer = chineseNamer
	}
	if name := namer.Name(tag); name != "" {
		return name
	}
	return normalized
}

func normalizeLangCode(raw string) string {
	return language.NormalizeTag(raw)
}

func sortedCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		normalized := normalizeLangCode(code)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	return out
}

// supportsLanguage reports whether code (or its primary subtag) is in supported.
// An empty list means the provider accepts any language.
func supportsLanguage(supported []string, code string) bool {
	if len(supported) == 0 {
		return true
	}
	normalized := normalizeLangCode(code)
	primary := language.NormalizeCode(code)
	for _, candidate := range supported {
		if candidate == normalized || candidate == primary {
			return true
		}
	}
	return false
}
