package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Option describes one supported language for API consumers.
type Option struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Native  string `json:"native,omitempty"`
	Default bool   `json:"default,omitempty"`
}

var englishNamer = display.Languages(language.English)

// Options builds display metadata for codes, preserving their order.
func Options(codes []string, defaultCode string) []Option {
	defaultCode = NormalizeTag(defaultCode)
	options := make([]Option, 0, len(codes))
	for _, raw := range codes {
		code := NormalizeTag(raw)
		if code == "" {
			continue
		}

		option := Option{
			Code:    code,
			Label:   strings.ToUpper(code),
			Default: code == defaultCode,
		}
		tag, err := language.Parse(code)
		if err == nil {
			if name := englishNamer.Name(tag); name != "" {
				option.Label = name
			}
			if native := display.Self.Name(tag); native != "" && native != option.Label {
				option.Native = native
			}
		}
		options = append(options, option)
	}
	return options
}
