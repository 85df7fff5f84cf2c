package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// minLetters is the shortest sample worth running detection on.
const minLetters = 6

// Detector guesses the ISO 639-1 language of a text among a fixed set of candidates.
// Language models are loaded on first use.
type Detector struct {
	candidates []lingua.Language

	once     sync.Once
	detector lingua.LanguageDetector
}

// New restricts detection to codes. Fewer than two recognised codes means every language is a candidate.
func New(codes []string) *Detector {
	byCode := make(map[string]lingua.Language)
	for _, lang := range lingua.AllLanguages() {
		byCode[strings.ToLower(lang.IsoCode639_1().String())] = lang
	}

	seen := make(map[lingua.Language]struct{}, len(codes))
	candidates := make([]lingua.Language, 0, len(codes))
	for _, code := range codes {
		primary, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(code)), "-")
		lang, ok := byCode[primary]
		if !ok {
			continue
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		candidates = append(candidates, lang)
	}
	return &Detector{candidates: candidates}
}

// Candidates returns the ISO 639-1 codes detection is limited to; empty means all languages.
func (d *Detector) Candidates() []string {
	codes := make([]string, 0, len(d.candidates))
	for _, lang := range d.candidates {
		codes = append(codes, strings.ToLower(lang.IsoCode639_1().String()))
	}
	return codes
}

// Detect returns the lowercase ISO 639-1 code, or "" when the text is too short or ambiguous.
func (d *Detector) Detect(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < minLetters {
		return ""
	}

	language, exists := d.get().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func (d *Detector) get() lingua.LanguageDetector {
	d.once.Do(func() {
		builder := lingua.NewLanguageDetectorBuilder()
		if len(d.candidates) >= 2 {
			d.detector = builder.FromLanguages(d.candidates...).Build()
			return
		}
		d.detector = builder.FromAllLanguages().Build()
	})
	return d.detector
}
