// Package translation fills the per-language slots of catalog entities. A Manager drives a Gateway,
// which guards one upstream Provider with a cache, a rate limiter and a circuit breaker.
package translation

import "context"

// maxResponseBytes bounds provider response bodies read over plain HTTP.
const maxResponseBytes = 1 << 20

// Provider translates one text into one target language.
type Provider interface {
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error)
	Name() string
	// SupportedLanguages lists accepted target codes. An empty list accepts any target.
	SupportedLanguages() []string
}

// TranslateRequest is one text and its language pair.
type TranslateRequest struct {
	Text       string
	SourceLang string // BCP 47 tag, for example "en" or "pt-br"; empty lets the provider detect it
	TargetLang string
	// Refresh bypasses cached results. The fresh translation still replaces the cache entry.
	Refresh bool
}

// TranslateResponse is the translated text plus where it came from.
type TranslateResponse struct {
	Text         string
	SourceLang   string
	TargetLang   string
	ProviderName string
	LatencyMs    int64
	// Cached is set when the gateway answered from its cache without calling the provider.
	Cached bool
}
