package translation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/catalog/internal/config"
)

func TestLibreTranslateMapsTooManyRequestsToRateLimited(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Slowdown: 30 per 1 minute"}`))
	}))
	defer server.Close()

	provider := NewLibreTranslateProvider(server.URL, "", nil)
	_, err := provider.Translate(context.Background(), TranslateRequest{Text: "Shoe", SourceLang: "en", TargetLang: "fr"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway to match, got %v", err)
	}
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) || gwErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected GatewayError with status 429, got %#v", err)
	}
}

func TestLibreTranslateNetworkErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	provider := NewLibreTranslateProvider(baseURL, "", nil)
	_, err := provider.Translate(context.Background(), TranslateRequest{Text: "Shoe", SourceLang: "en", TargetLang: "fr"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if IsRetryable(err) != true {
		t.Fatalf("network errors should be retryable")
	}
}

func TestLibreTranslateSuccess(t *testing.T) {
	t.Parallel()

	var got libreTranslateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"translatedText":"Chaussure"}`))
	}))
	defer server.Close()

	provider := NewLibreTranslateProvider(server.URL+"/", "secret", nil)
	resp, err := provider.Translate(context.Background(), TranslateRequest{Text: " Shoe ", SourceLang: "EN", TargetLang: "fr"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if resp.Text != "Chaussure" || resp.ProviderName != "libretranslate" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got.Q != "Shoe" || got.Source != "en" || got.Target != "fr" || got.Format != "text" || got.APIKey != "secret" {
		t.Fatalf("unexpected request payload: %+v", got)
	}
}

func TestLocalProviderStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusTooManyRequests, want: ErrRateLimited},
		{status: http.StatusBadGateway, want: ErrProviderUnavailable},
		{status: http.StatusBadRequest, want: ErrProviderRejected},
	}
	for _, tc := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))
		provider := NewLocalProvider(server.URL, "test-model")
		_, err := provider.Translate(context.Background(), TranslateRequest{Text: "Shoe", SourceLang: "en", TargetLang: "fr"})
		server.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestLocalProviderPrompt(t *testing.T) {
	t.Parallel()

	prompt := localPrompt("Shoe", "en", "fr")
	want := "Translate the following segment into French, without additional explanation.\n\nShoe"
	if prompt != want {
		t.Fatalf("prompt = %q, want %q", prompt, want)
	}
	if prompt := localPrompt("鞋", "zh", "en"); !strings.HasPrefix(prompt, "将以下文本翻译为") {
		t.Fatalf("expected the Chinese template, got %q", prompt)
	}
}

func TestNormalizeLocalEndpoint(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                                        DefaultLocalEndpoint,
		"127.0.0.1:9000":                          "http://127.0.0.1:9000/v1",
		"http://mt.internal/v1/":                  "http://mt.internal/v1",
		"https://mt.internal/v1/chat/completions": "https://mt.internal/v1",
		"https://mt.internal/openai":              "https://mt.internal/openai",
	}
	for raw, want := range cases {
		if got := normalizeEndpoint(raw); got != want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestGatewayRejectsEmptyTextAndUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	gateway := NewGateway(&restrictedProvider{stubProvider: provider, languages: []string{"fr"}}, GatewayOptions{Logger: zerolog.Nop()})

	if _, err := gateway.Translate(context.Background(), TranslateRequest{Text: "  ", TargetLang: "fr"}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := gateway.Translate(context.Background(), TranslateRequest{Text: "Shoe", TargetLang: "xx"}); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("invalid requests must not reach the provider, calls = %d", provider.calls)
	}
}

func TestGatewayOpensBreakerAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{err: newGatewayError("stub", ErrProviderUnavailable, errors.New("down"))}
	gateway := NewGateway(provider, GatewayOptions{
		BreakerFailures: 2,
		BreakerCooldown: time.Hour,
		Logger:          zerolog.Nop(),
	})

	req := TranslateRequest{Text: "Shoe", SourceLang: "en", TargetLang: "fr"}
	for i := 0; i < 2; i++ {
		if _, err := gateway.Translate(context.Background(), req); !errors.Is(err, ErrProviderUnavailable) {
			t.Fatalf("call %d: expected ErrProviderUnavailable, got %v", i, err)
		}
	}
	if gateway.BreakerState() != "open" {
		t.Fatalf("breaker state = %s, want open", gateway.BreakerState())
	}

	_, err := gateway.Translate(context.Background(), req)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable from open breaker, got %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("open breaker must not call the provider, calls = %d", provider.calls)
	}
}

func TestGatewayRejectionsDoNotOpenBreaker(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{err: newGatewayError("stub", ErrProviderRejected, errors.New("bad input"))}
	gateway := NewGateway(provider, GatewayOptions{BreakerFailures: 1, Logger: zerolog.Nop()})

	for i := 0; i < 3; i++ {
		_, _ = gateway.Translate(context.Background(), TranslateRequest{Text: "Shoe", TargetLang: "fr"})
	}
	if gateway.BreakerState() != "closed" {
		t.Fatalf("breaker state = %s, want closed", gateway.BreakerState())
	}
}

func TestGatewayServesFromCache(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{responses: map[string]string{"fr": "Chaussure"}}
	cache := newMemoryCache()
	gateway := NewGateway(provider, GatewayOptions{Cache: cache, Logger: zerolog.Nop()})
	req := TranslateRequest{Text: "Shoe", SourceLang: "en", TargetLang: "fr"}

	first, err := gateway.Translate(context.Background(), req)
	if err != nil {
		t.Fatalf("first Translate() error = %v", err)
	}
	second, err := gateway.Translate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Translate() error = %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected one provider call, got %d", provider.calls)
	}
	if first.Cached || !second.Cached || second.Text != "Chaussure" {
		t.Fatalf("unexpected responses: %+v %+v", first, second)
	}
}

func TestGatewayRefreshSkipsCacheReadButUpdatesIt(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{responses: map[string]string{"fr": "Chaussure"}}
	gateway := NewGateway(provider, GatewayOptions{Cache: newMemoryCache(), Logger: zerolog.Nop()})
	req := TranslateRequest{Text: "Shoe", SourceLang: "en", TargetLang: "fr"}
	ctx := context.Background()

	if _, err := gateway.Translate(ctx, req); err != nil {
		t.Fatalf("first Translate() error = %v", err)
	}

	provider.responses["fr"] = "Soulier"
	refreshed := req
	refreshed.Refresh = true
	resp, err := gateway.Translate(ctx, refreshed)
	if err != nil {
		t.Fatalf("refresh Translate() error = %v", err)
	}
	if resp.Cached || resp.Text != "Soulier" || provider.calls != 2 {
		t.Fatalf("refresh must call the provider: resp=%+v calls=%d", resp, provider.calls)
	}

	resp, err = gateway.Translate(ctx, req)
	if err != nil {
		t.Fatalf("third Translate() error = %v", err)
	}
	if !resp.Cached || resp.Text != "Soulier" || provider.calls != 2 {
		t.Fatalf("expected the refreshed text from the cache: resp=%+v calls=%d", resp, provider.calls)
	}
}

func TestGatewayRateLimitWithinTimeout(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	gateway := NewGateway(provider, GatewayOptions{
		RateLimit: 0.001,
		Burst:     1,
		Timeout:   50 * time.Millisecond,
		Logger:    zerolog.Nop(),
	})
	req := TranslateRequest{Text: "Shoe", TargetLang: "fr"}

	if _, err := gateway.Translate(context.Background(), req); err != nil {
		t.Fatalf("first call should use the burst, got %v", err)
	}
	if _, err := gateway.Translate(context.Background(), req); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCacheKeySeparatesLanguagePairs(t *testing.T) {
	t.Parallel()

	fr := cacheKey("local", TranslateRequest{Text: "Shoe", SourceLang: "en", TargetLang: "fr"})
	de := cacheKey("local", TranslateRequest{Text: "Shoe", SourceLang: "en", TargetLang: "de"})
	if fr == de {
		t.Fatalf("expected distinct keys, got %q", fr)
	}
}

type restrictedProvider struct {
	*stubProvider
	languages []string
}

func (p *restrictedProvider) SupportedLanguages() []string {
	return p.languages
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string]string{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.items[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return value, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func TestRegistryFromConfig(t *testing.T) {
	t.Parallel()

	registry := NewRegistryFromConfig(&config.Config{TranslationProvider: " Google "})
	if got := registry.Names(); !slices.Equal(got, []string{"google", "libretranslate", "local", "openai"}) {
		t.Fatalf("unexpected provider names: %v", got)
	}

	provider, err := registry.Provider("")
	if err != nil || provider.Name() != "google" {
		t.Fatalf("default provider = %v, %v", provider, err)
	}
	if _, err := registry.Provider("deepl"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if err := registry.Register(NewGoogleProvider("")); err == nil {
		t.Fatalf("expected a duplicate registration to fail")
	}
}
