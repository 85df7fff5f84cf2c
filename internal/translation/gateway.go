package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultGatewayTimeout   = 15 * time.Second
	defaultBreakerFailures  = 5
	defaultBreakerCooldown  = 30 * time.Second
	defaultBreakerHalfOpen  = 1
	defaultTranslationCache = 30 * 24 * time.Hour
)

// GatewayOptions tunes the decorators wrapped around a provider.
type GatewayOptions struct {
	// Timeout bounds one provider call, including the rate limiter wait.
	Timeout time.Duration
	// RateLimit is the sustained number of provider calls per second. Zero disables limiting.
	RateLimit float64
	Burst     int

	// BreakerFailures consecutive unavailability errors open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Cache    Cache
	CacheTTL time.Duration

	Logger zerolog.Logger
}

// Gateway is the Provider used by the rest of the service. It validates input, consults the cache unless
// the request asks for a refresh and protects the provider with a timeout, a rate limiter and a circuit breaker.
type Gateway struct {
	provider Provider
	timeout  time.Duration
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	cache    Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

func NewGateway(provider Provider, opts GatewayOptions) *Gateway {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultTranslationCache
	}

	g := &Gateway{
		provider: provider,
		timeout:  timeout,
		cache:    opts.Cache,
		cacheTTL: cacheTTL,
		logger:   opts.Logger,
	}
	if opts.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.Burst, 1))
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "translation:" + provider.Name(),
		MaxRequests: defaultBreakerHalfOpen,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("translation circuit breaker state changed")
		},
	})
	return g
}

func (g *Gateway) Name() string {
	return g.provider.Name()
}

func (g *Gateway) SupportedLanguages() []string {
	return g.provider.SupportedLanguages()
}

func (g *Gateway) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	name := g.provider.Name()
	if strings.TrimSpace(req.Text) == "" {
		return nil, newGatewayError(name, ErrEmptyText, nil)
	}
	targetLang := normalizeLangCode(req.TargetLang)
	if targetLang == "" || !supportsLanguage(g.provider.SupportedLanguages(), targetLang) {
		return nil, newGatewayError(name, ErrUnsupportedLanguage, fmt.Errorf("target %q", req.TargetLang))
	}
	req.TargetLang = targetLang
	req.SourceLang = normalizeLangCode(req.SourceLang)

	key := cacheKey(name, req)
	if g.cache != nil && !req.Refresh {
		cached, err := g.cache.Get(ctx, key)
		switch {
		case err == nil:
			recordCacheHit(name)
			return &TranslateResponse{
				Text:         cached,
				SourceLang:   req.SourceLang,
				TargetLang:   targetLang,
				ProviderName: name,
				Cached:       true,
			}, nil
		case !errors.Is(err, ErrCacheMiss):
			g.logger.Warn().Err(err).Msg("translation cache read failed")
		}
	}

	started := time.Now()
	resp, err := g.call(ctx, req)
	recordGatewayCall(name, started, err)
	if err != nil {
		return nil, err
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, key, resp.Text, g.cacheTTL); err != nil {
			g.logger.Warn().Err(err).Msg("translation cache write failed")
		}
	}
	return resp, nil
}

func (g *Gateway) call(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	name := g.provider.Name()
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(callCtx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			return nil, newGatewayError(name, ErrRateLimited, err)
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.provider.Translate(callCtx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, newGatewayError(name, ErrProviderUnavailable, err)
		}
		return nil, errorFromTransport(name, err)
	}

	resp, ok := result.(*TranslateResponse)
	if !ok || resp == nil {
		return nil, newGatewayError(name, ErrProviderRejected, fmt.Errorf("provider returned no response"))
	}
	return resp, nil
}

// BreakerState reports the circuit breaker state, e.g. "closed" or "open".
func (g *Gateway) BreakerState() string {
	return g.breaker.State().String()
}
