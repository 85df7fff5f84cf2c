package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"horse.fit/catalog/internal/catalog"
	"horse.fit/catalog/internal/cli"
	"horse.fit/catalog/internal/config"
	"horse.fit/catalog/internal/db"
	"horse.fit/catalog/internal/langdetect"
	"horse.fit/catalog/internal/logging"
	"horse.fit/catalog/internal/outbox"
	"horse.fit/catalog/internal/translation"
)

// loadEnvironment loads the .env file, the configuration and the root logger.
func loadEnvironment(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

type runtimeOptions struct {
	// Provider overrides TRANSLATION_PROVIDER.
	Provider string
	Migrate  bool
}

// runtime holds the wired service graph shared by serve, worker and translate.
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	pool    *db.Pool
	cache   *translation.RedisCache
	gateway *translation.Gateway
	manager *translation.Manager
	service *catalog.Service
}

func openRuntime(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts runtimeOptions) (*runtime, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger, pool: pool}

	if opts.Migrate {
		if err := pool.Migrate(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	registry := translation.NewRegistryFromConfig(cfg)
	provider, err := registry.Provider(opts.Provider)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var cache translation.Cache
	if redisURL := strings.TrimSpace(cfg.RedisURL); redisURL != "" {
		rt.cache, err = translation.NewRedisCache(ctx, redisURL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to translation cache: %w", err)
		}
		cache = rt.cache
	}

	translationLogger := logging.Component(logger, "translation")
	rt.gateway = translation.NewGateway(provider, translation.GatewayOptions{
		Timeout:   cfg.TranslationTimeout,
		RateLimit: cfg.TranslationRateLimit,
		Burst:     cfg.TranslationBurst,
		Cache:     cache,
		CacheTTL:  cfg.TranslationCacheTTL,
		Logger:    translationLogger,
	})
	rt.manager = translation.NewManager(rt.gateway, pool.Store(), translation.ManagerOptions{
		Languages:    cfg.SupportedLanguages,
		BaseLanguage: cfg.BaseLanguage,
		Logger:       translationLogger,
	})

	rt.service, err = catalog.NewService(pool.Store(), rt.manager, catalog.Options{
		BaseLanguage: cfg.BaseLanguage,
		Detector:     langdetect.New(append([]string{cfg.BaseLanguage}, cfg.SupportedLanguages...)),
		Logger:       logging.Component(logger, "catalog"),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	logger.Debug().
		Str("provider", rt.gateway.Name()).
		Strs("languages", rt.manager.Languages()).
		Bool("cache", rt.cache != nil).
		Msg("translation runtime ready")
	return rt, nil
}

// newWorker builds the outbox worker and points the service's commit hook at it.
func (rt *runtime) newWorker() (*outbox.Worker, error) {
	worker, err := outbox.New(rt.pool.Store(), rt.service.RunTranslationJob, outbox.OptionsFromConfig(rt.cfg, logging.Component(rt.logger, "outbox")))
	if err != nil {
		return nil, err
	}
	rt.service.SetNotify(worker.Notify)
	return worker, nil
}

func (rt *runtime) Close() {
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			rt.logger.Warn().Err(err).Msg("close translation cache")
		}
	}
	if rt.pool != nil {
		_ = rt.pool.Close()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
