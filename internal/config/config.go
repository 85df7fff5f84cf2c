package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

// TranslationProviders are the accepted TRANSLATION_PROVIDER values.
var TranslationProviders = []string{"local", "libretranslate", "google", "openai"}

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	SupportedLanguages []string `envconfig:"SUPPORTED_LANGUAGES" default:"en,fr"`
	DefaultLanguage    string   `envconfig:"DEFAULT_LANGUAGE" default:"en"`
	BaseLanguage       string   `envconfig:"BASE_LANGUAGE" default:"en"`

	TranslationProvider  string        `envconfig:"TRANSLATION_PROVIDER" default:"local"`
	TranslationEndpoint  string        `envconfig:"TRANSLATION_ENDPOINT" default:""`
	TranslationModel     string        `envconfig:"TRANSLATION_MODEL" default:""`
	LibreTranslateURL    string        `envconfig:"LIBRETRANSLATE_URL" default:""`
	LibreTranslateAPIKey string        `envconfig:"LIBRETRANSLATE_API_KEY" default:""`
	GoogleTranslateKey   string        `envconfig:"GOOGLE_TRANSLATE_API_KEY" default:""`
	OpenAIAPIKey         string        `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel          string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	TranslationTimeout   time.Duration `envconfig:"TRANSLATION_TIMEOUT" default:"15s"`
	TranslationRateLimit float64       `envconfig:"TRANSLATION_RATE_LIMIT" default:"5"`
	TranslationBurst     int           `envconfig:"TRANSLATION_BURST" default:"5"`

	RedisURL            string        `envconfig:"REDIS_URL" default:""`
	TranslationCacheTTL time.Duration `envconfig:"TRANSLATION_CACHE_TTL" default:"720h"`

	OutboxWorkers        int           `envconfig:"OUTBOX_WORKERS" default:"4"`
	OutboxBatchSize      int           `envconfig:"OUTBOX_BATCH_SIZE" default:"20"`
	OutboxPollInterval   time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"30s"`
	OutboxMaxAttempts    int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"5"`
	OutboxInitialBackoff time.Duration `envconfig:"OUTBOX_INITIAL_BACKOFF" default:"30s"`
	OutboxMaxBackoff     time.Duration `envconfig:"OUTBOX_MAX_BACKOFF" default:"1h"`
	OutboxLease          time.Duration `envconfig:"OUTBOX_LEASE" default:"10m"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	languages, err := normalizeLanguageList(c.SupportedLanguages)
	if err != nil {
		return fmt.Errorf("SUPPORTED_LANGUAGES: %w", err)
	}
	if len(languages) == 0 {
		return fmt.Errorf("SUPPORTED_LANGUAGES must list at least one language")
	}
	c.SupportedLanguages = languages

	c.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.DefaultLanguage))
	if !containsString(languages, c.DefaultLanguage) {
		return fmt.Errorf("DEFAULT_LANGUAGE %q must be one of SUPPORTED_LANGUAGES (%s)", c.DefaultLanguage, strings.Join(languages, ", "))
	}
	c.BaseLanguage = strings.ToLower(strings.TrimSpace(c.BaseLanguage))
	if c.BaseLanguage != "" {
		if _, err := language.Parse(c.BaseLanguage); err != nil {
			return fmt.Errorf("BASE_LANGUAGE %q is not a valid language tag", c.BaseLanguage)
		}
	}

	c.TranslationProvider = strings.ToLower(strings.TrimSpace(c.TranslationProvider))
	if !containsString(TranslationProviders, c.TranslationProvider) {
		return fmt.Errorf("TRANSLATION_PROVIDER %q must be one of %s", c.TranslationProvider, strings.Join(TranslationProviders, ", "))
	}
	if c.TranslationTimeout <= 0 {
		return fmt.Errorf("TRANSLATION_TIMEOUT must be > 0")
	}
	if c.TranslationRateLimit < 0 {
		return fmt.Errorf("TRANSLATION_RATE_LIMIT must be >= 0")
	}
	if c.TranslationBurst < 1 {
		return fmt.Errorf("TRANSLATION_BURST must be >= 1")
	}
	if c.OutboxWorkers < 1 {
		return fmt.Errorf("OUTBOX_WORKERS must be >= 1")
	}
	if c.OutboxBatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be >= 1")
	}
	if c.OutboxPollInterval < time.Second {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be >= 1s")
	}
	if c.OutboxMaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be >= 1")
	}
	if c.OutboxInitialBackoff <= 0 || c.OutboxMaxBackoff < c.OutboxInitialBackoff {
		return fmt.Errorf("OUTBOX_INITIAL_BACKOFF must be > 0 and <= OUTBOX_MAX_BACKOFF")
	}
	if c.OutboxLease <= 0 {
		return fmt.Errorf("OUTBOX_LEASE must be > 0")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}

// normalizeLanguageList lowercases, validates and de-duplicates codes while keeping their order.
func normalizeLanguageList(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		code := strings.ToLower(strings.TrimSpace(item))
		if code == "" {
			continue
		}
		if _, err := language.Parse(code); err != nil {
			return nil, fmt.Errorf("%q is not a valid language tag", item)
		}
		if _, exists := seen[code]; exists {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
