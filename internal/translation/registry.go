package translation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"horse.fit/catalog/internal/config"
)

// DefaultProviderName is used when TRANSLATION_PROVIDER is unset.
const DefaultProviderName = "local"

// ErrUnknownProvider is returned when a provider name has no registration.
var ErrUnknownProvider = errors.New("unknown translation provider")

// Registry maps provider names to providers. The zero value is not usable; call NewRegistry.
type Registry struct {
	providers       map[string]Provider
	defaultProvider string
}

func NewRegistry(defaultProvider string) *Registry {
	name := normalizeProviderName(defaultProvider)
	if name == "" {
		name = DefaultProviderName
	}
	return &Registry{
		providers:       make(map[string]Provider),
		defaultProvider: name,
	}
}

// NewRegistryFromConfig registers every provider and selects TRANSLATION_PROVIDER as the default.
// Providers missing credentials are still registered; they fail with ErrProviderUnavailable when used.
func NewRegistryFromConfig(cfg *config.Config) *Registry {
	registry := NewRegistry(cfg.TranslationProvider)
	for _, provider := range []Provider{
		NewLocalProvider(cfg.TranslationEndpoint, cfg.TranslationModel),
		NewLibreTranslateProvider(cfg.LibreTranslateURL, cfg.LibreTranslateAPIKey, nil),
		NewGoogleProvider(cfg.GoogleTranslateKey),
		NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, ""),
	} {
		_ = registry.Register(provider)
	}
	return registry
}

// Register adds provider under its Name. A name can be registered once.
func (r *Registry) Register(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("provider is nil")
	}
	name := normalizeProviderName(provider.Name())
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("translation provider %q is already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Provider resolves name, or the default provider when name is empty.
func (r *Registry) Provider(name string) (Provider, error) {
	resolved := normalizeProviderName(name)
	if resolved == "" {
		resolved = r.defaultProvider
	}
	if provider, ok := r.providers[resolved]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownProvider, resolved, strings.Join(r.Names(), ", "))
}

func (r *Registry) DefaultProvider() string {
	return r.defaultProvider
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func normalizeProviderName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
