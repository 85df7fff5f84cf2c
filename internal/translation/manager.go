package translation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/catalog/internal/db"
	"horse.fit/catalog/internal/language"
)

// sourceCopyProvider is recorded for slots copied from the base value without a provider call.
const sourceCopyProvider = "source"

// Entity is a catalog row with translatable base fields and per-language slots.
type Entity interface {
	Ref() db.EntityRef
	BaseValue(field string) (string, bool)
	SourceLanguage() string
	Slots() db.Translations
	SetSlots(db.Translations)
}

// SlotStore persists language slots. UpsertTranslations must be atomic.
type SlotStore interface {
	UpsertTranslations(ctx context.Context, ref db.EntityRef, slots []db.SlotValue) error
}

// EnsureOptions controls one EnsureTranslations pass.
type EnsureOptions struct {
	// ForceRefresh re-translates slots that already hold a value.
	ForceRefresh bool
}

// RunStats reports translation execution counters.
type RunStats struct {
	Total      int `json:"total"`
	Translated int `json:"translated"`
	Cached     int `json:"cached"`
	Skipped    int `json:"skipped"`
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Languages []string
	// BaseLanguage is assumed for entities without a source language.
	BaseLanguage string
	Logger       zerolog.Logger
}

// Manager fills the language slots of catalog entities through a gateway.
type Manager struct {
	gateway      Provider
	store        SlotStore
	languages    []string
	baseLanguage string
	logger       zerolog.Logger
}

func NewManager(gateway Provider, store SlotStore, opts ManagerOptions) *Manager {
	languages := make([]string, 0, len(opts.Languages))
	for _, code := range opts.Languages {
		if normalized := language.NormalizeTag(code); normalized != "" {
			languages = append(languages, normalized)
		}
	}
	baseLanguage := language.NormalizeTag(opts.BaseLanguage)
	if baseLanguage == "" {
		baseLanguage = language.DefaultCode
	}
	return &Manager{
		gateway:      gateway,
		store:        store,
		languages:    languages,
		baseLanguage: baseLanguage,
		logger:       opts.Logger,
	}
}

// Languages returns the languages every entity is translated into.
func (m *Manager) Languages() []string {
	return append([]string(nil), m.languages...)
}

func (m *Manager) ProviderName() string {
	if m == nil || m.gateway == nil {
		return ""
	}
	return m.gateway.Name()
}

// EnsureTranslations fills the slot of every supported language for each field.
//
// Populated slots are kept unless opts.ForceRefresh is set. Blank base values leave the slot empty and a
// target equal to the source language copies the base value. The pass is all-or-nothing: the first
// gateway failure returns an error, nothing is stored and the entity's slots are not modified. Changed
// slots are persisted in one write, after which the entity's slots are replaced.
func (m *Manager) EnsureTranslations(ctx context.Context, entity Entity, fields []string, opts EnsureOptions) (RunStats, error) {
	if m == nil || m.gateway == nil || m.store == nil {
		return RunStats{}, fmt.Errorf("translation manager is not initialized")
	}
	if entity == nil {
		return RunStats{}, fmt.Errorf("entity is nil")
	}
	ref := entity.Ref()
	for _, field := range fields {
		if _, ok := entity.BaseValue(field); !ok {
			return RunStats{}, fmt.Errorf("%s has no translatable field %q", ref, field)
		}
	}

	sourceLang := language.NormalizeTag(entity.SourceLanguage())
	if sourceLang == "" {
		sourceLang = m.baseLanguage
	}

	working := entity.Slots().Clone()
	changed := make([]db.SlotValue, 0, len(m.languages)*len(fields))
	stats := RunStats{}

	for _, targetLang := range m.languages {
		for _, field := range fields {
			stats.Total++

			base, _ := entity.BaseValue(field)
			existing := working.Get(targetLang, field)
			if existing != "" && !opts.ForceRefresh {
				stats.Cached++
				continue
			}
			if strings.TrimSpace(base) == "" {
				stats.Skipped++
				continue
			}

			value := base
			providerName := sourceCopyProvider
			if shouldSkipTranslationTask(sourceLang, targetLang) {
				stats.Skipped++
			} else {
				resp, err := m.gateway.Translate(ctx, TranslateRequest{
					Text:       base,
					SourceLang: sourceLang,
					TargetLang: targetLang,
					Refresh:    opts.ForceRefresh,
				})
				if err != nil {
					return stats, fmt.Errorf("translate %s %s to %s: %w", ref, field, targetLang, err)
				}
				value = strings.TrimSpace(resp.Text)
				providerName = strings.TrimSpace(resp.ProviderName)
				if providerName == "" {
					providerName = m.gateway.Name()
				}
				stats.Translated++
			}

			if value == existing {
				continue
			}
			working.Set(targetLang, field, value)
			changed = append(changed, db.SlotValue{
				Lang:         targetLang,
				Field:        field,
				Value:        value,
				ProviderName: providerName,
			})
		}
	}

	if len(changed) == 0 {
		return stats, nil
	}
	if err := m.store.UpsertTranslations(ctx, ref, changed); err != nil {
		return stats, fmt.Errorf("persist translations for %s: %w", ref, err)
	}
	entity.SetSlots(working)

	m.logger.Debug().
		Str("entity", ref.String()).
		Int("slots_written", len(changed)).
		Int("translated", stats.Translated).
		Int("cached", stats.Cached).
		Int("skipped", stats.Skipped).
		Bool("force", opts.ForceRefresh).
		Msg("entity translations ensured")
	return stats, nil
}

// shouldSkipTranslationTask reports whether the provider call can be skipped because source and target
// share a primary language. Unknown sources ("und" or empty) are always translated.
func shouldSkipTranslationTask(sourceLang, targetLang string) bool {
	source := language.NormalizeCode(sourceLang)
	if source == "" || source == "und" {
		return false
	}
	return source == language.NormalizeCode(targetLang)
}
