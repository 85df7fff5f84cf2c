// Package catalog implements product and category use cases on top of the store and the translation
// manager. Creating an entity enqueues its translation job in the same transaction.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/catalog/internal/db"
	"horse.fit/catalog/internal/language"
	"horse.fit/catalog/internal/outbox"
	"horse.fit/catalog/internal/translation"
)

// ErrInvalidInput wraps every validation failure of a create or update request.
var ErrInvalidInput = errors.New("invalid input")

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Translator is the part of translation.Manager the service uses.
type Translator interface {
	EnsureTranslations(ctx context.Context, entity translation.Entity, fields []string, opts translation.EnsureOptions) (translation.RunStats, error)
	Languages() []string
}

// Detector guesses the language of a text, returning "" when unsure. *langdetect.Detector implements it.
type Detector interface {
	Detect(text string) string
}

type Options struct {
	// BaseLanguage is stored as source_lang when the request names none and detection fails.
	BaseLanguage string
	Detector     Detector
	// Notify is called after a create transaction has committed.
	Notify func()
	Logger zerolog.Logger
}

type Service struct {
	store        *db.Store
	translator   Translator
	baseLanguage string
	detector     Detector
	notify       func()
	logger       zerolog.Logger
}

func NewService(store *db.Store, translator Translator, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if translator == nil {
		return nil, fmt.Errorf("translator is nil")
	}
	baseLanguage := language.NormalizeTag(opts.BaseLanguage)
	if baseLanguage == "" {
		baseLanguage = language.DefaultCode
	}
	return &Service{
		store:        store,
		translator:   translator,
		baseLanguage: baseLanguage,
		detector:     opts.Detector,
		notify:       opts.Notify,
		logger:       opts.Logger,
	}, nil
}

// SetNotify replaces the post-commit callback, e.g. once the outbox worker exists.
func (s *Service) SetNotify(fn func()) {
	s.notify = fn
}

// Languages returns the supported language set in configuration order.
func (s *Service) Languages() []string {
	return s.translator.Languages()
}

// Page is one slice of a list endpoint.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) params() db.ListParams {
	return db.ListParams{Offset: max(p.Offset, 0), Limit: max(p.Limit, 0)}
}

// RetranslateResult reports a forced translation pass.
type RetranslateResult struct {
	Ref   db.EntityRef
	Stats translation.RunStats
}

// resolveSourceLanguage prefers the declared code, then detection over the base fields, then the
// configured base language.
func (s *Service) resolveSourceLanguage(declared string, texts ...string) (string, error) {
	if strings.TrimSpace(declared) != "" {
		code := language.NormalizeTag(declared)
		if code == "" {
			return "", invalidInput("source_lang %q is not a language tag", declared)
		}
		return code, nil
	}
	if s.detector != nil {
		sample := strings.TrimSpace(strings.Join(texts, "\n"))
		if detected := language.NormalizeTag(s.detector.Detect(sample)); detected != "" {
			return detected, nil
		}
	}
	return s.baseLanguage, nil
}

// enqueue writes the translation job for ref inside tx and wakes the worker once tx commits.
func (s *Service) enqueue(ctx context.Context, tx *db.Tx, ref db.EntityRef) error {
	if _, err := tx.EnqueueTranslationJob(ctx, ref, db.TranslatableFields); err != nil {
		return err
	}
	if s.notify != nil {
		tx.OnCommit(s.notify)
	}
	return nil
}

func (s *Service) ensure(ctx context.Context, entity translation.Entity, force bool) (translation.RunStats, error) {
	stats, err := s.translator.EnsureTranslations(ctx, entity, db.TranslatableFields, translation.EnsureOptions{ForceRefresh: force})
	if err != nil {
		return stats, err
	}
	fillSlots(entity, s.translator.Languages())
	return stats, nil
}

// fillSlots gives every supported language an entry for every translatable field, empty if untranslated.
func fillSlots(entity translation.Entity, languages []string) {
	slots := entity.Slots()
	if slots == nil {
		slots = db.Translations{}
	}
	slots.Fill(languages, db.TranslatableFields)
	entity.SetSlots(slots)
}

// TranslateEntity runs one translation pass over the entity named by ref. With force every slot is
// translated again.
func (s *Service) TranslateEntity(ctx context.Context, ref db.EntityRef, force bool) (RetranslateResult, error) {
	entity, err := s.loadEntity(ctx, ref)
	if err != nil {
		return RetranslateResult{}, err
	}
	stats, err := s.ensure(ctx, entity, force)
	if err != nil {
		return RetranslateResult{}, err
	}
	return RetranslateResult{Ref: ref, Stats: stats}, nil
}

// RunTranslationJob is the outbox handler. Jobs for deleted entities and input no provider can handle
// are marked permanent; everything else is retried.
func (s *Service) RunTranslationJob(ctx context.Context, job db.TranslationJob) error {
	ref := job.Ref()
	entity, err := s.loadEntity(ctx, ref)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			return outbox.Permanent(err)
		}
		return err
	}

	fields := job.FieldList()
	if len(fields) == 0 {
		fields = db.TranslatableFields
	}
	stats, err := s.translator.EnsureTranslations(ctx, entity, fields, translation.EnsureOptions{})
	if err != nil {
		// ErrNotFound here means the entity was deleted while the job ran.
		if errors.Is(err, translation.ErrUnsupportedLanguage) || errors.Is(err, translation.ErrEmptyText) || errors.Is(err, db.ErrNotFound) {
			return outbox.Permanent(err)
		}
		return err
	}

	s.logger.Info().
		Str("entity", ref.String()).
		Int("translated", stats.Translated).
		Int("cached", stats.Cached).
		Int("skipped", stats.Skipped).
		Msg("translation job completed")
	return nil
}

func (s *Service) loadEntity(ctx context.Context, ref db.EntityRef) (translation.Entity, error) {
	switch ref.Kind {
	case db.EntityProduct:
		product, err := s.store.GetProduct(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		return product, nil
	case db.EntityCategory:
		category, err := s.store.GetCategory(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		return category, nil
	default:
		return nil, invalidInput("unknown entity kind %q", ref.Kind)
	}
}
