package catalog

import (
	"context"
	"strings"

	"horse.fit/catalog/internal/db"
)

// CategoryInput is the writable part of a category. An empty Slug is derived from Name.
type CategoryInput struct {
	Name        string
	Description string
	Slug        string
	SourceLang  string
}

func (in CategoryInput) normalize() (CategoryInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = Slugify(in.Name)
	}

	switch {
	case in.Name == "":
		return in, invalidInput("name is required")
	case len(in.Name) > 100:
		return in, invalidInput("name must be at most 100 characters")
	case in.Slug == "":
		return in, invalidInput("slug cannot be derived from name %q", in.Name)
	case len(in.Slug) > 120:
		return in, invalidInput("slug must be at most 120 characters")
	case !IsValidSlug(in.Slug):
		return in, invalidInput("slug %q may only contain lowercase letters, digits and single hyphens", in.Slug)
	}
	return in, nil
}

// CreateCategory stores the category and its translation job in one transaction.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*db.Category, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	sourceLang, err := s.resolveSourceLanguage(in.SourceLang, in.Name, in.Description)
	if err != nil {
		return nil, err
	}

	category := &db.Category{
		Name:        in.Name,
		Description: in.Description,
		Slug:        in.Slug,
		SourceLang:  sourceLang,
	}
	err = s.store.WithTx(ctx, func(tx *db.Tx) error {
		if err := tx.CreateCategory(ctx, category); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, category.Ref())
	})
	if err != nil {
		return nil, err
	}

	fillSlots(category, s.Languages())
	s.logger.Info().
		Int64("category_id", category.CategoryID).
		Str("slug", category.Slug).
		Str("source_lang", category.SourceLang).
		Msg("category created")
	return category, nil
}

// GetCategory loads a category and fills its missing language slots before returning it.
func (s *Service) GetCategory(ctx context.Context, categoryID int64) (*db.Category, error) {
	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ensure(ctx, category, false); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context, page Page) ([]db.Category, int64, error) {
	categories, total, err := s.store.ListCategories(ctx, page.params())
	if err != nil {
		return nil, 0, err
	}
	languages := s.Languages()
	for i := range categories {
		fillSlots(&categories[i], languages)
	}
	return categories, total, nil
}

// UpdateCategory replaces the category's fields without scheduling translation.
func (s *Service) UpdateCategory(ctx context.Context, categoryID int64, in CategoryInput) (*db.Category, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	var category *db.Category
	err = s.store.WithTx(ctx, func(tx *db.Tx) error {
		existing, err := tx.GetCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		sourceLang := existing.SourceLang
		if strings.TrimSpace(in.SourceLang) != "" {
			if sourceLang, err = s.resolveSourceLanguage(in.SourceLang); err != nil {
				return err
			}
		}

		existing.Name = in.Name
		existing.Description = in.Description
		existing.Slug = in.Slug
		existing.SourceLang = sourceLang
		if err := tx.UpdateCategory(ctx, existing); err != nil {
			return err
		}
		category = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	fillSlots(category, s.Languages())
	return category, nil
}

func (s *Service) DeleteCategory(ctx context.Context, categoryID int64) error {
	if err := s.store.DeleteCategory(ctx, categoryID); err != nil {
		return err
	}
	s.logger.Info().Int64("category_id", categoryID).Msg("category deleted")
	return nil
}

// RetranslateCategory re-translates every slot of the category. On failure stored slots are unchanged.
func (s *Service) RetranslateCategory(ctx context.Context, categoryID int64) (*db.Category, RetranslateResult, error) {
	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, RetranslateResult{}, err
	}
	stats, err := s.ensure(ctx, category, true)
	if err != nil {
		return nil, RetranslateResult{}, err
	}
	return category, RetranslateResult{Ref: category.Ref(), Stats: stats}, nil
}
