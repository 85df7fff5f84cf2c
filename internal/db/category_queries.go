package db

import (
	"context"
	"errors"
	"fmt"
)

func (s *Store) CreateCategory(ctx context.Context, category *Category) error {
	if category == nil {
		return fmt.Errorf("category is nil")
	}
	if err := s.conn(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("insert category: %w", translateError(err))
	}
	return nil
}

// GetCategory loads one category with its language slots.
func (s *Store) GetCategory(ctx context.Context, categoryID int64) (*Category, error) {
	var category Category
	if err := s.conn(ctx).Where("category_id = ?", categoryID).Take(&category).Error; err != nil {
		if errors.Is(translateError(err), ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query category: %w", err)
	}

	slots, err := s.LoadTranslations(ctx, category.Ref())
	if err != nil {
		return nil, err
	}
	category.Translations = slots
	return &category, nil
}

// ListCategories returns one page of categories ordered by id plus the total row count.
func (s *Store) ListCategories(ctx context.Context, params ListParams) ([]Category, int64, error) {
	var total int64
	if err := s.conn(ctx).Model(&Category{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}

	categories := make([]Category, 0, max(params.Limit, 0))
	if err := params.apply(s.conn(ctx).Order("category_id ASC")).Find(&categories).Error; err != nil {
		return nil, 0, fmt.Errorf("query categories: %w", err)
	}
	if len(categories) == 0 {
		return categories, total, nil
	}

	ids := make([]int64, 0, len(categories))
	for _, category := range categories {
		ids = append(ids, category.CategoryID)
	}
	slotsByID, err := s.loadTranslationsFor(ctx, EntityCategory, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range categories {
		categories[i].Translations = slotsByID[categories[i].CategoryID]
	}
	return categories, total, nil
}

// UpdateCategory writes the editable columns of category. Language slots are not touched.
func (s *Store) UpdateCategory(ctx context.Context, category *Category) error {
	if category == nil {
		return fmt.Errorf("category is nil")
	}
	res := s.conn(ctx).Model(&Category{}).
		Where("category_id = ?", category.CategoryID).
		Updates(map[string]any{
			"name":        category.Name,
			"description": category.Description,
			"slug":        category.Slug,
			"source_lang": category.SourceLang,
			"updated_at":  s.db.NowFunc(),
		})
	if res.Error != nil {
		return fmt.Errorf("update category: %w", translateError(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory removes the category together with its slots and outstanding jobs.
func (s *Store) DeleteCategory(ctx context.Context, categoryID int64) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		res := tx.conn(ctx).Where("category_id = ?", categoryID).Delete(&Category{})
		if res.Error != nil {
			return fmt.Errorf("delete category: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		ref := EntityRef{Kind: EntityCategory, ID: categoryID}
		if err := tx.DeleteTranslations(ctx, ref); err != nil {
			return err
		}
		return tx.DeleteJobsForEntity(ctx, ref)
	})
}
