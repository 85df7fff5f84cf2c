package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"
)

// SlotValue is one language slot write.
type SlotValue struct {
	Lang         string
	Field        string
	Value        string
	ProviderName string
}

// LoadTranslations returns the stored slots of one entity. Missing slots are simply absent.
func (s *Store) LoadTranslations(ctx context.Context, ref EntityRef) (Translations, error) {
	byID, err := s.loadTranslationsFor(ctx, ref.Kind, []int64{ref.ID})
	if err != nil {
		return nil, err
	}
	if slots, ok := byID[ref.ID]; ok {
		return slots, nil
	}
	return Translations{}, nil
}

func (s *Store) loadTranslationsFor(ctx context.Context, kind EntityKind, ids []int64) (map[int64]Translations, error) {
	out := make(map[int64]Translations, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []FieldTranslation
	err := s.conn(ctx).
		Where("entity_kind = ? AND entity_id IN ?", string(kind), ids).
		Order("entity_id, lang, field").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query field translations: %w", err)
	}

	for _, id := range ids {
		out[id] = Translations{}
	}
	for _, row := range rows {
		out[row.EntityID].Set(row.Lang, row.Field, row.Value)
	}
	return out, nil
}

// UpsertTranslations writes all slots in a single transaction. Either every slot is stored or none is.
// It returns ErrNotFound once the entity is gone, so a job racing a delete leaves no orphaned slots.
func (s *Store) UpsertTranslations(ctx context.Context, ref EntityRef, slots []SlotValue) error {
	if len(slots) == 0 {
		return nil
	}

	now := s.db.NowFunc()
	rows := make([]FieldTranslation, 0, len(slots))
	for _, slot := range slots {
		rows = append(rows, FieldTranslation{
			EntityKind:   string(ref.Kind),
			EntityID:     ref.ID,
			Field:        slot.Field,
			Lang:         slot.Lang,
			Value:        slot.Value,
			ProviderName: slot.ProviderName,
			UpdatedAt:    now,
		})
	}

	return s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.lockEntity(ctx, ref); err != nil {
			return err
		}
		err := tx.conn(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "entity_kind"},
					{Name: "entity_id"},
					{Name: "field"},
					{Name: "lang"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"value", "provider_name", "updated_at"}),
			}).
			Create(&rows).Error
		if err != nil {
			return fmt.Errorf("upsert field translations for %s: %w", ref, err)
		}
		return nil
	})
}

// lockEntity holds the entity row until the transaction ends. SQLite has no row locks; its single writer
// gives the same ordering.
func (s *Store) lockEntity(ctx context.Context, ref EntityRef) error {
	var (
		model  any
		column string
	)
	switch ref.Kind {
	case EntityProduct:
		model, column = &Product{}, "product_id"
	case EntityCategory:
		model, column = &Category{}, "category_id"
	default:
		return fmt.Errorf("unknown entity kind %q", ref.Kind)
	}

	var ids []int64
	err := s.conn(ctx).
		Model(model).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where(column+" = ?", ref.ID).
		Limit(1).
		Pluck(column, &ids).Error
	if err != nil {
		return fmt.Errorf("lock %s: %w", ref, err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTranslations(ctx context.Context, ref EntityRef) error {
	err := s.conn(ctx).
		Where("entity_kind = ? AND entity_id = ?", string(ref.Kind), ref.ID).
		Delete(&FieldTranslation{}).Error
	if err != nil {
		return fmt.Errorf("delete field translations for %s: %w", ref, err)
	}
	return nil
}
