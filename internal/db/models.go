package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind names a translatable catalog table.
type EntityKind string

const (
	EntityProduct  EntityKind = "product"
	EntityCategory EntityKind = "category"
)

// TranslatableFields lists the base fields every catalog entity translates.
var TranslatableFields = []string{"name", "description"}

// EntityRef identifies one catalog row.
type EntityRef struct {
	Kind EntityKind
	ID   int64
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Product maps products.
type Product struct {
	ProductID   int64           `gorm:"column:product_id;primaryKey;autoIncrement"`
	Name        string          `gorm:"column:name;type:varchar(200);not null"`
	Description string          `gorm:"column:description;type:text;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	SKU         string          `gorm:"column:sku;type:varchar(100);not null;uniqueIndex:ux_products_sku"`
	ImageURL    string          `gorm:"column:image_url;type:text;not null"`
	SourceLang  string          `gorm:"column:source_lang;type:varchar(16);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;not null"`

	Translations Translations `gorm:"-"`
}

func (Product) TableName() string { return "products" }

func (p *Product) Ref() EntityRef {
	return EntityRef{Kind: EntityProduct, ID: p.ProductID}
}

func (p *Product) BaseValue(field string) (string, bool) {
	switch field {
	case "name":
		return p.Name, true
	case "description":
		return p.Description, true
	default:
		return "", false
	}
}

func (p *Product) SourceLanguage() string { return p.SourceLang }

func (p *Product) Slots() Translations { return p.Translations }

func (p *Product) SetSlots(t Translations) { p.Translations = t }

// Category maps categories.
type Category struct {
	CategoryID  int64     `gorm:"column:category_id;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;type:varchar(100);not null"`
	Description string    `gorm:"column:description;type:text;not null"`
	Slug        string    `gorm:"column:slug;type:varchar(120);not null;uniqueIndex:ux_categories_slug"`
	SourceLang  string    `gorm:"column:source_lang;type:varchar(16);not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`

	Translations Translations `gorm:"-"`
}

func (Category) TableName() string { return "categories" }

func (c *Category) Ref() EntityRef {
	return EntityRef{Kind: EntityCategory, ID: c.CategoryID}
}

func (c *Category) BaseValue(field string) (string, bool) {
	switch field {
	case "name":
		return c.Name, true
	case "description":
		return c.Description, true
	default:
		return "", false
	}
}

func (c *Category) SourceLanguage() string { return c.SourceLang }

func (c *Category) Slots() Translations { return c.Translations }

func (c *Category) SetSlots(t Translations) { c.Translations = t }

// FieldTranslation maps field_translations: one language slot of one translatable field.
type FieldTranslation struct {
	FieldTranslationID int64     `gorm:"column:field_translation_id;primaryKey;autoIncrement"`
	EntityKind         string    `gorm:"column:entity_kind;type:varchar(32);not null;uniqueIndex:ux_field_translations_slot,priority:1"`
	EntityID           int64     `gorm:"column:entity_id;not null;uniqueIndex:ux_field_translations_slot,priority:2"`
	Field              string    `gorm:"column:field;type:varchar(64);not null;uniqueIndex:ux_field_translations_slot,priority:3"`
	Lang               string    `gorm:"column:lang;type:varchar(16);not null;uniqueIndex:ux_field_translations_slot,priority:4"`
	Value              string    `gorm:"column:value;type:text;not null"`
	ProviderName       string    `gorm:"column:provider_name;type:varchar(64);not null"`
	UpdatedAt          time.Time `gorm:"column:updated_at;not null"`
}

func (FieldTranslation) TableName() string { return "field_translations" }

// Translation job statuses.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusDead    = "dead"
)

// TranslationJob maps translation_jobs, the outbox of post-create translation work.
type TranslationJob struct {
	JobID         int64      `gorm:"column:job_id;primaryKey;autoIncrement"`
	EntityKind    string     `gorm:"column:entity_kind;type:varchar(32);not null;index:ix_translation_jobs_entity,priority:1"`
	EntityID      int64      `gorm:"column:entity_id;not null;index:ix_translation_jobs_entity,priority:2"`
	Fields        string     `gorm:"column:fields;type:text;not null"`
	Status        string     `gorm:"column:status;type:varchar(16);not null;index:ix_translation_jobs_status"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LockedAt      *time.Time `gorm:"column:locked_at"`
	LastError     *string    `gorm:"column:last_error;type:text"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;not null"`
}

func (TranslationJob) TableName() string { return "translation_jobs" }

func (j TranslationJob) Ref() EntityRef {
	return EntityRef{Kind: EntityKind(j.EntityKind), ID: j.EntityID}
}

func (j TranslationJob) FieldList() []string {
	parts := strings.Split(j.Fields, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if field := strings.TrimSpace(part); field != "" {
			out = append(out, field)
		}
	}
	return out
}

func autoMigrateModels() []any {
	return []any{
		&Product{},
		&Category{},
		&FieldTranslation{},
		&TranslationJob{},
	}
}
