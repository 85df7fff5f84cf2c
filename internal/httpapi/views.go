package httpapi

import (
	"time"

	"horse.fit/catalog/internal/db"
)

type productView struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Language     string            `json:"language"`
	Price        string            `json:"price"`
	SKU          string            `json:"sku"`
	ImageURL     string            `json:"image_url,omitempty"`
	SourceLang   string            `json:"source_lang"`
	Base         map[string]string `json:"base"`
	Translations db.Translations   `json:"translations"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type categoryView struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Language     string            `json:"language"`
	Slug         string            `json:"slug"`
	SourceLang   string            `json:"source_lang"`
	Base         map[string]string `json:"base"`
	Translations db.Translations   `json:"translations"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// resolveField returns the slot for lang, falling back to the base value while the slot is empty.
func resolveField(slots db.Translations, lang, field, base string) string {
	if value := slots.Get(lang, field); value != "" {
		return value
	}
	return base
}

func newProductView(p *db.Product, lang string) productView {
	return productView{
		ID:           p.ProductID,
		Name:         resolveField(p.Translations, lang, "name", p.Name),
		Description:  resolveField(p.Translations, lang, "description", p.Description),
		Language:     lang,
		Price:        p.Price.StringFixed(2),
		SKU:          p.SKU,
		ImageURL:     p.ImageURL,
		SourceLang:   p.SourceLang,
		Base:         map[string]string{"name": p.Name, "description": p.Description},
		Translations: nonNil(p.Translations),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func newCategoryView(cat *db.Category, lang string) categoryView {
	return categoryView{
		ID:           cat.CategoryID,
		Name:         resolveField(cat.Translations, lang, "name", cat.Name),
		Description:  resolveField(cat.Translations, lang, "description", cat.Description),
		Language:     lang,
		Slug:         cat.Slug,
		SourceLang:   cat.SourceLang,
		Base:         map[string]string{"name": cat.Name, "description": cat.Description},
		Translations: nonNil(cat.Translations),
		CreatedAt:    cat.CreatedAt,
		UpdatedAt:    cat.UpdatedAt,
	}
}

func nonNil(t db.Translations) db.Translations {
	if t == nil {
		return db.Translations{}
	}
	return t
}
