package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"horse.fit/catalog/internal/db"
)

var maxPrice = decimal.New(1, 8)

// ProductInput is the writable part of a product. SourceLang may be empty.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	SKU         string
	ImageURL    string
	SourceLang  string
}

func (in ProductInput) normalize() (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.SKU = strings.TrimSpace(in.SKU)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	switch {
	case in.Name == "":
		return in, invalidInput("name is required")
	case len(in.Name) > 200:
		return in, invalidInput("name must be at most 200 characters")
	case in.SKU == "":
		return in, invalidInput("sku is required")
	case len(in.SKU) > 100:
		return in, invalidInput("sku must be at most 100 characters")
	case in.Price.IsNegative():
		return in, invalidInput("price must not be negative")
	case in.Price.GreaterThanOrEqual(maxPrice):
		return in, invalidInput("price must be below %s", maxPrice.String())
	case !in.Price.Round(2).Equal(in.Price):
		return in, invalidInput("price must have at most two decimal places")
	}
	return in, nil
}

// CreateProduct stores the product and its translation job in one transaction.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*db.Product, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	sourceLang, err := s.resolveSourceLanguage(in.SourceLang, in.Name, in.Description)
	if err != nil {
		return nil, err
	}

	product := &db.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		SKU:         in.SKU,
		ImageURL:    in.ImageURL,
		SourceLang:  sourceLang,
	}
	err = s.store.WithTx(ctx, func(tx *db.Tx) error {
		if err := tx.CreateProduct(ctx, product); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, product.Ref())
	})
	if err != nil {
		return nil, err
	}

	fillSlots(product, s.Languages())
	s.logger.Info().
		Int64("product_id", product.ProductID).
		Str("source_lang", product.SourceLang).
		Msg("product created")
	return product, nil
}

// GetProduct loads a product and fills its missing language slots before returning it.
func (s *Service) GetProduct(ctx context.Context, productID int64) (*db.Product, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ensure(ctx, product, false); err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns one page of products with their stored slots. No translation is attempted.
func (s *Service) ListProducts(ctx context.Context, page Page) ([]db.Product, int64, error) {
	products, total, err := s.store.ListProducts(ctx, page.params())
	if err != nil {
		return nil, 0, err
	}
	languages := s.Languages()
	for i := range products {
		fillSlots(&products[i], languages)
	}
	return products, total, nil
}

// UpdateProduct replaces the product's fields. Existing translations are kept and no job is scheduled;
// use RetranslateProduct to refresh them.
func (s *Service) UpdateProduct(ctx context.Context, productID int64, in ProductInput) (*db.Product, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	var product *db.Product
	err = s.store.WithTx(ctx, func(tx *db.Tx) error {
		existing, err := tx.GetProduct(ctx, productID)
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
		existing.Price = in.Price
		existing.SKU = in.SKU
		existing.ImageURL = in.ImageURL
		existing.SourceLang = sourceLang
		if err := tx.UpdateProduct(ctx, existing); err != nil {
			return err
		}
		product = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	fillSlots(product, s.Languages())
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, productID int64) error {
	if err := s.store.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.logger.Info().Int64("product_id", productID).Msg("product deleted")
	return nil
}

// RetranslateProduct re-translates every slot of the product. On failure stored slots are unchanged.
func (s *Service) RetranslateProduct(ctx context.Context, productID int64) (*db.Product, RetranslateResult, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, RetranslateResult{}, err
	}
	stats, err := s.ensure(ctx, product, true)
	if err != nil {
		return nil, RetranslateResult{}, err
	}
	return product, RetranslateResult{Ref: product.Ref(), Stats: stats}, nil
}
