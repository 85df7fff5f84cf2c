package db

import (
	"context"
	"errors"
	"fmt"
)

func (s *Store) CreateProduct(ctx context.Context, product *Product) error {
	if product == nil {
		return fmt.Errorf("product is nil")
	}
	if err := s.conn(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("insert product: %w", translateError(err))
	}
	return nil
}

// GetProduct loads one product with its language slots.
func (s *Store) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var product Product
	if err := s.conn(ctx).Where("product_id = ?", productID).Take(&product).Error; err != nil {
		if errors.Is(translateError(err), ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query product: %w", err)
	}

	slots, err := s.LoadTranslations(ctx, product.Ref())
	if err != nil {
		return nil, err
	}
	product.Translations = slots
	return &product, nil
}

// ListProducts returns one page of products ordered by id plus the total row count.
func (s *Store) ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error) {
	var total int64
	if err := s.conn(ctx).Model(&Product{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	products := make([]Product, 0, max(params.Limit, 0))
	if err := params.apply(s.conn(ctx).Order("product_id ASC")).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	if len(products) == 0 {
		return products, total, nil
	}

	ids := make([]int64, 0, len(products))
	for _, product := range products {
		ids = append(ids, product.ProductID)
	}
	slotsByID, err := s.loadTranslationsFor(ctx, EntityProduct, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range products {
		products[i].Translations = slotsByID[products[i].ProductID]
	}
	return products, total, nil
}

// UpdateProduct writes the editable columns of product. Language slots are not touched.
func (s *Store) UpdateProduct(ctx context.Context, product *Product) error {
	if product == nil {
		return fmt.Errorf("product is nil")
	}
	res := s.conn(ctx).Model(&Product{}).
		Where("product_id = ?", product.ProductID).
		Updates(map[string]any{
			"name":        product.Name,
			"description": product.Description,
			"price":       product.Price,
			"sku":         product.SKU,
			"image_url":   product.ImageURL,
			"source_lang": product.SourceLang,
			"updated_at":  s.db.NowFunc(),
		})
	if res.Error != nil {
		return fmt.Errorf("update product: %w", translateError(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes the product together with its slots and outstanding jobs.
func (s *Store) DeleteProduct(ctx context.Context, productID int64) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		res := tx.conn(ctx).Where("product_id = ?", productID).Delete(&Product{})
		if res.Error != nil {
			return fmt.Errorf("delete product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		ref := EntityRef{Kind: EntityProduct, ID: productID}
		if err := tx.DeleteTranslations(ctx, ref); err != nil {
			return err
		}
		return tx.DeleteJobsForEntity(ctx, ref)
	})
}
