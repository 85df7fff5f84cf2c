package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"horse.fit/catalog/internal/catalog"
)

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SKU         string          `json:"sku"`
	ImageURL    string          `json:"image_url"`
	SourceLang  string          `json:"source_lang"`
}

func (r productRequest) input() catalog.ProductInput {
	return catalog.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		SKU:         r.SKU,
		ImageURL:    r.ImageURL,
		SourceLang:  r.SourceLang,
	}
}

func (s *Server) handleListProducts(c echo.Context) error {
	page, fieldErrs := parsePage(c)
	if fieldErrs != nil {
		return failValidation(c, fieldErrs)
	}

	products, total, err := s.service.ListProducts(c.Request().Context(), page.catalogPage())
	if err != nil {
		return s.respondError(c, "product", err)
	}

	lang := activeLanguage(c)
	items := make([]productView, 0, len(products))
	for i := range products {
		items = append(items, newProductView(&products[i], lang))
	}
	return success(c, map[string]any{
		"items": items,
		"meta": map[string]any{
			"language":            lang,
			"supported_languages": s.negotiator.Supported(),
			"total_products":      total,
		},
		"pagination": page.pagination(total),
	})
}

func (s *Server) handleCreateProduct(c echo.Context) error {
	var req productRequest
	if err := decodeValidated(c.Request().Body, productSchema, &req); err != nil {
		return s.respondError(c, "product", err)
	}

	product, err := s.service.CreateProduct(c.Request().Context(), req.input())
	if err != nil {
		return s.respondError(c, "product", err)
	}
	return successWithStatus(c, http.StatusCreated, newProductView(product, activeLanguage(c)))
}

func (s *Server) handleGetProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	product, err := s.service.GetProduct(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, "product", err)
	}
	return success(c, newProductView(product, activeLanguage(c)))
}

func (s *Server) handleUpdateProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}
	var req productRequest
	if err := decodeValidated(c.Request().Body, productSchema, &req); err != nil {
		return s.respondError(c, "product", err)
	}

	product, err := s.service.UpdateProduct(c.Request().Context(), id, req.input())
	if err != nil {
		return s.respondError(c, "product", err)
	}
	return success(c, newProductView(product, activeLanguage(c)))
}

func (s *Server) handleDeleteProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	if err := s.service.DeleteProduct(c.Request().Context(), id); err != nil {
		return s.respondError(c, "product", err)
	}
	return success(c, nil)
}

func (s *Server) handleRetranslateProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	product, result, err := s.service.RetranslateProduct(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, "product", err)
	}
	lang := activeLanguage(c)
	return success(c, map[string]any{
		"status":     "retranslation completed",
		"product_id": result.Ref.ID,
		"language":   lang,
		"stats":      result.Stats,
		"product":    newProductView(product, lang),
	})
}
