package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/catalog/internal/catalog"
)

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
	SourceLang  string `json:"source_lang"`
}

func (r categoryRequest) input() catalog.CategoryInput {
	return catalog.CategoryInput{
		Name:        r.Name,
		Description: r.Description,
		Slug:        r.Slug,
		SourceLang:  r.SourceLang,
	}
}

func (s *Server) handleListCategories(c echo.Context) error {
	page, fieldErrs := parsePage(c)
	if fieldErrs != nil {
		return failValidation(c, fieldErrs)
	}

	categories, total, err := s.service.ListCategories(c.Request().Context(), page.catalogPage())
	if err != nil {
		return s.respondError(c, "category", err)
	}

	lang := activeLanguage(c)
	items := make([]categoryView, 0, len(categories))
	for i := range categories {
		items = append(items, newCategoryView(&categories[i], lang))
	}
	return success(c, map[string]any{
		"items": items,
		"meta": map[string]any{
			"language":            lang,
			"supported_languages": s.negotiator.Supported(),
			"total_categories":    total,
		},
		"pagination": page.pagination(total),
	})
}

func (s *Server) handleCreateCategory(c echo.Context) error {
	var req categoryRequest
	if err := decodeValidated(c.Request().Body, categorySchema, &req); err != nil {
		return s.respondError(c, "category", err)
	}

	category, err := s.service.CreateCategory(c.Request().Context(), req.input())
	if err != nil {
		return s.respondError(c, "category", err)
	}
	return successWithStatus(c, http.StatusCreated, newCategoryView(category, activeLanguage(c)))
}

func (s *Server) handleGetCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	category, err := s.service.GetCategory(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, "category", err)
	}
	return success(c, newCategoryView(category, activeLanguage(c)))
}

func (s *Server) handleUpdateCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}
	var req categoryRequest
	if err := decodeValidated(c.Request().Body, categorySchema, &req); err != nil {
		return s.respondError(c, "category", err)
	}

	category, err := s.service.UpdateCategory(c.Request().Context(), id, req.input())
	if err != nil {
		return s.respondError(c, "category", err)
	}
	return success(c, newCategoryView(category, activeLanguage(c)))
}

func (s *Server) handleDeleteCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	if err := s.service.DeleteCategory(c.Request().Context(), id); err != nil {
		return s.respondError(c, "category", err)
	}
	return success(c, nil)
}

func (s *Server) handleRetranslateCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	category, result, err := s.service.RetranslateCategory(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, "category", err)
	}
	lang := activeLanguage(c)
	return success(c, map[string]any{
		"status":      "retranslation completed",
		"category_id": result.Ref.ID,
		"language":    lang,
		"stats":       result.Stats,
		"category":    newCategoryView(category, lang),
	})
}
