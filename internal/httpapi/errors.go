package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/catalog/internal/catalog"
	"horse.fit/catalog/internal/db"
	"horse.fit/catalog/internal/translation"
)

// respondError turns a service error into a jsend response. entity names the resource in messages.
func (s *Server) respondError(c echo.Context, entity string, err error) error {
	var reqErr *requestError
	var gwErr *translation.GatewayError
	switch {
	case errors.As(err, &reqErr):
		return failValidation(c, reqErr.fields)
	case errors.Is(err, catalog.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, db.ErrNotFound):
		return failNotFound(c, entity+" not found")
	case errors.Is(err, db.ErrConflict):
		return fail(c, http.StatusConflict, conflictMessage(entity), nil)
	case errors.As(err, &gwErr):
		return s.respondGatewayError(c, gwErr)
	default:
		s.logger.Error().
			Err(err).
			Str("entity", entity).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Msg("catalog request failed")
		return internalError(c, "Internal server error")
	}
}

func conflictMessage(entity string) string {
	switch entity {
	case "product":
		return "a product with this sku already exists"
	case "category":
		return "a category with this slug already exists"
	default:
		return entity + " already exists"
	}
}

// respondGatewayError reports translation failures as their own kind so clients can tell a provider
// outage from a server bug.
func (s *Server) respondGatewayError(c echo.Context, gwErr *translation.GatewayError) error {
	status, reason, message := gatewayStatus(gwErr)
	data := map[string]any{
		"reason":   reason,
		"provider": gwErr.Provider,
	}

	s.logger.Warn().
		Err(gwErr).
		Str("provider", gwErr.Provider).
		Str("reason", reason).
		Int("status", status).
		Msg("translation gateway failure")

	if status < 500 {
		return fail(c, status, message, data)
	}
	return errorWithStatus(c, status, message, data)
}

func gatewayStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, translation.ErrRateLimited):
		return http.StatusServiceUnavailable, "rate_limited", "Translation provider rate limit reached, retry later"
	case errors.Is(err, translation.ErrProviderUnavailable):
		return http.StatusBadGateway, "unavailable", "Translation provider is unavailable"
	case errors.Is(err, translation.ErrEmptyText):
		return http.StatusUnprocessableEntity, "empty_text", "Text to translate is empty"
	case errors.Is(err, translation.ErrUnsupportedLanguage):
		return http.StatusUnprocessableEntity, "unsupported_language", "Translation provider does not support the requested language"
	default:
		return http.StatusBadGateway, "rejected", "Translation provider rejected the request"
	}
}
