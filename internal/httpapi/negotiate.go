package httpapi

import (
	"github.com/labstack/echo/v4"

	"horse.fit/catalog/internal/language"
)

const (
	languageContextKey    = "language"
	headerAcceptLanguage  = "Accept-Language"
	headerContentLanguage = "Content-Language"
)

// negotiateLanguage resolves Accept-Language once per request. The code is stored on the request
// context and the echo context, and echoed as Content-Language.
func negotiateLanguage(n *language.Negotiator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			code := n.Resolve(req.Header.Get(headerAcceptLanguage))

			c.Set(languageContextKey, code)
			c.SetRequest(req.WithContext(language.ToContext(req.Context(), code)))
			header := c.Response().Header()
			header.Set(headerContentLanguage, code)
			header.Add(echo.HeaderVary, headerAcceptLanguage)
			return next(c)
		}
	}
}

func activeLanguage(c echo.Context) string {
	if code, ok := c.Get(languageContextKey).(string); ok && code != "" {
		return code
	}
	return language.FromContext(c.Request().Context(), language.DefaultCode)
}
