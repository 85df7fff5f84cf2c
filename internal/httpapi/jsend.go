package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSend statuses: success carries data, fail is a client error, error is a server or upstream error.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

type jsendResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func reply(c echo.Context, code int, resp jsendResponse) error {
	if resp.Status == statusError {
		resp.Code = code
	}
	return c.JSON(code, resp)
}

func success(c echo.Context, data any) error {
	return successWithStatus(c, http.StatusOK, data)
}

func successWithStatus(c echo.Context, code int, data any) error {
	return reply(c, code, jsendResponse{Status: statusSuccess, Data: data})
}

func fail(c echo.Context, code int, message string, data any) error {
	return reply(c, code, jsendResponse{Status: statusFail, Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

// errorWithStatus is a jsend error for 5xx responses other than a plain internal error.
func errorWithStatus(c echo.Context, code int, message string, data any) error {
	return reply(c, code, jsendResponse{Status: statusError, Message: message, Data: data})
}

func internalError(c echo.Context, message string) error {
	return errorWithStatus(c, http.StatusInternalServerError, message, nil)
}
