package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrDuplicateBooking):
		return http.StatusConflict, domain.ErrDuplicateBooking.Error()
	case errors.Is(err, domain.ErrAlreadyVerified):
		return http.StatusConflict, domain.ErrAlreadyVerified.Error()
	case errors.Is(err, domain.ErrPrincipalExists):
		return http.StatusConflict, "principal already exists"
	case errors.Is(err, domain.ErrEmptyPatch):
		return http.StatusUnprocessableEntity, domain.ErrEmptyPatch.Error()
	case errors.Is(err, domain.ErrUpload):
		logCause(log, err, c)
		return http.StatusBadGateway, "upload failed"
	case errors.Is(err, domain.ErrAIOperation):
		logCause(log, err, c)
		return http.StatusBadGateway, "ai operation failed"
	case errors.Is(err, domain.ErrProfileNotFound):
		logCause(log, err, c)
		return http.StatusServiceUnavailable, "profile unavailable"
	case errors.Is(err, domain.ErrStoreLoading), errors.Is(err, domain.ErrStoreClosed):
		return http.StatusServiceUnavailable, err.Error()
	}

	// Unexpected error: log the real cause, return a generic message.
	logCause(log, err, c)
	return http.StatusInternalServerError, "internal server error"
}

func logCause(log zerolog.Logger, err error, c echo.Context) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")
}

// rootMessage returns the innermost error text, e.g. "customer not found".
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
