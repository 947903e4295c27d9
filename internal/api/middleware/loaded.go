package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/core/domain"
)

// LoadState reports whether the data store is still assembling its first
// complete snapshot.
type LoadState interface {
	Loading() bool
}

// RequireLoaded rejects requests with domain.ErrStoreLoading until the store
// has finished its initial load.
func RequireLoaded(store LoadState) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if store.Loading() {
				return domain.ErrStoreLoading
			}
			return next(c)
		}
	}
}
