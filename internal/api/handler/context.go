package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/api/middleware"
	"github.com/99minutos/travel-portal/internal/core/domain"
)

// currentUser rebuilds the caller's User from the claims injected by the Auth
// middleware. The subject must be present; it proves the middleware ran.
func currentUser(c echo.Context) (*domain.User, error) {
	id, _ := c.Get(middleware.KeyUserID).(string)
	if id == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	email, _ := c.Get(middleware.KeyEmail).(string)
	name, _ := c.Get(middleware.KeyName).(string)
	return &domain.User{
		ID:    id,
		Email: email,
		Name:  name,
		Roles: middleware.Roles(c),
	}, nil
}

// bindValid binds the request body into req and runs the validator.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
