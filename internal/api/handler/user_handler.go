package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/service"
)

// UserHandler serves admin user management.
type UserHandler struct {
	store Store
}

func NewUserHandler(store Store) *UserHandler {
	return &UserHandler{store: store}
}

// List returns every user.
//
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   domain.User
// @Router       /v1/users [get]
func (h *UserHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Users())
}

// @Summary      Create user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      userRequest  true  "User"
// @Success      201   {object}  createdResponse
// @Failure      400   {object}  errorResponse
// @Router       /v1/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req userRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	id, err := h.store.AddUser(c.Request().Context(), service.NewUser{Name: req.Name, Email: req.Email, Roles: req.Roles})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// @Summary      Replace user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Param        id    path      string       true  "User ID"
// @Param        body  body      userRequest  true  "User"
// @Success      204
// @Failure      404   {object}  errorResponse
// @Router       /v1/users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	var req userRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u := domain.User{ID: c.Param("id"), Name: req.Name, Email: req.Email, Roles: req.Roles}
	if err := h.store.UpdateUser(c.Request().Context(), u); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary      Delete user
// @Tags         users
// @Security     BearerAuth
// @Param        id  path  string  true  "User ID"
// @Success      204
// @Router       /v1/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.store.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
