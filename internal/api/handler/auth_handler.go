package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/api/middleware"
	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
	"github.com/99minutos/travel-portal/internal/core/service"
)

// Sessions signs principals in and out and resolves their User document.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*domain.Principal, service.SessionState, error)
	Logout(ctx context.Context, principalID string) error
}

// Identity registers principals and signs session tokens.
type Identity interface {
	Register(ctx context.Context, email, password, displayName string) (*domain.Principal, error)
	IssueToken(principal domain.Principal, user domain.User) (service.SessionToken, error)
}

type AuthHandler struct {
	sessions Sessions
	identity Identity
	users    Store
	denylist ports.TokenDenylist
}

// NewAuthHandler wires the auth endpoints. users and denylist may be nil; a
// nil denylist makes logout end the session without revoking the token.
func NewAuthHandler(sessions Sessions, identity Identity, users Store, denylist ports.TokenDenylist) *AuthHandler {
	return &AuthHandler{sessions: sessions, identity: identity, users: users, denylist: denylist}
}

// Login authenticates a principal, resolves its User document and returns a JWT.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	principal, st, err := h.sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	if st.User == nil {
		return domain.ErrProfileNotFound
	}

	tok, err := h.identity.IssueToken(*principal, *st.User)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{Token: tok.Token, ExpiresAt: tok.ExpiresAt, User: st.User})
}

// Logout ends the provider session and revokes the presented token.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401   {object}  errorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if pid, _ := c.Get(middleware.KeyPrincipalID).(string); pid != "" {
		if err := h.sessions.Logout(ctx, pid); err != nil {
			return err
		}
	}
	if jti, _ := c.Get(middleware.KeyTokenID).(string); jti != "" && h.denylist != nil {
		ttl := time.Until(middleware.TokenExpiry(c))
		if err := h.denylist.Revoke(ctx, jti, ttl); err != nil {
			return err
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Register creates a sign-in principal and, when roles are given, the
// matching User document.
//
// @Summary      Register a principal
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Principal details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	p, err := h.identity.Register(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return err
	}

	resp := registerResponse{Principal: p}
	if len(req.Roles) > 0 && h.users != nil {
		id, err := h.users.AddUser(ctx, service.NewUser{Name: req.DisplayName, Email: req.Email, Roles: req.Roles})
		if err != nil {
			return err
		}
		resp.UserID = id
	}
	return c.JSON(http.StatusCreated, resp)
}

// Me returns the caller as carried by the token.
//
// @Summary      Current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200   {object}  domain.User
// @Router       /v1/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
