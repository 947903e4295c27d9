package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

// Context keys set by Auth.
const (
	KeyUserID      = "user_id"
	KeyPrincipalID = "principal_id"
	KeyEmail       = "email"
	KeyName        = "name"
	KeyRoles       = "roles"
	KeyTokenID     = "token_id"
	KeyTokenExpiry = "token_exp"
)

// Auth validates the JWT, rejects revoked tokens and injects claims into
// context. denylist may be nil.
func Auth(jwtSecret string, denylist ports.TokenDenylist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request())
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			sub, _ := claims["sub"].(string)
			if sub == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing subject")
			}

			jti, _ := claims["jti"].(string)
			if denylist != nil && jti != "" {
				revoked, err := denylist.IsRevoked(c.Request().Context(), jti)
				if err != nil {
					return err
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
				}
			}

			c.Set(KeyUserID, sub)
			c.Set(KeyPrincipalID, claims["pid"])
			c.Set(KeyEmail, claims["email"])
			c.Set(KeyName, claims["name"])
			c.Set(KeyRoles, rolesClaim(claims["roles"]))
			c.Set(KeyTokenID, jti)
			if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
				c.Set(KeyTokenExpiry, exp.Time)
			}

			return next(c)
		}
	}
}

// bearerToken reads the Authorization header, or the access_token query
// parameter on WebSocket upgrades where browsers cannot set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return ""
		}
		return parts[1]
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func rolesClaim(v any) []domain.Role {
	list, _ := v.([]any)
	roles := make([]domain.Role, 0, len(list))
	for _, r := range list {
		if s, ok := r.(string); ok && domain.Role(s).Valid() {
			roles = append(roles, domain.Role(s))
		}
	}
	return roles
}

// Roles returns the roles Auth stored on the context.
func Roles(c echo.Context) []domain.Role {
	roles, _ := c.Get(KeyRoles).([]domain.Role)
	return roles
}

// TokenExpiry returns the expiry of the current token, or zero.
func TokenExpiry(c echo.Context) time.Time {
	t, _ := c.Get(KeyTokenExpiry).(time.Time)
	return t
}
