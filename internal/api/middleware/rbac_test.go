package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/core/domain"
)

func TestRBAC(t *testing.T) {
	tests := []struct {
		name     string
		held     []domain.Role
		allowed  []domain.Role
		wantCode int
	}{
		{"single matching role", []domain.Role{domain.RoleAdmin}, []domain.Role{domain.RoleAdmin}, http.StatusOK},
		{"any of several roles", []domain.Role{domain.RoleCustomer, domain.RoleAgent}, []domain.Role{domain.RoleAdmin, domain.RoleAgent}, http.StatusOK},
		{"relationship manager kept out of admin route", []domain.Role{domain.RoleRelationshipManager}, []domain.Role{domain.RoleAdmin}, http.StatusForbidden},
		{"customer kept out of agent route", []domain.Role{domain.RoleCustomer}, []domain.Role{domain.RoleAdmin, domain.RoleAgent}, http.StatusForbidden},
		{"no roles at all", []domain.Role{}, []domain.Role{domain.RoleAdmin, domain.RoleAgent, domain.RoleCustomer, domain.RoleRelationshipManager}, http.StatusForbidden},
		{"roles never set", nil, []domain.Role{domain.RoleCustomer}, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if tc.held != nil {
				c.Set(KeyRoles, tc.held)
			}

			called := false
			err := RBAC(tc.allowed...)(func(c echo.Context) error {
				called = true
				return c.NoContent(http.StatusOK)
			})(c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			if called != (tc.wantCode == http.StatusOK) {
				t.Fatalf("next called=%v for status %d", called, rec.Code)
			}
		})
	}
}
