package ports

import (
	"context"

	"github.com/99minutos/travel-portal/internal/core/domain"
)

// PrincipalRepository stores identity provider credentials.
type PrincipalRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	// Create returns domain.ErrPrincipalExists when the email is taken.
	Create(ctx context.Context, cred *domain.Credential) (*domain.Credential, error)
}
