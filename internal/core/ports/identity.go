package ports

import (
	"context"
	"time"

	"github.com/99minutos/travel-portal/internal/core/domain"
)

// AuthEvent is emitted on every session transition. Principal is nil on sign-out.
type AuthEvent struct {
	PrincipalID string
	Principal   *domain.Principal
}

// AuthStateFunc observes session transitions.
type AuthStateFunc func(AuthEvent)

// IdentityProvider authenticates credentials and reports session transitions.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*domain.Principal, error)
	SignOut(ctx context.Context, principalID string) error
	OnAuthStateChanged(fn AuthStateFunc) Unsubscribe
}

// TokenDenylist remembers revoked session tokens until they expire.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
