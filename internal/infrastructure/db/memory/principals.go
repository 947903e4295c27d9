package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

// Principals is an in-memory PrincipalRepository keyed by lower-cased email.
type Principals struct {
	mu      sync.RWMutex
	byEmail map[string]domain.Credential
}

var _ ports.PrincipalRepository = (*Principals)(nil)

func NewPrincipals() *Principals {
	return &Principals{byEmail: make(map[string]domain.Credential)}
}

func (p *Principals) Create(_ context.Context, cred *domain.Credential) (*domain.Credential, error) {
	key := strings.ToLower(cred.Email)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[key]; exists {
		return nil, domain.ErrPrincipalExists
	}
	stored := *cred
	stored.ID = uuid.NewString()
	p.byEmail[key] = stored
	return &stored, nil
}

func (p *Principals) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cred, ok := p.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cred, nil
}
