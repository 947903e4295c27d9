package memory

import (
	"context"
	"sync"
	"time"

	"github.com/99minutos/travel-portal/internal/core/ports"
)

// Denylist is an in-process TokenDenylist used when Redis is disabled.
type Denylist struct {
	mu      sync.Mutex
	now     func() time.Time
	revoked map[string]time.Time
}

var _ ports.TokenDenylist = (*Denylist)(nil)

func NewDenylist() *Denylist {
	return &Denylist{now: time.Now, revoked: make(map[string]time.Time)}
}

func (d *Denylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for id, exp := range d.revoked {
		if !exp.After(now) {
			delete(d.revoked, id)
		}
	}
	d.revoked[tokenID] = now.Add(ttl)
	return nil
}

func (d *Denylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.revoked[tokenID]
	return ok && exp.After(d.now()), nil
}
