package memory

import (
	"context"
	"sync"
	"time"

	"github.com/99minutos/travel-portal/internal/core/ports"
)

const bookingClaimTTL = 24 * time.Hour

type claimKey struct{ customerID, itineraryID string }

// BookingGuard is an in-process BookingGuard used when Redis is disabled.
// Claims expire after the same window as the Redis guard.
type BookingGuard struct {
	mu     sync.Mutex
	now    func() time.Time
	ttl    time.Duration
	claims map[claimKey]time.Time
}

var _ ports.BookingGuard = (*BookingGuard)(nil)

func NewBookingGuard() *BookingGuard {
	return &BookingGuard{now: time.Now, ttl: bookingClaimTTL, claims: make(map[claimKey]time.Time)}
}

// Claim reports whether this caller now owns the pair.
func (g *BookingGuard) Claim(_ context.Context, customerID, itineraryID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	k := claimKey{customerID, itineraryID}
	if exp, ok := g.claims[k]; ok && exp.After(now) {
		return false, nil
	}
	for key, exp := range g.claims {
		if !exp.After(now) {
			delete(g.claims, key)
		}
	}
	g.claims[k] = now.Add(g.ttl)
	return true, nil
}

// Release drops a claim whose booking write failed.
func (g *BookingGuard) Release(_ context.Context, customerID, itineraryID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, claimKey{customerID, itineraryID})
	return nil
}
