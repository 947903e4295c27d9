package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/travel-portal/internal/core/ports"
)

const bookingClaimTTL = 24 * time.Hour

// BookingGuard claims (customer, itinerary) pairs with SETNX so two concurrent
// booking requests cannot both pass the snapshot check.
// Key format: <prefix>booking:<customer_id>:<itinerary_id>
type BookingGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ports.BookingGuard = (*BookingGuard)(nil)

// NewBookingGuard uses DefaultKeyPrefix when prefix is empty.
func NewBookingGuard(client *redis.Client, prefix string) *BookingGuard {
	return &BookingGuard{client: client, prefix: prefixed(prefix), ttl: bookingClaimTTL}
}

// Claim reports whether this caller now owns the pair.
func (g *BookingGuard) Claim(ctx context.Context, customerID, itineraryID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(customerID, itineraryID), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("booking claim: %w", err)
	}
	return ok, nil
}

// Release drops a claim whose booking write failed.
func (g *BookingGuard) Release(ctx context.Context, customerID, itineraryID string) error {
	return g.client.Del(ctx, g.key(customerID, itineraryID)).Err()
}

func (g *BookingGuard) key(customerID, itineraryID string) string {
	return fmt.Sprintf("%sbooking:%s:%s", g.prefix, customerID, itineraryID)
}
