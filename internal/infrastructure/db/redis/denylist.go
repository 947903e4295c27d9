package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/travel-portal/internal/core/ports"
)

// TokenDenylist records revoked token ids until the token would have expired.
// Key format: <prefix>revoked:<jti>
type TokenDenylist struct {
	client *redis.Client
	prefix string
}

var _ ports.TokenDenylist = (*TokenDenylist)(nil)

func NewTokenDenylist(client *redis.Client, prefix string) *TokenDenylist {
	return &TokenDenylist{client: client, prefix: prefixed(prefix)}
}

func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.key(tokenID), "1", ttl).Err()
}

func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("denylist check: %w", err)
	}
	return n > 0, nil
}

func (d *TokenDenylist) key(tokenID string) string {
	return d.prefix + "revoked:" + tokenID
}
