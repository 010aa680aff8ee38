package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRevokedPrefix = "revoked_token:"

// RedisStore is a Redis-backed denylist. Key TTLs do the sweeping; there is
// no background work to run.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(rdb redis.UniversalClient) (*RedisStore, error) {
	if rdb == nil {
		return nil, ErrConfig
	}
	return &RedisStore{rdb: rdb}, nil
}

// Revoke marks fingerprint as revoked until expiresAt. Already-expired
// inputs are a no-op rather than an unbounded key.
func (s *RedisStore) Revoke(ctx context.Context, fingerprint string, expiresAt time.Time) error {
	if !expiresAt.After(time.Now()) {
		return nil
	}
	if err := s.rdb.Set(ctx, redisRevokedPrefix+fingerprint, "1", 0).Err(); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	if err := s.rdb.ExpireAt(ctx, redisRevokedPrefix+fingerprint, expiresAt).Err(); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether fingerprint is revoked.
func (s *RedisStore) IsRevoked(ctx context.Context, _ time.Time, fingerprint string) (bool, error) {
	err := s.rdb.Get(ctx, redisRevokedPrefix+fingerprint).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return true, nil
}
