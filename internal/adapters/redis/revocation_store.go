// Package redis provides Redis-based adapters for marketgate.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/marketgate/internal/ports"
)

const defaultRevocationPrefix = "revoked:"

var _ ports.RevocationStore = (*RevocationStore)(nil)

// RevocationStore records revoked token ids in Redis. Entries expire with the
// token they revoke, so the keyspace stays bounded by live sessions.
type RevocationStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRevocationStore creates a Redis-backed revocation store.
func NewRevocationStore(client redis.UniversalClient) *RevocationStore {
	return NewRevocationStoreWithPrefix(client, defaultRevocationPrefix)
}

// NewRevocationStoreWithPrefix creates a revocation store with a custom key prefix.
func NewRevocationStoreWithPrefix(client redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &RevocationStore{client: client, prefix: prefix, now: time.Now}
}

// Revoke marks tokenID revoked until the given time. Tokens that are already
// past until need no entry and are ignored.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	// Round up so the entry never lapses before the token does.
	ttl = ttl.Truncate(time.Second) + time.Second
	if err := s.client.Set(ctx, s.prefix+tokenID, until.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	err := s.client.Get(ctx, s.prefix+tokenID).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, fmt.Errorf("redis get: %w", err)
}

// ErrEmptyTokenID is returned when revoking a token without a jti.
var ErrEmptyTokenID = errors.New("token id cannot be empty")
