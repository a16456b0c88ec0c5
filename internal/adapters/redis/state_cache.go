package redis

// Package redis provides Redis-based adapters for the authgate system.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateCache tracks consumed SSO state tokens so each state authorizes a
// single login completion. Entries expire with the state token itself, so
// the cache never needs explicit cleanup.
type StateCache struct {
	client redis.UniversalClient
	prefix string
}

// NewStateCache creates a Redis-backed state cache.
func NewStateCache(client redis.UniversalClient) *StateCache {
	return &StateCache{
		client: client,
		prefix: "sso:state:",
	}
}

// NewStateCacheWithPrefix creates a state cache with a custom key prefix.
func NewStateCacheWithPrefix(client redis.UniversalClient, prefix string) *StateCache {
	return &StateCache{
		client: client,
		prefix: prefix,
	}
}

// MarkUsed records the state id and reports whether this call was the first
// use. SET NX makes the check-and-set atomic across instances.
func (c *StateCache) MarkUsed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if id == "" {
		return false, errors.New("state ID cannot be empty")
	}
	if ttl <= 0 {
		// Already past the token's own expiry; treat as used.
		return false, nil
	}

	first, err := c.client.SetNX(ctx, c.prefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return first, nil
}
