package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisAllowlist is a Redis implementation of the allowlist repository. Each
// allowlist is a Redis set of lowercase addresses.
type RedisAllowlist struct {
	client *redis.Client
	prefix string
}

// NewRedisAllowlist creates a Redis-backed allowlist repository.
func NewRedisAllowlist(client *redis.Client) *RedisAllowlist {
	return &RedisAllowlist{
		client: client,
		prefix: "cerberus:allowlist:",
	}
}

// Add inserts an address into the named allowlist.
func (s *RedisAllowlist) Add(ctx context.Context, allowlistID, address string) error {
	key := s.prefix + allowlistID
	if err := s.client.SAdd(ctx, key, strings.ToLower(address)).Err(); err != nil {
		return fmt.Errorf("failed to add allowlist member: %w", err)
	}
	return nil
}

// Remove deletes an address from the named allowlist.
func (s *RedisAllowlist) Remove(ctx context.Context, allowlistID, address string) error {
	key := s.prefix + allowlistID
	if err := s.client.SRem(ctx, key, strings.ToLower(address)).Err(); err != nil {
		return fmt.Errorf("failed to remove allowlist member: %w", err)
	}
	return nil
}

// IsMember reports whether the address belongs to the named allowlist.
func (s *RedisAllowlist) IsMember(ctx context.Context, allowlistID, address string) (bool, error) {
	key := s.prefix + allowlistID
	member, err := s.client.SIsMember(ctx, key, strings.ToLower(address)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check allowlist membership: %w", err)
	}
	return member, nil
}
