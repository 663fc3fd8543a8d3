package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewTokenKey returns a 40-character hex key for a bearer token.
func NewTokenKey() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TokenCache caches token-key -> user-id lookups in redis so the auth
// middleware does not hit the database on every request. A nil cache (or a
// cache built on a nil client) is a valid no-op cache.
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTokenCache(client *redis.Client, ttl time.Duration) *TokenCache {
	return &TokenCache{client: client, ttl: ttl}
}

func (c *TokenCache) cacheKey(key string) string {
	return "authtoken:" + key
}

func (c *TokenCache) Get(ctx context.Context, key string) (uuid.UUID, bool) {
	if c == nil || c.client == nil {
		return uuid.Nil, false
	}
	val, err := c.client.Get(ctx, c.cacheKey(key)).Result()
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *TokenCache) Set(ctx context.Context, key string, userID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Set(ctx, c.cacheKey(key), userID.String(), c.ttl)
}

func (c *TokenCache) Invalidate(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, c.cacheKey(key))
}
