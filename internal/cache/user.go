package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contactbook/contactbook/internal/model"
)

const (
	// userKeyPrefix is the Redis key prefix for cached user snapshots.
	userKeyPrefix = "user:"
	// UserTTL is the time-to-live for cached user snapshots. Entries
	// are never evicted on user mutation; a stale snapshot may be
	// served for up to this window.
	UserTTL = 900 * time.Second
)

// ErrCacheMiss indicates the requested key is not in the cache.
var ErrCacheMiss = errors.New("cache miss")

// cachedUser is the serialized snapshot of a User at cache-population
// time. Kept separate from model.User so fields hidden from API
// responses still round-trip through the cache.
type cachedUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Avatar       string    `json:"avatar"`
	RefreshToken *string   `json:"refresh_token"`
	Confirmed    bool      `json:"confirmed"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetUser retrieves a cached user snapshot by email.
// Returns ErrCacheMiss if absent; transport errors are returned as-is.
func (c *Cache) GetUser(ctx context.Context, email string) (*model.User, error) {
	key := userKeyPrefix + email

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cached cachedUser
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted entry - drop it and treat as a miss
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}

	return &model.User{
		ID:           cached.ID,
		Username:     cached.Username,
		Email:        cached.Email,
		PasswordHash: cached.PasswordHash,
		Avatar:       cached.Avatar,
		RefreshToken: cached.RefreshToken,
		Confirmed:    cached.Confirmed,
		CreatedAt:    cached.CreatedAt,
	}, nil
}

// SetUser caches a snapshot of the user under "user:<email>" with the
// fixed TTL.
func (c *Cache) SetUser(ctx context.Context, user *model.User) error {
	key := userKeyPrefix + user.Email

	cached := cachedUser{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Avatar:       user.Avatar,
		RefreshToken: user.RefreshToken,
		Confirmed:    user.Confirmed,
		CreatedAt:    user.CreatedAt,
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal user snapshot: %w", err)
	}

	if err := c.client.Set(ctx, key, data, UserTTL).Err(); err != nil {
		return fmt.Errorf("cache user snapshot: %w", err)
	}
	return nil
}

// DeleteUser removes a cached user snapshot. Not called on the hot
// path; exposed for operational tooling.
func (c *Cache) DeleteUser(ctx context.Context, email string) error {
	return c.client.Del(ctx, userKeyPrefix+email).Err()
}
