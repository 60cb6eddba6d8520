package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/contactbook/contactbook/internal/model"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewFromClient(client), mr
}

func testUser() *model.User {
	refresh := "some-refresh-token"
	return &model.User{
		ID:           "0b5e9c1e-1111-4222-8333-444455556666",
		Username:     "adabyron",
		Email:        "a@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		Avatar:       "https://example.com/avatar.png",
		RefreshToken: &refresh,
		Confirmed:    true,
		CreatedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGetUser_Miss(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)

	_, err := c.GetUser(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("GetUser error = %v, want ErrCacheMiss", err)
	}
}

func TestSetUser_GetUser_RoundTrip(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	user := testUser()

	if err := c.SetUser(context.Background(), user); err != nil {
		t.Fatalf("SetUser error: %v", err)
	}

	got, err := c.GetUser(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}

	if got.ID != user.ID || got.Username != user.Username || got.Email != user.Email {
		t.Errorf("got %+v, want %+v", got, user)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Error("password hash should survive the cache round trip")
	}
	if got.RefreshToken == nil || *got.RefreshToken != *user.RefreshToken {
		t.Error("refresh token should survive the cache round trip")
	}
	if !got.Confirmed {
		t.Error("confirmed flag should survive the cache round trip")
	}

	// Key and TTL invariants
	key := "user:" + user.Email
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl != UserTTL {
		t.Errorf("TTL = %v, want %v", ttl, UserTTL)
	}
}

func TestGetUser_ExpiredEntry(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	user := testUser()

	if err := c.SetUser(context.Background(), user); err != nil {
		t.Fatalf("SetUser error: %v", err)
	}

	mr.FastForward(UserTTL + time.Second)

	if _, err := c.GetUser(context.Background(), user.Email); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("GetUser after expiry error = %v, want ErrCacheMiss", err)
	}
}

func TestGetUser_CorruptEntry(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)

	if err := mr.Set("user:broken@example.com", "{not json"); err != nil {
		t.Fatalf("seed miniredis: %v", err)
	}

	if _, err := c.GetUser(context.Background(), "broken@example.com"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("GetUser error = %v, want ErrCacheMiss", err)
	}
	if mr.Exists("user:broken@example.com") {
		t.Error("corrupt entry should be dropped")
	}
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	user := testUser()

	if err := c.SetUser(context.Background(), user); err != nil {
		t.Fatalf("SetUser error: %v", err)
	}
	if err := c.DeleteUser(context.Background(), user.Email); err != nil {
		t.Fatalf("DeleteUser error: %v", err)
	}
	if mr.Exists("user:" + user.Email) {
		t.Error("entry should be gone after delete")
	}
}

func TestCheckUserRateLimit_Window(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := c.CheckUserRateLimit(ctx, "u1", "contacts", 3, 8*time.Second)
		if err != nil {
			t.Fatalf("CheckUserRateLimit error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, err := c.CheckUserRateLimit(ctx, "u1", "contacts", 3, 8*time.Second)
	if err != nil {
		t.Fatalf("CheckUserRateLimit error: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth request in window should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}

	// A different user is unaffected
	other, err := c.CheckUserRateLimit(ctx, "u2", "contacts", 3, 8*time.Second)
	if err != nil {
		t.Fatalf("CheckUserRateLimit error: %v", err)
	}
	if !other.Allowed {
		t.Error("limit should be per user")
	}

	// Window reset
	mr.FastForward(9 * time.Second)
	res, err = c.CheckUserRateLimit(ctx, "u1", "contacts", 3, 8*time.Second)
	if err != nil {
		t.Fatalf("CheckUserRateLimit error: %v", err)
	}
	if !res.Allowed {
		t.Error("request after window reset should be allowed")
	}
}

func TestHashIP_Properties(t *testing.T) {
	t.Parallel()

	if hashIP("10.0.0.1") != hashIP("10.0.0.1") {
		t.Error("same IP should hash identically")
	}
	if hashIP("10.0.0.1") == hashIP("10.0.0.2") {
		t.Error("different IPs should hash differently")
	}
	if len(hashIP("::1")) != 16 {
		t.Errorf("hash length = %d, want 16", len(hashIP("::1")))
	}
}
