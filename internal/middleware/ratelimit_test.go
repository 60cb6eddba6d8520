package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/contactbook/contactbook/internal/auth"
	"github.com/contactbook/contactbook/internal/cache"
	"github.com/contactbook/contactbook/internal/model"
)

func newRateLimitConfig(t *testing.T) RateLimitConfig {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return RateLimitConfig{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cache:   cache.NewFromClient(client),
		Enabled: true,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func userRequest(userID string) *http.Request {
	req := httptest.NewRequest("GET", "/api/contacts", nil)
	ctx := auth.ContextWithUser(req.Context(), &model.User{ID: userID})
	return req.WithContext(ctx)
}

func TestRateLimitUser(t *testing.T) {
	t.Parallel()

	cfg := newRateLimitConfig(t)
	handler := RateLimitUser(cfg, "contacts", 2, time.Minute)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, userRequest("u1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, userRequest("u1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// Another user has an independent window.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, userRequest("u2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("other user: status = %d, want 200", rec.Code)
	}
}

func TestRateLimitUser_Disabled(t *testing.T) {
	t.Parallel()

	cfg := newRateLimitConfig(t)
	cfg.Enabled = false
	handler := RateLimitUser(cfg, "contacts", 1, time.Minute)(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, userRequest("u1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 when disabled", i+1, rec.Code)
		}
	}
}

func TestRateLimitUser_FailsOpenOnRedisError(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	cfg := RateLimitConfig{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cache:   cache.NewFromClient(client),
		Enabled: true,
	}
	handler := RateLimitUser(cfg, "contacts", 1, time.Minute)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, userRequest("u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when Redis is down", rec.Code)
	}
}

func TestRateLimitIP(t *testing.T) {
	t.Parallel()

	cfg := newRateLimitConfig(t)
	handler := RateLimitIP(cfg, "auth", 2, time.Minute)(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("203.0.113.7"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := send("203.0.113.7"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec := send("203.0.113.8"); rec.Code != http.StatusOK {
		t.Fatalf("other IP: status = %d, want 200", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"x-forwarded-for single", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.1:1234", "203.0.113.7"},
		{"x-forwarded-for chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:1234", "203.0.113.7"},
		{"x-real-ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "10.0.0.1:1234", "203.0.113.9"},
		{"remote addr", nil, "10.0.0.1:1234", "10.0.0.1:1234"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
