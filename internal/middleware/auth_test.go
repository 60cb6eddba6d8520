package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/contactbook/contactbook/internal/auth"
	"github.com/contactbook/contactbook/internal/model"
)

type fakeResolver struct {
	user *model.User
	err  error
}

func (f *fakeResolver) CurrentUser(_ context.Context, _ string) (*model.User, error) {
	return f.user, f.err
}

func authHandler(resolver TokenResolver) http.Handler {
	mw := Auth(resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.MustUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(user.Email))
	}))
}

func TestAuth_ValidToken(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{user: &model.User{ID: "u1", Email: "ada@example.com"}}
	handler := authHandler(resolver)

	req := httptest.NewRequest("GET", "/api/contacts", nil)
	req.Header.Set("Authorization", "Bearer some-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ada@example.com" {
		t.Errorf("body = %q, want resolved user email", rec.Body.String())
	}
}

func TestAuth_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"bare token", "some-token"},
		{"empty token", "Bearer "},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resolver := &fakeResolver{user: &model.User{ID: "u1"}}
			handler := authHandler(resolver)

			req := httptest.NewRequest("GET", "/api/contacts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "could not validate credentials") {
				t.Errorf("body = %q, want the uniform credential message", rec.Body.String())
			}
			if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q, want Bearer", got)
			}
		})
	}
}

func TestAuth_BadCredential(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{err: auth.ErrUnauthenticated}
	handler := authHandler(resolver)

	req := httptest.NewRequest("GET", "/api/contacts", nil)
	req.Header.Set("Authorization", "Bearer expired-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "could not validate credentials") {
		t.Errorf("body = %q, want the uniform credential message", rec.Body.String())
	}
}

func TestAuth_InfrastructureFailure(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{err: errors.New("redis: connection refused")}
	handler := authHandler(resolver)

	req := httptest.NewRequest("GET", "/api/contacts", nil)
	req.Header.Set("Authorization", "Bearer some-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "redis") {
		t.Errorf("body = %q leaks the backend error", rec.Body.String())
	}
}

func TestBearerToken_CaseInsensitiveScheme(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "bearer some-token")

	token, ok := bearerToken(req)
	if !ok || token != "some-token" {
		t.Fatalf("bearerToken = %q, %v; want some-token, true", token, ok)
	}
}
