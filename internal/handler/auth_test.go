package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/contactbook/contactbook/internal/auth"
	"github.com/contactbook/contactbook/internal/cache"
	"github.com/contactbook/contactbook/internal/model"
	"github.com/contactbook/contactbook/internal/repository"
	"github.com/contactbook/contactbook/internal/service"
	"github.com/contactbook/contactbook/internal/token"
)

type memUserStore struct {
	byEmail map[string]*model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byEmail: make(map[string]*model.User)}
}

func (s *memUserStore) CreateUser(_ context.Context, user *model.User) error {
	if _, ok := s.byEmail[user.Email]; ok {
		return repository.ErrEmailExists
	}
	clone := *user
	s.byEmail[user.Email] = &clone
	return nil
}

func (s *memUserStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *memUserStore) UpdateRefreshToken(_ context.Context, email string, refreshToken *string) error {
	user, ok := s.byEmail[email]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.RefreshToken = refreshToken
	return nil
}

func (s *memUserStore) ConfirmEmail(_ context.Context, email string) error {
	user, ok := s.byEmail[email]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Confirmed = true
	return nil
}

type noCache struct{}

func (noCache) GetUser(context.Context, string) (*model.User, error) {
	return nil, cache.ErrCacheMiss
}

func (noCache) SetUser(context.Context, *model.User) error { return nil }

type authAPI struct {
	router *chi.Mux
	users  *memUserStore
	issuer *token.Issuer
	svc    *service.AuthService
}

func newAuthAPI(t *testing.T) *authAPI {
	t.Helper()

	issuer, err := token.NewIssuer([]byte("handler-test-secret"), 0, 0)
	require.NoError(t, err)

	users := newMemUserStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := auth.NewGuard(issuer, noCache{}, users, logger)
	svc := service.NewAuthService(users, issuer, guard, nil, "http://localhost:8080", logger)

	h := NewAuthHandler(svc, logger)

	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Get("/refresh_token", h.Refresh)
		r.Get("/confirmed_email/{token}", h.ConfirmedEmail)
		r.Post("/request_email", h.RequestEmail)
	})

	return &authAPI{router: router, users: users, issuer: issuer, svc: svc}
}

func (a *authAPI) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *authAPI) get(t *testing.T, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *authAPI) register(t *testing.T, email string, confirmed bool) {
	t.Helper()
	rec := a.post(t, "/api/auth/signup", map[string]string{
		"username": "ada",
		"email":    email,
		"password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	if confirmed {
		require.NoError(t, a.users.ConfirmEmail(context.Background(), email))
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuthHandler_Signup(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)
	rec := api.post(t, "/api/auth/signup", map[string]string{
		"username": "ada",
		"email":    "ada@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "User successfully created. Check your email for confirmation.", body["detail"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ada@example.com", user["email"])
	require.Equal(t, false, user["confirmed"])
	require.NotContains(t, user, "password")
	require.NotContains(t, user, "password_hash")
}

func TestAuthHandler_Signup_Duplicate(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)
	api.register(t, "ada@example.com", false)

	rec := api.post(t, "/api/auth/signup", map[string]string{
		"username": "ada",
		"email":    "ada@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_Signup_Validation(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"username": "ada", "email": "not-an-email", "password": "correct horse"}},
		{"short password", map[string]string{"username": "ada", "email": "ada@example.com", "password": "short"}},
		{"missing username", map[string]string{"email": "ada@example.com", "password": "correct horse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.post(t, "/api/auth/signup", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)
	api.register(t, "ada@example.com", true)

	rec := api.post(t, "/api/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "bearer", body["token_type"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)
	api.register(t, "ada@example.com", true)
	api.register(t, "new@example.com", false)

	tests := []struct {
		name     string
		email    string
		password string
		want     int
	}{
		{"wrong password", "ada@example.com", "wrong password", http.StatusUnauthorized},
		{"unknown email", "ghost@example.com", "correct horse", http.StatusUnauthorized},
		{"unconfirmed", "new@example.com", "correct horse", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.post(t, "/api/auth/login", map[string]string{
				"email":    tt.email,
				"password": tt.password,
			})
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)
	api.register(t, "ada@example.com", true)

	login := api.post(t, "/api/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, login.Code)
	pair := decodeBody(t, login)

	rec := api.get(t, "/api/auth/refresh_token", pair["refresh_token"].(string))
	require.Equal(t, http.StatusOK, rec.Code)

	refreshed := decodeBody(t, rec)
	require.NotEmpty(t, refreshed["access_token"])
	require.NotEqual(t, pair["refresh_token"], refreshed["refresh_token"])
}

func TestAuthHandler_Refresh_Failures(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)
	api.register(t, "ada@example.com", true)

	access, err := api.issuer.IssueAccess("ada@example.com", 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		bearer string
	}{
		{"no token", ""},
		{"garbage", "not-a-token"},
		{"access token", access},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.get(t, "/api/auth/refresh_token", tt.bearer)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthHandler_ConfirmedEmail(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)
	api.register(t, "ada@example.com", false)

	emailToken, err := api.issuer.IssueEmail("ada@example.com")
	require.NoError(t, err)

	rec := api.get(t, "/api/auth/confirmed_email/"+emailToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Email confirmed", decodeBody(t, rec)["message"])

	rec = api.get(t, "/api/auth/confirmed_email/"+emailToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Your email is already confirmed", decodeBody(t, rec)["message"])
}

func TestAuthHandler_ConfirmedEmail_BadToken(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)

	rec := api.get(t, "/api/auth/confirmed_email/not-a-token", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAuthHandler_RequestEmail_UnknownAddressLooksNormal(t *testing.T) {
	t.Parallel()

	api := newAuthAPI(t)
	api.register(t, "ada@example.com", false)

	known := api.post(t, "/api/auth/request_email", map[string]string{"email": "ada@example.com"})
	unknown := api.post(t, "/api/auth/request_email", map[string]string{"email": "ghost@example.com"})

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	require.Equal(t, decodeBody(t, known)["message"], decodeBody(t, unknown)["message"])
}
