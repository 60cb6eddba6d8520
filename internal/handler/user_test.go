package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/contactbook/contactbook/internal/model"
	"github.com/contactbook/contactbook/internal/service"
)

type memAvatarStore struct{}

func (memAvatarStore) UpdateAvatar(_ context.Context, email, avatarURL string) (*model.User, error) {
	return &model.User{Email: email, Avatar: avatarURL}, nil
}

type memUploader struct{}

func (memUploader) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	return "https://storage.example.com/" + key, nil
}

func newUserRouter(t *testing.T, uploaderEnabled bool) *chi.Mux {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var svc *service.UserService
	if uploaderEnabled {
		svc = service.NewUserService(memAvatarStore{}, memUploader{}, logger)
	} else {
		svc = service.NewUserService(memAvatarStore{}, nil, logger)
	}
	h := NewUserHandler(svc, logger)

	router := chi.NewRouter()
	router.Route("/api/users", func(r chi.Router) {
		r.Use(asUser("u1"))
		r.Get("/me", h.Me)
		r.Put("/avatar", h.UpdateAvatar)
	})
	return router
}

func TestUserHandler_Me(t *testing.T) {
	t.Parallel()

	router := newUserRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "u1", body["id"])
	require.Equal(t, "u1@example.com", body["email"])
}

func avatarRequest(t *testing.T, fieldName string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile(fieldName, "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/users/avatar", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req
}

func TestUserHandler_UpdateAvatar(t *testing.T) {
	t.Parallel()

	router := newUserRouter(t, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, avatarRequest(t, "file"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "https://storage.example.com/avatars/u1.png", body["avatar"])
}

func TestUserHandler_UpdateAvatar_MissingFile(t *testing.T) {
	t.Parallel()

	router := newUserRouter(t, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, avatarRequest(t, "wrong_field"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandler_UpdateAvatar_UploadsDisabled(t *testing.T) {
	t.Parallel()

	router := newUserRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, avatarRequest(t, "file"))

	require.Equal(t, http.StatusNotImplemented, rec.Code)
}
