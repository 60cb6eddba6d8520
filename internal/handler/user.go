package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/contactbook/contactbook/internal/auth"
	"github.com/contactbook/contactbook/internal/handler/dto"
	"github.com/contactbook/contactbook/internal/service"
)

// maxAvatarSize bounds the uploaded image (form memory included).
const maxAvatarSize = 5 << 20

// UserHandler handles profile endpoints for the authenticated user.
type UserHandler struct {
	svc    *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		logger: logger,
	}
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// UpdateAvatar handles PUT /api/users/avatar. The image arrives as a
// multipart form field named "file".
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "expected a multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "failed to read upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	updated, err := h.svc.UpdateAvatar(r.Context(), user, header.Filename, contentType, data)
	if err != nil {
		if errors.Is(err, service.ErrUploadsDisabled) {
			writeError(w, http.StatusNotImplemented, "UPLOADS_DISABLED", service.ErrUploadsDisabled.Error())
			return
		}
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(updated))
}
