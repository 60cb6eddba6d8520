package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/contactbook/contactbook/internal/auth"
	"github.com/contactbook/contactbook/internal/handler/dto"
	"github.com/contactbook/contactbook/internal/service"
)

// AuthHandler handles registration, login and email confirmation.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	user, err := h.svc.Signup(r.Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_registered", "user_id", user.ID)

	writeJSON(w, http.StatusCreated, dto.SignupResponse{
		User:   dto.ToUserResponse(user),
		Detail: "User successfully created. Check your email for confirmation.",
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	pair, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Refresh handles GET /api/auth/refresh_token. The refresh token is
// presented as a bearer credential.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", service.ErrInvalidRefreshToken.Error())
		return
	}

	pair, err := h.svc.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// ConfirmedEmail handles GET /api/auth/confirmed_email/{token}.
func (h *AuthHandler) ConfirmedEmail(w http.ResponseWriter, r *http.Request) {
	tokenString := chi.URLParam(r, "token")
	if tokenString == "" {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_TOKEN", auth.ErrInvalidEmailToken.Error())
		return
	}

	err := h.svc.ConfirmEmail(r.Context(), tokenString)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Email confirmed"})
	case errors.Is(err, service.ErrAlreadyConfirmed):
		writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Your email is already confirmed"})
	default:
		h.handleServiceError(w, err)
	}
}

// RequestEmail handles POST /api/auth/request_email. It answers the
// same way for unknown addresses as for known ones.
func (h *AuthHandler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.RequestEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	err := h.svc.ResendConfirmation(r.Context(), req.Email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Check your email for confirmation."})
	case errors.Is(err, service.ErrAlreadyConfirmed):
		writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Your email is already confirmed"})
	default:
		h.handleServiceError(w, err)
	}
}

// handleServiceError maps auth service errors to HTTP responses.
func (h *AuthHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "ACCOUNT_EXISTS", "Account already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, service.ErrEmailNotConfirmed):
		writeError(w, http.StatusUnauthorized, "EMAIL_NOT_CONFIRMED", "Email not confirmed")
	case errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", service.ErrInvalidRefreshToken.Error())
	case errors.Is(err, auth.ErrInvalidScope):
		writeError(w, http.StatusUnauthorized, "INVALID_SCOPE", auth.ErrInvalidScope.Error())
	case errors.Is(err, auth.ErrInvalidEmailToken), errors.Is(err, service.ErrVerificationFailed):
		writeError(w, http.StatusUnprocessableEntity, "VERIFICATION_FAILED", "Invalid token for email verification")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// bearerToken extracts a bearer credential from the Authorization
// header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
