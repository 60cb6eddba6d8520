package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/contactbook/contactbook/internal/auth"
	"github.com/contactbook/contactbook/internal/handler/dto"
	"github.com/contactbook/contactbook/internal/service"
)

// ContactHandler handles HTTP requests for the address book. All
// routes run behind the auth middleware, so the owner is always on
// the request context.
type ContactHandler struct {
	svc    *service.ContactService
	logger *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(svc *service.ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/contacts.
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ContactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	user := auth.MustUserFromContext(r.Context())

	contact, err := h.svc.Create(r.Context(), user.ID, contactInput(req))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("contact_created", "contact_id", contact.ID, "user_id", user.ID)

	writeJSON(w, http.StatusCreated, dto.ToContactResponse(contact))
}

// List handles GET /api/contacts.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	contacts, err := h.svc.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToContactListResponse(contacts))
}

// Get handles GET /api/contacts/{id}.
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	contact, err := h.svc.Get(r.Context(), id, user.ID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToContactResponse(contact))
}

// Update handles PUT /api/contacts/{id}.
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.ContactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	user := auth.MustUserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	contact, err := h.svc.Update(r.Context(), id, user.ID, contactInput(req))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToContactResponse(contact))
}

// Delete handles DELETE /api/contacts/{id}.
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), id, user.ID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("contact_deleted", "contact_id", id, "user_id", user.ID)

	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/contacts/search/?q=.
func (h *ContactHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "MISSING_QUERY", "query parameter q is required")
		return
	}

	contacts, err := h.svc.Search(r.Context(), user.ID, query)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToContactListResponse(contacts))
}

// UpcomingBirthdays handles GET /api/contacts/upcoming-birthdays/.
func (h *ContactHandler) UpcomingBirthdays(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	contacts, err := h.svc.UpcomingBirthdays(r.Context(), user.ID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToContactListResponse(contacts))
}

// handleServiceError maps contact service errors to HTTP responses.
func (h *ContactHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrContactNotFound):
		writeError(w, http.StatusNotFound, "CONTACT_NOT_FOUND", "Contact not found")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

func contactInput(req dto.ContactRequest) service.ContactInput {
	return service.ContactInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		BirthDate:   req.BirthDate.Time,
	}
}
