package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/contactbook/contactbook/internal/auth"
	"github.com/contactbook/contactbook/internal/model"
)

// TokenResolver resolves a bearer access token to a user and stores
// it for the request. The auth.Guard satisfies this.
type TokenResolver interface {
	CurrentUser(ctx context.Context, tokenString string) (*model.User, error)
}

// Auth returns middleware that authenticates requests with a bearer
// access token. The resolved user is placed on the request context;
// handlers read it back with auth.UserFromContext.
//
// Every credential failure produces the same 401 body so the response
// does not reveal whether the token was malformed, expired, carried
// the wrong scope, or named an unknown account.
func Auth(guard TokenResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", auth.ErrUnauthenticated.Error())
				return
			}

			user, err := guard.CurrentUser(r.Context(), tokenString)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", auth.ErrUnauthenticated.Error())
					return
				}
				logger.Error("auth lookup failed",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("error", err.Error()),
				)
				writeAuthError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service temporarily unavailable")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), user)))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer ..."
// header. The scheme comparison is case-insensitive per RFC 9110.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
