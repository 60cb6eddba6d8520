package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/contactbook/contactbook/internal/cache"
	"github.com/contactbook/contactbook/internal/model"
	"github.com/contactbook/contactbook/internal/repository"
	"github.com/contactbook/contactbook/internal/token"
)

// Sentinel errors for token consumers.
//
// ErrUnauthenticated carries the same message for every access-token
// failure (bad signature, wrong scope, missing subject, unknown user)
// so a caller cannot tell which check rejected the credential.
var (
	ErrUnauthenticated   = errors.New("could not validate credentials")
	ErrInvalidScope      = errors.New("invalid scope for token")
	ErrInvalidEmailToken = errors.New("invalid token for email verification")
)

// UserCache is the slice of the cache layer the guard needs.
type UserCache interface {
	GetUser(ctx context.Context, email string) (*model.User, error)
	SetUser(ctx context.Context, user *model.User) error
}

// UserFinder is the slice of the repository the guard needs.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Guard resolves bearer tokens to users. Access-token resolution is
// cache-aside: Redis first, Postgres on a miss, repopulating the
// cache with a fixed TTL. The guard holds no per-request state and is
// safe for concurrent use.
type Guard struct {
	issuer *token.Issuer
	cache  UserCache
	users  UserFinder
	logger *slog.Logger
}

// NewGuard creates a Guard with injected cache and store handles.
func NewGuard(issuer *token.Issuer, userCache UserCache, users UserFinder, logger *slog.Logger) *Guard {
	return &Guard{
		issuer: issuer,
		cache:  userCache,
		users:  users,
		logger: logger,
	}
}

// CurrentUser validates an access token and returns the user it
// belongs to. Cache entries are not evicted on user mutation, so the
// returned snapshot may be stale for up to the cache TTL.
//
// Every validation failure returns ErrUnauthenticated. Cache or store
// transport errors propagate unchanged; the caller maps those to a
// service-unavailable response.
func (g *Guard) CurrentUser(ctx context.Context, tokenString string) (*model.User, error) {
	email, err := g.issuer.Verify(tokenString, token.ScopeAccess)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := g.cache.GetUser(ctx, email)
	if err == nil {
		g.logger.Debug("resolved user from cache", slog.String("email", email))
		return user, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}

	user, err = g.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	if err := g.cache.SetUser(ctx, user); err != nil {
		return nil, err
	}

	g.logger.Debug("resolved user from store", slog.String("email", email))
	return user, nil
}

// EmailFromRefreshToken validates a refresh token and returns its
// subject. Used by the token-refresh flow to mint a new pair without
// re-authenticating credentials.
func (g *Guard) EmailFromRefreshToken(tokenString string) (string, error) {
	email, err := g.issuer.Verify(tokenString, token.ScopeRefresh)
	if err != nil {
		if errors.Is(err, token.ErrWrongScope) {
			return "", ErrInvalidScope
		}
		return "", ErrUnauthenticated
	}
	return email, nil
}

// EmailFromEmailToken validates an email-verification token and
// returns its subject. Failures here do not gate API access, so the
// error is distinct from the access-token one.
func (g *Guard) EmailFromEmailToken(tokenString string) (string, error) {
	email, err := g.issuer.Verify(tokenString, token.ScopeEmail)
	if err != nil {
		if errors.Is(err, token.ErrWrongScope) {
			return "", ErrInvalidScope
		}
		return "", ErrInvalidEmailToken
	}
	return email, nil
}
