// Package token issues and verifies the signed bearer tokens used by
// the API: short-lived access tokens, long-lived refresh tokens, and
// single-purpose email-verification tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope restricts what a token may be used for. The scope embedded at
// issuance must match the operation consuming the token.
type Scope string

const (
	// ScopeAccess authorizes protected API calls.
	ScopeAccess Scope = "access_token"
	// ScopeRefresh is exchanged for a new access/refresh pair.
	ScopeRefresh Scope = "refresh_token"
	// ScopeEmail proves control of an email address. Never valid for
	// API authorization.
	ScopeEmail Scope = "email_token"
)

// Default lifetimes per scope.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	EmailTTL          = 24 * time.Hour
)

var (
	// ErrInvalidToken indicates a malformed, tampered or expired token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongScope indicates a well-signed token presented to an
	// operation expecting a different scope.
	ErrWrongScope = errors.New("wrong token scope")
	// ErrMissingSubject indicates a token with no subject claim.
	ErrMissingSubject = errors.New("token has no subject")
)

// Claims is the claim set carried by every token.
type Claims struct {
	Scope Scope `json:"scope"`
	jwt.RegisteredClaims
}

// Issuer mints HS256-signed tokens with a process-wide secret.
// The secret is read-only after construction; Issuer is safe for
// concurrent use.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer creates an Issuer. Zero TTLs fall back to the defaults.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Issuer{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// IssueAccess mints an access token for the given subject (user
// email). A zero ttl uses the issuer default; a negative ttl mints an
// already-expired token.
func (i *Issuer) IssueAccess(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = i.accessTTL
	}
	return i.sign(subject, ScopeAccess, ttl)
}

// IssueRefresh mints a refresh token. A zero ttl uses the issuer
// default; a negative ttl mints an already-expired token.
func (i *Issuer) IssueRefresh(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = i.refreshTTL
	}
	return i.sign(subject, ScopeRefresh, ttl)
}

// IssueEmail mints an email-verification token with a fixed 24h
// lifetime.
func (i *Issuer) IssueEmail(subject string) (string, error) {
	return i.sign(subject, ScopeEmail, EmailTTL)
}

func (i *Issuer) sign(subject string, scope Scope, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// Unique per token, so two tokens minted in the same
			// second are still distinct strings.
			ID: uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", scope, err)
	}
	return signed, nil
}

// Verify parses a token, checks its signature and expiry, and
// enforces the expected scope. Returns the subject on success.
func (i *Issuer) Verify(tokenString string, want Scope) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Scope != want {
		return "", ErrWrongScope
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}
