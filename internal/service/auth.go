// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contactbook/contactbook/internal/auth"
	"github.com/contactbook/contactbook/internal/avatar"
	"github.com/contactbook/contactbook/internal/mail"
	"github.com/contactbook/contactbook/internal/model"
	"github.com/contactbook/contactbook/internal/repository"
	"github.com/contactbook/contactbook/internal/token"
)

// Service errors for the auth flows.
var (
	ErrEmailTaken          = errors.New("account already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailNotConfirmed   = errors.New("email not confirmed")
	ErrAlreadyConfirmed    = errors.New("email is already confirmed")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrVerificationFailed  = errors.New("verification error")
)

// UserStore is the slice of the repository the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateRefreshToken(ctx context.Context, email string, refreshToken *string) error
	ConfirmEmail(ctx context.Context, email string) error
}

// TokenPair is the credential pair handed to a client at login and
// refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AuthService handles registration, login, token refresh and email
// confirmation.
type AuthService struct {
	users   UserStore
	issuer  *token.Issuer
	guard   *auth.Guard
	sender  mail.Sender
	baseURL string
	logger  *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(users UserStore, issuer *token.Issuer, guard *auth.Guard, sender mail.Sender, baseURL string, logger *slog.Logger) *AuthService {
	if sender == nil {
		sender = mail.NopSender{}
	}
	return &AuthService{
		users:   users,
		issuer:  issuer,
		guard:   guard,
		sender:  sender,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// SignupInput defines input for registering an account.
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// Signup registers a new account and sends the confirmation email.
// The account stays unconfirmed until the emailed token is consumed.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*model.User, error) {
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Avatar:       avatar.GravatarURL(input.Email),
		Confirmed:    false,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// A failed delivery is not fatal: the client can hit the resend
	// endpoint.
	if err := s.sendConfirmation(ctx, user); err != nil {
		s.logger.Error("confirmation email failed",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// Login verifies credentials and returns a fresh token pair. The
// refresh token is persisted on the user record for continuity checks
// during the refresh flow.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if !user.Confirmed {
		return nil, ErrEmailNotConfirmed
	}

	match, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return nil, ErrInvalidCredentials
	}

	return s.issuePair(ctx, email)
}

// Refresh exchanges a valid refresh token for a new pair. The
// presented token must match the one stored at the last login or
// refresh; a mismatch clears the stored token, forcing a re-login.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	email, err := s.guard.EmailFromRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		if err := s.users.UpdateRefreshToken(ctx, email, nil); err != nil {
			s.logger.Error("failed to clear refresh token",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		}
		return nil, ErrInvalidRefreshToken
	}

	return s.issuePair(ctx, email)
}

// ConfirmEmail consumes an email-verification token and marks the
// account confirmed.
func (s *AuthService) ConfirmEmail(ctx context.Context, tokenString string) error {
	email, err := s.guard.EmailFromEmailToken(tokenString)
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrVerificationFailed
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if user.Confirmed {
		return ErrAlreadyConfirmed
	}

	if err := s.users.ConfirmEmail(ctx, email); err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	return nil
}

// ResendConfirmation re-sends the verification email. An unknown
// address is reported as success so the endpoint cannot be used to
// probe which emails are registered.
func (s *AuthService) ResendConfirmation(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if user.Confirmed {
		return ErrAlreadyConfirmed
	}

	return s.sendConfirmation(ctx, user)
}

func (s *AuthService) issuePair(ctx context.Context, email string) (*TokenPair, error) {
	access, err := s.issuer.IssueAccess(email, 0)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issuer.IssueRefresh(email, 0)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.users.UpdateRefreshToken(ctx, email, &refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func (s *AuthService) sendConfirmation(ctx context.Context, user *model.User) error {
	emailToken, err := s.issuer.IssueEmail(user.Email)
	if err != nil {
		return fmt.Errorf("issue email token: %w", err)
	}

	confirmURL := s.baseURL + "/api/auth/confirmed_email/" + emailToken
	return s.sender.SendConfirmation(ctx, user.Email, user.Username, confirmURL)
}
