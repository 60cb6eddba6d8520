package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/contactbook/contactbook/internal/avatar"
	"github.com/contactbook/contactbook/internal/model"
)

// AvatarStore is the slice of the repository the user service needs.
type AvatarStore interface {
	UpdateAvatar(ctx context.Context, email, avatarURL string) (*model.User, error)
}

// UserService handles profile operations for the authenticated user.
type UserService struct {
	users    AvatarStore
	uploader avatar.Uploader
	logger   *slog.Logger
}

// NewUserService creates a UserService. The uploader may be nil, in
// which case avatar uploads are rejected.
func NewUserService(users AvatarStore, uploader avatar.Uploader, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: users, uploader: uploader, logger: logger}
}

// ErrUploadsDisabled indicates no object storage is configured.
var ErrUploadsDisabled = errors.New("avatar uploads are not configured")

// UpdateAvatar stores the image in object storage and points the user's
// profile at it. The object key is derived from the user id so repeated
// uploads replace the previous avatar.
func (s *UserService) UpdateAvatar(ctx context.Context, user *model.User, filename, contentType string, data []byte) (*model.User, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}

	key := "avatars/" + user.ID + path.Ext(filename)
	url, err := s.uploader.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	updated, err := s.users.UpdateAvatar(ctx, user.Email, url)
	if err != nil {
		return nil, fmt.Errorf("update avatar: %w", err)
	}

	s.logger.Info("avatar updated", "user_id", user.ID)
	return updated, nil
}
