// Package model defines domain entities for the application.
package model

import "time"

// User represents a registered account that owns contacts.
// PasswordHash and RefreshToken never leave the server; response
// shaping happens in the dto package.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	RefreshToken *string   `json:"-"`
	Confirmed    bool      `json:"confirmed"`
	CreatedAt    time.Time `json:"created_at"`
}
