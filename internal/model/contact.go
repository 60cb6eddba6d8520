package model

import "time"

// Contact is a single address-book entry. Every contact belongs to
// exactly one user; queries are always scoped by UserID.
type Contact struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	BirthDate   time.Time `json:"birth_date"`
	CreatedAt   time.Time `json:"created_at"`
}
