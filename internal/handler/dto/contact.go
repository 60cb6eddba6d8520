package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/contactbook/contactbook/internal/model"
)

// dateLayout is the wire format for birth dates.
const dateLayout = "2006-01-02"

// Date is a calendar date without a time component.
type Date struct {
	time.Time
}

// UnmarshalJSON parses a quoted YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	parsed, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	d.Time = parsed
	return nil
}

// MarshalJSON renders the date as a quoted YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// ContactRequest represents the request body for creating or
// replacing a contact.
type ContactRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=50"`
	LastName    string `json:"last_name" validate:"required,max=50"`
	Email       string `json:"email" validate:"required,email,max=254"`
	PhoneNumber string `json:"phone_number" validate:"required,max=25"`
	BirthDate   Date   `json:"birth_date" validate:"required"`
}

// ContactResponse represents a contact in API responses.
type ContactResponse struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	BirthDate   Date      `json:"birth_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToContactResponse converts a Contact model to ContactResponse.
func ToContactResponse(contact *model.Contact) ContactResponse {
	return ContactResponse{
		ID:          contact.ID,
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		Email:       contact.Email,
		PhoneNumber: contact.PhoneNumber,
		BirthDate:   Date{contact.BirthDate},
		CreatedAt:   contact.CreatedAt,
	}
}

// ToContactListResponse converts a slice of Contact models.
func ToContactListResponse(contacts []*model.Contact) []ContactResponse {
	responses := make([]ContactResponse, len(contacts))
	for i, contact := range contacts {
		responses[i] = ToContactResponse(contact)
	}
	return responses
}
