package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contactbook/contactbook/internal/model"
	"github.com/contactbook/contactbook/internal/repository"
)

// ErrContactNotFound indicates the contact does not exist for this user.
var ErrContactNotFound = errors.New("contact not found")

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// ContactStore is the slice of the repository the contact service needs.
type ContactStore interface {
	CreateContact(ctx context.Context, contact *model.Contact) error
	GetContactByID(ctx context.Context, id, userID string) (*model.Contact, error)
	ListContacts(ctx context.Context, userID string, limit, offset int) ([]*model.Contact, error)
	UpdateContact(ctx context.Context, contact *model.Contact) (*model.Contact, error)
	DeleteContact(ctx context.Context, id, userID string) error
	SearchContacts(ctx context.Context, userID, search string) ([]*model.Contact, error)
	UpcomingBirthdays(ctx context.Context, userID string, now time.Time) ([]*model.Contact, error)
}

// ContactService handles the per-user address book.
type ContactService struct {
	contacts ContactStore
}

// NewContactService creates a ContactService.
func NewContactService(contacts ContactStore) *ContactService {
	return &ContactService{contacts: contacts}
}

// ContactInput defines input for creating or updating a contact.
type ContactInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	BirthDate   time.Time
}

// Create adds a contact to the user's address book.
func (s *ContactService) Create(ctx context.Context, userID string, input ContactInput) (*model.Contact, error) {
	contact := &model.Contact{
		ID:          uuid.New().String(),
		UserID:      userID,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		BirthDate:   input.BirthDate,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.contacts.CreateContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return contact, nil
}

// Get retrieves one of the user's contacts by id.
func (s *ContactService) Get(ctx context.Context, id, userID string) (*model.Contact, error) {
	contact, err := s.contacts.GetContactByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return contact, nil
}

// List returns a page of the user's contacts. Limits outside
// [1, maxListLimit] fall back to the default.
func (s *ContactService) List(ctx context.Context, userID string, limit, offset int) ([]*model.Contact, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	contacts, err := s.contacts.ListContacts(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// Update replaces a contact's fields.
func (s *ContactService) Update(ctx context.Context, id, userID string, input ContactInput) (*model.Contact, error) {
	contact := &model.Contact{
		ID:          id,
		UserID:      userID,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		BirthDate:   input.BirthDate,
	}

	updated, err := s.contacts.UpdateContact(ctx, contact)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return updated, nil
}

// Delete removes a contact from the user's address book.
func (s *ContactService) Delete(ctx context.Context, id, userID string) error {
	if err := s.contacts.DeleteContact(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return ErrContactNotFound
		}
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

// Search finds contacts matching the query in name or email.
func (s *ContactService) Search(ctx context.Context, userID, query string) ([]*model.Contact, error) {
	contacts, err := s.contacts.SearchContacts(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return contacts, nil
}

// UpcomingBirthdays lists contacts with a birthday in the next week.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, userID string) ([]*model.Contact, error) {
	contacts, err := s.contacts.UpcomingBirthdays(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("upcoming birthdays: %w", err)
	}
	return contacts, nil
}
