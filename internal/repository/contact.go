package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/contactbook/contactbook/internal/model"
)

// ErrContactNotFound indicates the contact does not exist or belongs
// to another user.
var ErrContactNotFound = errors.New("contact not found")

const contactColumns = `id, user_id, first_name, last_name, email, phone_number, birth_date, created_at`

// CreateContact inserts a new contact for the given user.
func (r *Repository) CreateContact(ctx context.Context, contact *model.Contact) error {
	query := `
		INSERT INTO contacts (id, user_id, first_name, last_name, email, phone_number, birth_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		contact.ID,
		contact.UserID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.PhoneNumber,
		contact.BirthDate,
		contact.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

// GetContactByID retrieves a contact by id, scoped to its owner.
func (r *Repository) GetContactByID(ctx context.Context, id, userID string) (*model.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE id = $1 AND user_id = $2
	`

	contact, err := scanContact(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

// ListContacts retrieves a page of the user's contacts.
func (r *Repository) ListContacts(ctx context.Context, userID string, limit, offset int) ([]*model.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

// UpdateContact replaces the mutable fields of a contact, scoped to
// its owner. Returns the updated record.
func (r *Repository) UpdateContact(ctx context.Context, contact *model.Contact) (*model.Contact, error) {
	query := `
		UPDATE contacts
		SET first_name = $3, last_name = $4, email = $5, phone_number = $6, birth_date = $7
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		contact.ID,
		contact.UserID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.PhoneNumber,
		contact.BirthDate,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, ErrContactNotFound
	}

	return r.GetContactByID(ctx, contact.ID, contact.UserID)
}

// DeleteContact removes a contact, scoped to its owner.
func (r *Repository) DeleteContact(ctx context.Context, id, userID string) error {
	query := `DELETE FROM contacts WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrContactNotFound
	}

	return nil
}

// SearchContacts finds the user's contacts whose first name, last
// name or email contains the query, case-insensitively.
func (r *Repository) SearchContacts(ctx context.Context, userID, search string) ([]*model.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1
		  AND (first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2)
		ORDER BY last_name, first_name
	`

	rows, err := r.pool.Query(ctx, query, userID, "%"+search+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

// UpcomingBirthdays finds the user's contacts whose birthday falls
// within the next 7 days. The comparison is on month and day only, so
// the birth year is irrelevant; the two-leg condition handles the
// window crossing into the next month.
func (r *Repository) UpcomingBirthdays(ctx context.Context, userID string, now time.Time) ([]*model.Contact, error) {
	future := now.AddDate(0, 0, 7)

	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1
		  AND (
			(EXTRACT(MONTH FROM birth_date) = $2 AND EXTRACT(DAY FROM birth_date) >= $3)
			OR
			(EXTRACT(MONTH FROM birth_date) = $4 AND EXTRACT(DAY FROM birth_date) <= $5)
		  )
		ORDER BY EXTRACT(MONTH FROM birth_date), EXTRACT(DAY FROM birth_date)
	`

	rows, err := r.pool.Query(ctx, query, userID,
		int(now.Month()), now.Day(),
		int(future.Month()), future.Day(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming birthdays: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

// scanContact scans a single row into a Contact model.
func scanContact(row pgx.Row) (*model.Contact, error) {
	var contact model.Contact
	err := row.Scan(
		&contact.ID,
		&contact.UserID,
		&contact.FirstName,
		&contact.LastName,
		&contact.Email,
		&contact.PhoneNumber,
		&contact.BirthDate,
		&contact.CreatedAt,
	)
	return &contact, err
}

// collectContacts drains rows into a slice of contacts.
func collectContacts(rows pgx.Rows) ([]*model.Contact, error) {
	var contacts []*model.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}
