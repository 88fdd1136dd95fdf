package dnc

import (
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// Entry represents a phone number suppressed for a tenant. At most one
// active entry may exist per (account, phone) pair; an active entry is a
// hard deny regardless of any other rule outcome.
type Entry struct {
	ID          uuid.UUID          `json:"id"`
	AccountID   uuid.UUID          `json:"account_id"`
	PhoneNumber values.PhoneNumber `json:"phone_number"`
	Reason      Reason             `json:"reason"`
	Source      Source             `json:"source"`
	AddedAt     time.Time          `json:"added_at"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`

	Notes     *string   `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Reason string

const (
	ReasonConsumerRequest Reason = "consumer_request"
	ReasonLitigation      Reason = "litigation"
	ReasonRegulatory      Reason = "regulatory"
	ReasonInternalPolicy  Reason = "internal_policy"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonConsumerRequest, ReasonLitigation, ReasonRegulatory, ReasonInternalPolicy:
		return true
	}
	return false
}

type Source string

const (
	SourceFederalRegistry Source = "federal_registry"
	SourceStateRegistry   Source = "state_registry"
	SourceInternalList    Source = "internal_list"
	SourceCSVImport       Source = "csv_import"
)

func (s Source) Valid() bool {
	switch s {
	case SourceFederalRegistry, SourceStateRegistry, SourceInternalList, SourceCSVImport:
		return true
	}
	return false
}

// NewEntry creates a suppression entry with validation.
func NewEntry(accountID uuid.UUID, phoneNumber string, reason Reason, source Source) (*Entry, error) {
	if accountID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_ACCOUNT", "account ID cannot be empty")
	}

	phone, err := values.NewPhoneNumber(phoneNumber)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_PHONE_NUMBER", "invalid phone number format").WithCause(err)
	}

	if !reason.Valid() {
		return nil, errors.NewValidationError("INVALID_REASON", "invalid suppress reason")
	}

	if !source.Valid() {
		return nil, errors.NewValidationError("INVALID_SOURCE", "invalid list source")
	}

	now := time.Now().UTC()
	return &Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		PhoneNumber: phone,
		Reason:      reason,
		Source:      source,
		AddedAt:     now,
		UpdatedAt:   now,
	}, nil
}

// SetExpiration sets the expiration time for the entry.
func (e *Entry) SetExpiration(expiresAt time.Time) error {
	if expiresAt.Before(time.Now()) {
		return errors.NewValidationError("INVALID_EXPIRATION", "expiration date cannot be in the past")
	}

	e.ExpiresAt = &expiresAt
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// IsExpired checks if the entry has expired.
func (e *Entry) IsExpired() bool {
	if e.ExpiresAt == nil {
		return false // no expiration means permanent
	}
	return time.Now().After(*e.ExpiresAt)
}

// IsActive checks if the entry is currently suppressing calls.
func (e *Entry) IsActive() bool {
	return !e.IsExpired()
}
