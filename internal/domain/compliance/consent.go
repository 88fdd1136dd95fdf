package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// ConsentRecord is a time-bounded authorization to call a destination. At
// most one non-revoked record is active per (account, phone) at a time; an
// expired or revoked record is equivalent to absence of consent.
type ConsentRecord struct {
	ID          uuid.UUID          `json:"id"`
	AccountID   uuid.UUID          `json:"account_id"`
	PhoneNumber values.PhoneNumber `json:"phone_number"`
	Type        ConsentType        `json:"type"`
	Method      ConsentMethod      `json:"method"`

	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ConsentType string

const (
	ConsentExpress       ConsentType = "express"
	ConsentImplied       ConsentType = "implied"
	ConsentPriorBusiness ConsentType = "prior_business"
)

func (t ConsentType) Valid() bool {
	switch t {
	case ConsentExpress, ConsentImplied, ConsentPriorBusiness:
		return true
	}
	return false
}

type ConsentMethod string

const (
	MethodWebForm ConsentMethod = "web_form"
	MethodVerbal  ConsentMethod = "verbal"
	MethodWritten ConsentMethod = "written"
	MethodSMS     ConsentMethod = "sms"
)

// NewConsentRecord creates an active consent record granted now.
func NewConsentRecord(accountID uuid.UUID, phoneNumber string, consentType ConsentType, method ConsentMethod) (*ConsentRecord, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("account ID cannot be nil")
	}

	phone, err := values.NewPhoneNumber(phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("invalid phone number: %w", err)
	}

	if !consentType.Valid() {
		return nil, fmt.Errorf("invalid consent type: %s", consentType)
	}

	now := time.Now().UTC()
	return &ConsentRecord{
		ID:          uuid.New(),
		AccountID:   accountID,
		PhoneNumber: phone,
		Type:        consentType,
		Method:      method,
		GrantedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Revoke withdraws the consent.
func (c *ConsentRecord) Revoke() {
	now := time.Now().UTC()
	c.RevokedAt = &now
	c.UpdatedAt = now
}

// IsRevoked checks if consent has been withdrawn.
func (c *ConsentRecord) IsRevoked() bool {
	return c.RevokedAt != nil
}

// IsExpired checks if consent has passed its expiry.
func (c *ConsentRecord) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*c.ExpiresAt)
}

// IsActive reports whether the record currently authorizes calls.
func (c *ConsentRecord) IsActive() bool {
	return !c.IsRevoked() && !c.IsExpired()
}

// ExpiresWithin reports whether active consent lapses inside the window.
func (c *ConsentRecord) ExpiresWithin(window time.Duration) bool {
	if !c.IsActive() || c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Before(time.Now().Add(window))
}

// Extend pushes the expiry out by the given duration from now.
func (c *ConsentRecord) Extend(duration time.Duration) error {
	if !c.IsActive() {
		return fmt.Errorf("can only extend active consent")
	}

	now := time.Now().UTC()
	newExpiry := now.Add(duration)
	c.ExpiresAt = &newExpiry
	c.UpdatedAt = now
	return nil
}
