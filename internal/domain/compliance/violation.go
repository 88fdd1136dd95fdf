package compliance

import (
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// Violation is an audit record produced by rule evaluation. It is immutable
// once created except for the resolution fields.
type Violation struct {
	ID          uuid.UUID          `json:"id"`
	AccountID   uuid.UUID          `json:"account_id"`
	CallID      *uuid.UUID         `json:"call_id,omitempty"`
	Type        ViolationType      `json:"type"`
	Severity    Severity           `json:"severity"`
	Destination values.PhoneNumber `json:"destination"`
	Description string             `json:"description"`

	Resolved   bool       `json:"resolved"`
	ResolvedBy *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type ViolationType string

const (
	ViolationDNC                 ViolationType = "dnc_violation"
	ViolationConsent             ViolationType = "consent_violation"
	ViolationCallingHours        ViolationType = "calling_hours_violation"
	ViolationFrequency           ViolationType = "frequency_violation"
	ViolationRecordingDisclosure ViolationType = "recording_disclosure_violation"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// NewViolation creates an unresolved violation for a gated call attempt.
func NewViolation(accountID uuid.UUID, destination values.PhoneNumber, vType ViolationType, severity Severity, description string) *Violation {
	return &Violation{
		ID:          uuid.New(),
		AccountID:   accountID,
		Type:        vType,
		Severity:    severity,
		Destination: destination,
		Description: description,
		Resolved:    false,
		CreatedAt:   time.Now().UTC(),
	}
}

// AttachCall links the violation to the call attempt that triggered it.
func (v *Violation) AttachCall(callID uuid.UUID) {
	v.CallID = &callID
}

// Resolve marks the violation as handled. Resolution is the only permitted
// mutation after creation.
func (v *Violation) Resolve(resolvedBy uuid.UUID) {
	now := time.Now().UTC()
	v.Resolved = true
	v.ResolvedBy = &resolvedBy
	v.ResolvedAt = &now
}

// Warning is a non-blocking advisory emitted alongside rule evaluation,
// e.g. consent expiring soon. Warnings never deny a call.
type Warning struct {
	Type        string             `json:"type"`
	Destination values.PhoneNumber `json:"destination"`
	Message     string             `json:"message"`
}
