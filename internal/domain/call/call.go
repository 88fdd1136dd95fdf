package call

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// Record is a dialed call. It is created when the gate admits the attempt
// and finalized exactly once on completion or failure.
type Record struct {
	ID            uuid.UUID          `json:"id"`
	AccountID     uuid.UUID          `json:"account_id"`
	Destination   values.PhoneNumber `json:"destination"`
	Direction     Direction          `json:"direction"`
	Status        Status             `json:"status"`
	ReservationID uuid.UUID          `json:"reservation_id"`

	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes *int64     `json:"duration_minutes,omitempty"`
	Outcome         *Outcome   `json:"outcome,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

type Direction int

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

func (d Direction) String() string {
	switch d {
	case DirectionOutbound:
		return "outbound"
	case DirectionInbound:
		return "inbound"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeVoicemail Outcome = "voicemail"
	OutcomeNoAnswer  Outcome = "no_answer"
	OutcomeBusy      Outcome = "busy"
	OutcomeConverted Outcome = "converted"
)

// NewRecord creates a pending outbound call record tied to a reservation.
func NewRecord(accountID uuid.UUID, destination values.PhoneNumber, reservationID uuid.UUID) (*Record, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("account ID cannot be nil")
	}
	if destination.IsEmpty() {
		return nil, fmt.Errorf("destination cannot be empty")
	}
	if reservationID == uuid.Nil {
		return nil, fmt.Errorf("reservation ID cannot be nil")
	}

	now := time.Now().UTC()
	return &Record{
		ID:            uuid.New(),
		AccountID:     accountID,
		Destination:   destination,
		Direction:     DirectionOutbound,
		Status:        StatusPending,
		ReservationID: reservationID,
		StartTime:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Finalized reports whether the record can no longer be mutated.
func (r *Record) Finalized() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// Complete finalizes the record with the actual duration and outcome.
func (r *Record) Complete(durationMinutes int64, outcome Outcome) error {
	if r.Finalized() {
		return fmt.Errorf("call record already finalized")
	}
	if durationMinutes < 0 {
		return fmt.Errorf("duration cannot be negative")
	}

	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.EndTime = &now
	r.DurationMinutes = &durationMinutes
	r.Outcome = &outcome
	r.UpdatedAt = now
	return nil
}

// Abandon finalizes a record for a call that never connected.
func (r *Record) Abandon() error {
	if r.Finalized() {
		return fmt.Errorf("call record already finalized")
	}

	now := time.Now().UTC()
	r.Status = StatusAbandoned
	r.EndTime = &now
	r.UpdatedAt = now
	return nil
}

// Fail finalizes a record for a call that errored mid-flight.
func (r *Record) Fail() error {
	if r.Finalized() {
		return fmt.Errorf("call record already finalized")
	}

	now := time.Now().UTC()
	r.Status = StatusFailed
	r.EndTime = &now
	r.UpdatedAt = now
	return nil
}
