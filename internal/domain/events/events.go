package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types consumed by the notification collaborator. Delivery beyond
// the in-process bus and the websocket feed is out of scope for the engine.
const (
	TypeUsageThresholdCrossed = "usage.threshold_crossed"
	TypeComplianceViolation   = "compliance.violation"
)

// Event is the envelope published on the engine's event bus.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       string                 `json:"type"`
	AccountID  uuid.UUID              `json:"account_id"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewUsageThresholdCrossed signals that an account's usage crossed one of
// the notification thresholds (80 or 100 percent).
func NewUsageThresholdCrossed(accountID uuid.UUID, usedMinutes, limitMinutes int64, percentage float64) Event {
	return Event{
		ID:        uuid.New(),
		Type:      TypeUsageThresholdCrossed,
		AccountID: accountID,
		Payload: map[string]interface{}{
			"used_minutes":  usedMinutes,
			"limit_minutes": limitMinutes,
			"percentage":    percentage,
		},
		OccurredAt: time.Now().UTC(),
	}
}

// NewComplianceViolation signals a recorded high-severity violation.
func NewComplianceViolation(accountID uuid.UUID, violationType, severity, destination string) Event {
	return Event{
		ID:        uuid.New(),
		Type:      TypeComplianceViolation,
		AccountID: accountID,
		Payload: map[string]interface{}{
			"type":        violationType,
			"severity":    severity,
			"destination": destination,
		},
		OccurredAt: time.Now().UTC(),
	}
}
