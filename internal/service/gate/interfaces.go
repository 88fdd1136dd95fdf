package gate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/account"
	"github.com/dialerops/callgate-backend/internal/domain/call"
	"github.com/dialerops/callgate-backend/internal/domain/compliance"
	"github.com/dialerops/callgate-backend/internal/domain/events"
	"github.com/dialerops/callgate-backend/internal/domain/values"
	"github.com/dialerops/callgate-backend/internal/service/policy"
)

// AccountRepository resolves the account attempting the call.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

// CallRepository persists call records created by the gate.
type CallRepository interface {
	Save(ctx context.Context, record *call.Record) error
	GetByReservation(ctx context.Context, reservationID uuid.UUID) (*call.Record, error)
}

// ViolationRepository persists compliance violations.
type ViolationRepository interface {
	Save(ctx context.Context, v *compliance.Violation) error
}

// ActivityRecorder appends admitted calls to the per-destination history
// consulted by the frequency rule.
type ActivityRecorder interface {
	Record(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber, at time.Time) error
}

// UsageLedger is the quota admission side of the gate.
type UsageLedger interface {
	Reserve(ctx context.Context, accountID uuid.UUID, destination values.PhoneNumber, estimatedMinutes int64) (*call.Reservation, int64, error)
	Commit(ctx context.Context, reservationID uuid.UUID, actualMinutes int64) error
	Release(ctx context.Context, reservationID uuid.UUID) error
}

// PolicyEvaluator is the compliance side of the gate.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, acct *account.Account, destination values.PhoneNumber, timezone string, callTime time.Time) (*policy.Result, error)
}

// EventPublisher emits outbound engine events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}
