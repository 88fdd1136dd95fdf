package policy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/compliance"
	"github.com/dialerops/callgate-backend/internal/domain/dnc"
	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// DNCRepository looks up do-not-call suppressions.
type DNCRepository interface {
	// FindActive returns the active suppression entry for the
	// destination, or nil when the number is callable.
	FindActive(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber) (*dnc.Entry, error)
}

// ConsentRepository looks up consent records.
type ConsentRepository interface {
	// FindActive returns the single non-revoked consent record for the
	// destination, or nil when none exists.
	FindActive(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber) (*compliance.ConsentRecord, error)
}

// RuleRepository provides the account's enabled rule set.
type RuleRepository interface {
	ListEnabled(ctx context.Context, accountID uuid.UUID) ([]*compliance.Rule, error)
}

// ActivityLog exposes recent per-destination call history.
type ActivityLog interface {
	Count(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber, window time.Duration) (int, error)
}
