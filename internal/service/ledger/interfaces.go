package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/account"
	"github.com/dialerops/callgate-backend/internal/domain/events"
)

// AccountRepository is the persistence port the ledger mutates usage
// through. No other component may write account usage.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)

	// IncrementUsage atomically folds committed minutes into the account's
	// usage counter and returns the updated account.
	IncrementUsage(ctx context.Context, id uuid.UUID, minutes int64) (*account.Account, error)
}

// EventPublisher receives usage threshold events for the notification
// collaborator.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}
