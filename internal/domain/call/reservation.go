package call

import (
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// Reservation is an ephemeral hold against an account's minute quota for an
// admitted call attempt. It lives until Commit folds the actual duration
// into the account's usage, Release discards it, or the sweep reclaims it
// after the grace window.
type Reservation struct {
	ID               uuid.UUID          `json:"id"`
	AccountID        uuid.UUID          `json:"account_id"`
	Destination      values.PhoneNumber `json:"destination"`
	EstimatedMinutes int64              `json:"estimated_minutes"`
	CreatedAt        time.Time          `json:"created_at"`
	ExpiresAt        time.Time          `json:"expires_at"`
}

// NewReservation creates a hold expiring after the grace window.
func NewReservation(accountID uuid.UUID, destination values.PhoneNumber, estimatedMinutes int64, grace time.Duration) *Reservation {
	now := time.Now().UTC()
	return &Reservation{
		ID:               uuid.New(),
		AccountID:        accountID,
		Destination:      destination,
		EstimatedMinutes: estimatedMinutes,
		CreatedAt:        now,
		ExpiresAt:        now.Add(grace),
	}
}

// Expired reports whether the hold has outlived its grace window and should
// be reclaimed by the sweep.
func (r *Reservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
