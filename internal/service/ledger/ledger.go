package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dialerops/callgate-backend/internal/domain/account"
	"github.com/dialerops/callgate-backend/internal/domain/call"
	"github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/events"
	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// Usage thresholds that trigger notification events, in percent.
var notifyThresholds = []float64{80, 100}

// Config holds ledger tuning knobs.
type Config struct {
	// ReservationGrace bounds how long an un-finalized reservation may
	// live before the sweep reclaims it. Defaults to call timeout x 2.
	ReservationGrace time.Duration `json:"reservation_grace"`

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration `json:"sweep_interval"`
}

func DefaultConfig() Config {
	return Config{
		ReservationGrace: 10 * time.Minute,
		SweepInterval:    time.Minute,
	}
}

// Ledger is the authoritative counter of minutes consumed per account. All
// admission-relevant usage mutations flow through Reserve, Commit and
// Release; the per-account critical section makes the read-check-reserve
// sequence atomic with respect to concurrent workers on the same account.
type Ledger struct {
	accounts  AccountRepository
	publisher EventPublisher
	logger    *zap.Logger
	config    Config

	mu     sync.Mutex
	states map[uuid.UUID]*accountState
	index  map[uuid.UUID]uuid.UUID // reservation ID -> account ID
}

// accountState tracks the open reservations for one account.
type accountState struct {
	mu          sync.Mutex
	open        map[uuid.UUID]*call.Reservation
	openMinutes int64
}

func New(accounts AccountRepository, publisher EventPublisher, logger *zap.Logger, config Config) *Ledger {
	if config.ReservationGrace <= 0 {
		config.ReservationGrace = DefaultConfig().ReservationGrace
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultConfig().SweepInterval
	}

	return &Ledger{
		accounts:  accounts,
		publisher: publisher,
		logger:    logger,
		config:    config,
		states:    make(map[uuid.UUID]*accountState),
		index:     make(map[uuid.UUID]uuid.UUID),
	}
}

// Reserve admits an estimated debit against the account's quota. It denies
// when used + open reservations + the estimate would exceed quota; a quota
// of zero means unlimited and never denies. The returned remaining count
// excludes the new reservation (-1 for unlimited accounts).
func (l *Ledger) Reserve(ctx context.Context, accountID uuid.UUID, destination values.PhoneNumber, estimatedMinutes int64) (*call.Reservation, int64, error) {
	if estimatedMinutes <= 0 {
		return nil, 0, errors.NewValidationError("INVALID_ESTIMATE", "estimated minutes must be positive")
	}

	state := l.stateFor(accountID)
	state.mu.Lock()
	defer state.mu.Unlock()

	acct, err := l.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, 0, err
		}
		// Fail closed: an unreachable store denies the call.
		return nil, 0, errors.NewStoreUnavailableError("account store unreachable").WithCause(err)
	}

	if !acct.CanMakeCalls() {
		return nil, 0, errors.ErrAccountSuspended
	}

	if !acct.Unlimited() {
		// A call may start as long as any quota remains; like an
		// in-flight overrun, the shortfall is absorbed by the call that
		// consumed the last minutes. With nothing left, deny.
		if acct.MinutesUsed+state.openMinutes >= acct.MonthlyMinuteQuota {
			return nil, 0, errors.NewQuotaExceededError(
				fmt.Sprintf("quota exceeded: %d used, %d reserved, %d quota",
					acct.MinutesUsed, state.openMinutes, acct.MonthlyMinuteQuota)).
				WithDetails(map[string]interface{}{
					"used_minutes":     acct.MinutesUsed,
					"open_minutes":     state.openMinutes,
					"quota_minutes":    acct.MonthlyMinuteQuota,
					"estimate_minutes": estimatedMinutes,
				})
		}
	}

	res := call.NewReservation(accountID, destination, estimatedMinutes, l.config.ReservationGrace)
	state.open[res.ID] = res
	state.openMinutes += estimatedMinutes

	l.mu.Lock()
	l.index[res.ID] = accountID
	l.mu.Unlock()

	remaining := int64(-1)
	if !acct.Unlimited() {
		remaining = acct.MonthlyMinuteQuota - acct.MinutesUsed - state.openMinutes
		if remaining < 0 {
			remaining = 0
		}
	}

	l.logger.Debug("reservation created",
		zap.String("reservation_id", res.ID.String()),
		zap.String("account_id", accountID.String()),
		zap.Int64("estimated_minutes", estimatedMinutes),
		zap.Int64("remaining_minutes", remaining))

	return res, remaining, nil
}

// Commit replaces the reservation's estimate with the actual duration and
// folds it into the account's used counter. In-flight calls are never
// aborted, so actual may exceed the estimate; the overage becomes visible
// to the next Reserve immediately.
func (l *Ledger) Commit(ctx context.Context, reservationID uuid.UUID, actualMinutes int64) error {
	if actualMinutes < 0 {
		return errors.NewValidationError("INVALID_DURATION", "actual minutes cannot be negative")
	}

	state, res, err := l.lookup(reservationID)
	if err != nil {
		return err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	// Re-check under the lock; a concurrent Release or sweep may have won.
	if _, ok := state.open[reservationID]; !ok {
		return errors.ErrReservationNotFound
	}

	acct, err := l.accounts.IncrementUsage(ctx, res.AccountID, actualMinutes)
	if err != nil {
		// Keep the reservation so the debit is not lost; the caller or the
		// sweep retries.
		return errors.NewStoreUnavailableError("failed to persist usage").WithCause(err)
	}

	delete(state.open, reservationID)
	state.openMinutes -= res.EstimatedMinutes
	l.forget(reservationID)

	l.logger.Info("reservation committed",
		zap.String("reservation_id", reservationID.String()),
		zap.String("account_id", res.AccountID.String()),
		zap.Int64("estimated_minutes", res.EstimatedMinutes),
		zap.Int64("actual_minutes", actualMinutes),
		zap.Int64("minutes_used", acct.MinutesUsed))

	l.notifyThresholds(ctx, acct, acct.MinutesUsed-actualMinutes)

	return nil
}

// Release discards the reservation without touching used minutes. Releasing
// an unknown or already-finalized reservation is a no-op so crashed-worker
// retries are safe.
func (l *Ledger) Release(ctx context.Context, reservationID uuid.UUID) error {
	state, res, err := l.lookup(reservationID)
	if err != nil {
		return nil // already finalized; idempotent
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if _, ok := state.open[reservationID]; !ok {
		return nil
	}

	delete(state.open, reservationID)
	state.openMinutes -= res.EstimatedMinutes
	l.forget(reservationID)

	l.logger.Debug("reservation released",
		zap.String("reservation_id", reservationID.String()),
		zap.String("account_id", res.AccountID.String()))

	return nil
}

// OpenMinutes returns the sum of open reservation estimates for an account.
func (l *Ledger) OpenMinutes(accountID uuid.UUID) int64 {
	state := l.stateFor(accountID)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.openMinutes
}

// SweepExpired auto-releases reservations whose grace window has lapsed,
// reclaiming quota from dialer workers that crashed without releasing.
func (l *Ledger) SweepExpired(ctx context.Context, now time.Time) int {
	// Snapshot the index first. Reserve/Commit/Release take state.mu and
	// then l.mu, so the sweep must never hold l.mu while locking a state.
	type indexed struct {
		reservationID uuid.UUID
		accountID     uuid.UUID
	}
	l.mu.Lock()
	snapshot := make([]indexed, 0, len(l.index))
	for resID, accountID := range l.index {
		snapshot = append(snapshot, indexed{reservationID: resID, accountID: accountID})
	}
	l.mu.Unlock()

	var expired []uuid.UUID
	for _, entry := range snapshot {
		state := l.stateFor(entry.accountID)
		state.mu.Lock()
		if res, ok := state.open[entry.reservationID]; ok && res.Expired(now) {
			expired = append(expired, entry.reservationID)
		}
		state.mu.Unlock()
	}

	for _, resID := range expired {
		l.logger.Warn("auto-releasing abandoned reservation",
			zap.String("reservation_id", resID.String()))
		_ = l.Release(ctx, resID)
	}

	return len(expired)
}

// RunSweeper runs the background sweep until the context is canceled.
func (l *Ledger) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(l.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.SweepExpired(ctx, time.Now()); n > 0 {
				l.logger.Info("sweep reclaimed reservations", zap.Int("count", n))
			}
		}
	}
}

func (l *Ledger) stateFor(accountID uuid.UUID) *accountState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[accountID]
	if !ok {
		state = &accountState{open: make(map[uuid.UUID]*call.Reservation)}
		l.states[accountID] = state
	}
	return state
}

func (l *Ledger) lookup(reservationID uuid.UUID) (*accountState, *call.Reservation, error) {
	l.mu.Lock()
	accountID, ok := l.index[reservationID]
	if !ok {
		l.mu.Unlock()
		return nil, nil, errors.ErrReservationNotFound
	}
	state := l.states[accountID]
	l.mu.Unlock()

	state.mu.Lock()
	res, ok := state.open[reservationID]
	state.mu.Unlock()
	if !ok {
		return nil, nil, errors.ErrReservationNotFound
	}

	return state, res, nil
}

func (l *Ledger) forget(reservationID uuid.UUID) {
	l.mu.Lock()
	delete(l.index, reservationID)
	l.mu.Unlock()
}

// notifyThresholds publishes usage.threshold_crossed when the commit moved
// the account's usage across the 80% or 100% line.
func (l *Ledger) notifyThresholds(ctx context.Context, acct *account.Account, usedBefore int64) {
	if acct.Unlimited() {
		return
	}

	before := float64(usedBefore) / float64(acct.MonthlyMinuteQuota) * 100
	after := acct.UsagePercent()

	for _, threshold := range notifyThresholds {
		if before < threshold && after >= threshold {
			l.publisher.Publish(ctx, events.NewUsageThresholdCrossed(
				acct.ID, acct.MinutesUsed, acct.MonthlyMinuteQuota, after))

			l.logger.Warn("usage threshold crossed",
				zap.String("account_id", acct.ID.String()),
				zap.Float64("threshold", threshold),
				zap.Float64("usage_percent", after))
		}
	}
}
