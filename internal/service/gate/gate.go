package gate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dialerops/callgate-backend/internal/domain/call"
	"github.com/dialerops/callgate-backend/internal/domain/compliance"
	"github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// Denial reasons carried on Decision.Reason.
const (
	ReasonComplianceViolation = "compliance_violation"
	ReasonQuotaExceeded       = "quota_exceeded"
	ReasonRateLimited         = "rate_limited"
)

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allow            bool                    `json:"allow"`
	Reason           string                  `json:"reason,omitempty"`
	ReservationID    *uuid.UUID              `json:"reservation_id,omitempty"`
	CallID           *uuid.UUID              `json:"call_id,omitempty"`
	Violations       []*compliance.Violation `json:"violations"`
	Warnings         []compliance.Warning    `json:"warnings"`
	RemainingMinutes int64                   `json:"remaining_minutes"`
}

// Config tunes the gate's admission locking and throttling.
type Config struct {
	// LockTimeout bounds how long Evaluate waits for the per-destination
	// admission lock before reporting a transient failure.
	LockTimeout time.Duration

	// AttemptsPerSecond throttles admission attempts per account.
	// Zero disables throttling.
	AttemptsPerSecond float64
	AttemptBurst      int
}

func DefaultConfig() Config {
	return Config{
		LockTimeout:       2 * time.Second,
		AttemptsPerSecond: 0,
		AttemptBurst:      1,
	}
}

// CallGate is the admission-control decision point invoked immediately
// before a call is placed. It combines compliance rule evaluation and
// quota reservation into one admission step serialized per
// (account, destination) so concurrent dialer workers cannot slip past
// the frequency limit or the last quota slot together.
type CallGate struct {
	accounts  AccountRepository
	calls     CallRepository
	evaluator PolicyEvaluator
	ledger    UsageLedger
	recorder  *ViolationRecorder
	activity  ActivityRecorder
	logger    *zap.Logger
	config    Config

	locks *keyedMutex

	limiterMu sync.Mutex
	limiters  map[uuid.UUID]*rate.Limiter
}

func New(
	accounts AccountRepository,
	calls CallRepository,
	evaluator PolicyEvaluator,
	ledger UsageLedger,
	recorder *ViolationRecorder,
	activity ActivityRecorder,
	logger *zap.Logger,
	config Config,
) *CallGate {
	if config.LockTimeout <= 0 {
		config.LockTimeout = DefaultConfig().LockTimeout
	}
	return &CallGate{
		accounts:  accounts,
		calls:     calls,
		evaluator: evaluator,
		ledger:    ledger,
		recorder:  recorder,
		activity:  activity,
		logger:    logger,
		config:    config,
		locks:     newKeyedMutex(),
		limiters:  make(map[uuid.UUID]*rate.Limiter),
	}
}

// Evaluate decides whether the proposed call may be placed. Denials are
// side-effect-free apart from recorded violations; nothing touches the
// activity log or the ledger unless the call is admitted. On success
// the caller owns the reservation and must finalize it with Commit or
// Release.
func (g *CallGate) Evaluate(ctx context.Context, accountID uuid.UUID, destination values.PhoneNumber, estimatedMinutes int64, timezone string) (*Decision, error) {
	if estimatedMinutes <= 0 {
		return nil, errors.NewValidationError("INVALID_ESTIMATE", "estimated minutes must be positive")
	}

	if !g.allowAttempt(accountID) {
		return &Decision{
			Allow:      false,
			Reason:     ReasonRateLimited,
			Violations: []*compliance.Violation{},
			Warnings:   []compliance.Warning{},
		}, nil
	}

	release, err := g.locks.acquire(ctx, accountID.String()+"|"+destination.String(), g.config.LockTimeout)
	if err != nil {
		return nil, errors.NewLockTimeoutError("admission lock for destination").WithCause(err)
	}
	defer release()

	acct, err := g.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, err
		}
		return nil, errors.NewStoreUnavailableError("loading account").WithCause(err)
	}
	if acct.IsSuspended() {
		return nil, errors.ErrAccountSuspended
	}

	now := time.Now()
	result, err := g.evaluator.Evaluate(ctx, acct, destination, timezone, now)
	if err != nil {
		return nil, err
	}

	if !result.Compliant {
		g.recorder.Record(ctx, result.Violations)
		g.logger.Info("call denied by compliance rules",
			zap.String("account_id", accountID.String()),
			zap.String("destination", destination.String()),
			zap.Int("violations", len(result.Violations)),
		)
		return &Decision{
			Allow:      false,
			Reason:     ReasonComplianceViolation,
			Violations: result.Violations,
			Warnings:   result.Warnings,
		}, nil
	}

	reservation, remaining, err := g.ledger.Reserve(ctx, accountID, destination, estimatedMinutes)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeQuota) {
			// quota exhaustion is a billing condition, not a violation
			return &Decision{
				Allow:      false,
				Reason:     ReasonQuotaExceeded,
				Violations: []*compliance.Violation{},
				Warnings:   result.Warnings,
			}, nil
		}
		return nil, err
	}

	record, err := call.NewRecord(accountID, destination, reservation.ID)
	if err != nil {
		if relErr := g.ledger.Release(ctx, reservation.ID); relErr != nil {
			g.logger.Error("failed to release reservation",
				zap.String("reservation_id", reservation.ID.String()),
				zap.Error(relErr),
			)
		}
		return nil, err
	}
	if err := g.calls.Save(ctx, record); err != nil {
		// a call we cannot persist must not hold quota
		if relErr := g.ledger.Release(ctx, reservation.ID); relErr != nil {
			g.logger.Error("failed to release reservation after save failure",
				zap.String("reservation_id", reservation.ID.String()),
				zap.Error(relErr),
			)
		}
		return nil, errors.NewStoreUnavailableError("persisting call record").WithCause(err)
	}

	if err := g.activity.Record(ctx, accountID, destination, now); err != nil {
		// an unrecorded call would evade the frequency window, so deny
		if relErr := g.ledger.Release(ctx, reservation.ID); relErr != nil {
			g.logger.Error("failed to release reservation after activity failure",
				zap.String("reservation_id", reservation.ID.String()),
				zap.Error(relErr),
			)
		}
		return nil, errors.NewStoreUnavailableError("recording destination activity").WithCause(err)
	}

	g.logger.Info("call admitted",
		zap.String("account_id", accountID.String()),
		zap.String("destination", destination.String()),
		zap.String("reservation_id", reservation.ID.String()),
		zap.Int64("remaining_minutes", remaining),
	)

	return &Decision{
		Allow:            true,
		ReservationID:    &reservation.ID,
		CallID:           &record.ID,
		Violations:       []*compliance.Violation{},
		Warnings:         result.Warnings,
		RemainingMinutes: remaining,
	}, nil
}

// Commit finalizes an admitted call with its real duration and outcome.
func (g *CallGate) Commit(ctx context.Context, reservationID uuid.UUID, actualMinutes int64, outcome call.Outcome) error {
	record, err := g.calls.GetByReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	if err := g.ledger.Commit(ctx, reservationID, actualMinutes); err != nil {
		return err
	}

	if err := record.Complete(actualMinutes, outcome); err != nil {
		return err
	}
	if err := g.calls.Save(ctx, record); err != nil {
		return errors.NewStoreUnavailableError("updating call record").WithCause(err)
	}
	return nil
}

// Release abandons an admitted call that never connected. The quota
// hold is returned and no usage accrues. Safe to call more than once.
func (g *CallGate) Release(ctx context.Context, reservationID uuid.UUID) error {
	if err := g.ledger.Release(ctx, reservationID); err != nil {
		return err
	}

	record, err := g.calls.GetByReservation(ctx, reservationID)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil
		}
		return err
	}
	if record.Finalized() {
		return nil
	}
	if err := record.Abandon(); err != nil {
		return err
	}
	if err := g.calls.Save(ctx, record); err != nil {
		return errors.NewStoreUnavailableError("updating call record").WithCause(err)
	}
	return nil
}

func (g *CallGate) allowAttempt(accountID uuid.UUID) bool {
	if g.config.AttemptsPerSecond <= 0 {
		return true
	}
	g.limiterMu.Lock()
	limiter, ok := g.limiters[accountID]
	if !ok {
		burst := g.config.AttemptBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(g.config.AttemptsPerSecond), burst)
		g.limiters[accountID] = limiter
	}
	g.limiterMu.Unlock()
	return limiter.Allow()
}
