package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/call"
	"github.com/dialerops/callgate-backend/internal/domain/errors"
)

// CallRepository persists call records.
type CallRepository struct {
	db *sql.DB
}

func NewCallRepository(db *sql.DB) *CallRepository {
	return &CallRepository{db: db}
}

const callColumns = `
	id, account_id, destination, direction, status, reservation_id,
	start_time, end_time, duration_minutes, outcome, created_at, updated_at`

func (r *CallRepository) Save(ctx context.Context, rec *call.Record) error {
	query := `
		INSERT INTO call_records (` + callColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, end_time = EXCLUDED.end_time,
		    duration_minutes = EXCLUDED.duration_minutes,
		    outcome = EXCLUDED.outcome, updated_at = EXCLUDED.updated_at
	`
	var outcome *string
	if rec.Outcome != nil {
		s := string(*rec.Outcome)
		outcome = &s
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.AccountID, rec.Destination, rec.Direction.String(), rec.Status.String(),
		rec.ReservationID, rec.StartTime, rec.EndTime, rec.DurationMinutes, outcome,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving call record: %w", err)
	}
	return nil
}

func (r *CallRepository) GetByReservation(ctx context.Context, reservationID uuid.UUID) (*call.Record, error) {
	query := `SELECT ` + callColumns + ` FROM call_records WHERE reservation_id = $1`
	rec, err := scanCall(r.db.QueryRowContext(ctx, query, reservationID))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("call record")
		}
		return nil, err
	}
	return rec, nil
}

// ListFinalized returns completed, failed and abandoned calls started
// inside the window.
func (r *CallRepository) ListFinalized(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*call.Record, error) {
	query := `
		SELECT ` + callColumns + `
		FROM call_records
		WHERE account_id = $1
		  AND status IN ('completed', 'failed', 'abandoned')
		  AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing call records: %w", err)
	}
	defer rows.Close()

	var out []*call.Record
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanCall(row rowScanner) (*call.Record, error) {
	var rec call.Record
	var direction, status string
	var outcome sql.NullString

	err := row.Scan(
		&rec.ID, &rec.AccountID, &rec.Destination, &direction, &status,
		&rec.ReservationID, &rec.StartTime, &rec.EndTime, &rec.DurationMinutes, &outcome,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning call record: %w", err)
	}

	rec.Direction = parseDirection(direction)
	rec.Status = parseCallStatus(status)
	if outcome.Valid {
		o := call.Outcome(outcome.String)
		rec.Outcome = &o
	}
	return &rec, nil
}

func parseCallStatus(s string) call.Status {
	switch s {
	case "pending":
		return call.StatusPending
	case "in_progress":
		return call.StatusInProgress
	case "completed":
		return call.StatusCompleted
	case "failed":
		return call.StatusFailed
	case "abandoned":
		return call.StatusAbandoned
	default:
		return call.StatusPending
	}
}

func parseDirection(s string) call.Direction {
	if s == "inbound" {
		return call.DirectionInbound
	}
	return call.DirectionOutbound
}
