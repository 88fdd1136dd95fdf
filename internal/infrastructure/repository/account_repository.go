package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/account"
	"github.com/dialerops/callgate-backend/internal/domain/errors"
)

// AccountRepository persists accounts in PostgreSQL.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	id, name, email, status, monthly_minute_quota, minutes_used,
	per_minute_rate, max_concurrent_calls, enabled_features, settings,
	created_at, updated_at`

func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	features, err := json.Marshal(a.EnabledFeatures)
	if err != nil {
		return fmt.Errorf("marshaling enabled features: %w", err)
	}
	settings, err := json.Marshal(a.Settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Email, a.Status.String(),
		a.MonthlyMinuteQuota, a.MinutesUsed,
		a.PerMinuteRate, a.MaxConcurrentCalls,
		features, settings, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// IncrementUsage atomically folds committed minutes into the account's
// used counter and returns the updated row.
func (r *AccountRepository) IncrementUsage(ctx context.Context, id uuid.UUID, minutes int64) (*account.Account, error) {
	if minutes < 0 {
		return nil, errors.NewValidationError("INVALID_USAGE", "minutes cannot be negative")
	}
	query := `
		UPDATE accounts
		SET minutes_used = minutes_used + $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + accountColumns
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id, minutes))
}

// ListActiveIDs returns the accounts eligible for reporting runs.
func (r *AccountRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM accounts WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("listing active accounts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *AccountRepository) scanAccount(row rowScanner) (*account.Account, error) {
	var a account.Account
	var statusStr string
	var featuresJSON, settingsJSON []byte

	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &statusStr,
		&a.MonthlyMinuteQuota, &a.MinutesUsed,
		&a.PerMinuteRate, &a.MaxConcurrentCalls,
		&featuresJSON, &settingsJSON,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	a.Status = parseAccountStatus(statusStr)
	if err := json.Unmarshal(featuresJSON, &a.EnabledFeatures); err != nil {
		a.EnabledFeatures = []string{}
	}
	if err := json.Unmarshal(settingsJSON, &a.Settings); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return &a, nil
}

func parseAccountStatus(s string) account.Status {
	switch s {
	case "pending":
		return account.StatusPending
	case "active":
		return account.StatusActive
	case "suspended":
		return account.StatusSuspended
	case "closed":
		return account.StatusClosed
	default:
		return account.StatusPending
	}
}
