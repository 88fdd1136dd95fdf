package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/compliance"
	"github.com/dialerops/callgate-backend/internal/domain/dnc"
	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// DNCRepository persists do-not-call entries.
type DNCRepository struct {
	db *sql.DB
}

func NewDNCRepository(db *sql.DB) *DNCRepository {
	return &DNCRepository{db: db}
}

func (r *DNCRepository) Save(ctx context.Context, e *dnc.Entry) error {
	query := `
		INSERT INTO dnc_entries (id, account_id, phone_number, reason, source, added_at, expires_at, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account_id, phone_number) DO UPDATE
		SET reason = EXCLUDED.reason, source = EXCLUDED.source,
		    expires_at = EXCLUDED.expires_at, notes = EXCLUDED.notes,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.AccountID, e.PhoneNumber, string(e.Reason), string(e.Source),
		e.AddedAt, e.ExpiresAt, e.Notes, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving dnc entry: %w", err)
	}
	return nil
}

// FindActive returns the unexpired suppression entry for a destination,
// or nil when the number is callable.
func (r *DNCRepository) FindActive(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber) (*dnc.Entry, error) {
	query := `
		SELECT id, account_id, phone_number, reason, source, added_at, expires_at, notes, updated_at
		FROM dnc_entries
		WHERE account_id = $1 AND phone_number = $2
		  AND (expires_at IS NULL OR expires_at > now())
	`
	var e dnc.Entry
	var reason, source string
	err := r.db.QueryRowContext(ctx, query, accountID, phone).Scan(
		&e.ID, &e.AccountID, &e.PhoneNumber, &reason, &source,
		&e.AddedAt, &e.ExpiresAt, &e.Notes, &e.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying dnc entry: %w", err)
	}
	e.Reason = dnc.Reason(reason)
	e.Source = dnc.Source(source)
	return &e, nil
}

func (r *DNCRepository) Delete(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM dnc_entries WHERE account_id = $1 AND phone_number = $2`,
		accountID, phone)
	if err != nil {
		return fmt.Errorf("deleting dnc entry: %w", err)
	}
	return nil
}

// ConsentRepository persists consent records.
type ConsentRepository struct {
	db *sql.DB
}

func NewConsentRepository(db *sql.DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

func (r *ConsentRepository) Save(ctx context.Context, c *compliance.ConsentRecord) error {
	query := `
		INSERT INTO consent_records (id, account_id, phone_number, type, method, granted_at, revoked_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET revoked_at = EXCLUDED.revoked_at, expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.AccountID, c.PhoneNumber, string(c.Type), string(c.Method),
		c.GrantedAt, c.RevokedAt, c.ExpiresAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving consent record: %w", err)
	}
	return nil
}

// FindActive returns the newest non-revoked, unexpired consent record
// for the destination, or nil.
func (r *ConsentRepository) FindActive(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber) (*compliance.ConsentRecord, error) {
	query := `
		SELECT id, account_id, phone_number, type, method, granted_at, revoked_at, expires_at, created_at, updated_at
		FROM consent_records
		WHERE account_id = $1 AND phone_number = $2
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY granted_at DESC
		LIMIT 1
	`
	var c compliance.ConsentRecord
	var cType, method string
	err := r.db.QueryRowContext(ctx, query, accountID, phone).Scan(
		&c.ID, &c.AccountID, &c.PhoneNumber, &cType, &method,
		&c.GrantedAt, &c.RevokedAt, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying consent record: %w", err)
	}
	c.Type = compliance.ConsentType(cType)
	c.Method = compliance.ConsentMethod(method)
	return &c, nil
}

// RuleRepository persists compliance rules.
type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Save(ctx context.Context, rule *compliance.Rule) error {
	params, err := json.Marshal(rule.Params)
	if err != nil {
		return fmt.Errorf("marshaling rule params: %w", err)
	}
	query := `
		INSERT INTO compliance_rules (id, account_id, name, type, enabled, priority, params, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, enabled = EXCLUDED.enabled,
		    priority = EXCLUDED.priority, params = EXCLUDED.params,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.AccountID, rule.Name, string(rule.Type),
		rule.Enabled, rule.Priority, params, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving compliance rule: %w", err)
	}
	return nil
}

// ListEnabled returns the account's enabled rules in priority order.
func (r *RuleRepository) ListEnabled(ctx context.Context, accountID uuid.UUID) ([]*compliance.Rule, error) {
	query := `
		SELECT id, account_id, name, type, enabled, priority, params, created_at, updated_at
		FROM compliance_rules
		WHERE account_id = $1 AND enabled
		ORDER BY priority, created_at
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing compliance rules: %w", err)
	}
	defer rows.Close()

	var rules []*compliance.Rule
	for rows.Next() {
		var rule compliance.Rule
		var ruleType string
		var paramsJSON []byte
		if err := rows.Scan(
			&rule.ID, &rule.AccountID, &rule.Name, &ruleType,
			&rule.Enabled, &rule.Priority, &paramsJSON,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning compliance rule: %w", err)
		}
		rule.Type = compliance.RuleType(ruleType)
		if err := json.Unmarshal(paramsJSON, &rule.Params); err != nil {
			return nil, fmt.Errorf("unmarshaling rule params: %w", err)
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// ViolationRepository persists compliance violations.
type ViolationRepository struct {
	db *sql.DB
}

func NewViolationRepository(db *sql.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

func (r *ViolationRepository) Save(ctx context.Context, v *compliance.Violation) error {
	query := `
		INSERT INTO compliance_violations (id, account_id, call_id, type, severity, destination, description, resolved, resolved_by, resolved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET call_id = EXCLUDED.call_id, resolved = EXCLUDED.resolved,
		    resolved_by = EXCLUDED.resolved_by, resolved_at = EXCLUDED.resolved_at
	`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.AccountID, v.CallID, string(v.Type), v.Severity.String(),
		v.Destination, v.Description, v.Resolved, v.ResolvedBy, v.ResolvedAt, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving violation: %w", err)
	}
	return nil
}

func (r *ViolationRepository) CountInWindow(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM compliance_violations WHERE account_id = $1 AND created_at >= $2 AND created_at < $3`,
		accountID, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting violations: %w", err)
	}
	return n, nil
}

// ListUnresolved returns open violations for review, newest first.
func (r *ViolationRepository) ListUnresolved(ctx context.Context, accountID uuid.UUID, limit int) ([]*compliance.Violation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, account_id, call_id, type, severity, destination, description, resolved, resolved_by, resolved_at, created_at
		FROM compliance_violations
		WHERE account_id = $1 AND NOT resolved
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing violations: %w", err)
	}
	defer rows.Close()

	var out []*compliance.Violation
	for rows.Next() {
		var v compliance.Violation
		var vType, severity string
		if err := rows.Scan(
			&v.ID, &v.AccountID, &v.CallID, &vType, &severity,
			&v.Destination, &v.Description, &v.Resolved, &v.ResolvedBy, &v.ResolvedAt, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning violation: %w", err)
		}
		v.Type = compliance.ViolationType(vType)
		v.Severity = parseSeverity(severity)
		out = append(out, &v)
	}
	return out, rows.Err()
}

func parseSeverity(s string) compliance.Severity {
	switch s {
	case "low":
		return compliance.SeverityLow
	case "medium":
		return compliance.SeverityMedium
	case "high":
		return compliance.SeverityHigh
	case "critical":
		return compliance.SeverityCritical
	default:
		return compliance.SeverityLow
	}
}
