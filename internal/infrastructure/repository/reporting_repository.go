package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/reporting"
)

// ReportingRepository persists KPI targets, insights and compliance
// reports.
type ReportingRepository struct {
	db *sql.DB
}

func NewReportingRepository(db *sql.DB) *ReportingRepository {
	return &ReportingRepository{db: db}
}

func (r *ReportingRepository) Save(ctx context.Context, t *reporting.KPITarget) error {
	query := `
		INSERT INTO kpi_targets (id, account_id, name, target_value, current_value, period, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET target_value = EXCLUDED.target_value,
		    current_value = EXCLUDED.current_value,
		    status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.AccountID, t.Name, t.TargetValue, t.CurrentValue,
		string(t.Period), string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving kpi target: %w", err)
	}
	return nil
}

func (r *ReportingRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*reporting.KPITarget, error) {
	query := `
		SELECT id, account_id, name, target_value, current_value, period, status, created_at, updated_at
		FROM kpi_targets
		WHERE account_id = $1
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing kpi targets: %w", err)
	}
	defer rows.Close()

	var out []*reporting.KPITarget
	for rows.Next() {
		var t reporting.KPITarget
		var period, status string
		if err := rows.Scan(
			&t.ID, &t.AccountID, &t.Name, &t.TargetValue, &t.CurrentValue,
			&period, &status, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning kpi target: %w", err)
		}
		t.Period = reporting.Period(period)
		t.Status = reporting.KPIStatus(status)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Replace swaps the account's insights in one transaction so a reader
// never sees a mix of two pipeline runs.
func (r *ReportingRepository) Replace(ctx context.Context, accountID uuid.UUID, insights []*reporting.PredictiveInsight) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM predictive_insights WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("clearing insights: %w", err)
	}

	for _, in := range insights {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO predictive_insights (id, account_id, category, headline, detail, direction, confidence, generated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			in.ID, in.AccountID, string(in.Category), in.Headline, in.Detail,
			string(in.Direction), in.Confidence, in.GeneratedAt,
		); err != nil {
			return fmt.Errorf("inserting insight: %w", err)
		}
	}
	return tx.Commit()
}

func (r *ReportingRepository) ListInsights(ctx context.Context, accountID uuid.UUID) ([]*reporting.PredictiveInsight, error) {
	query := `
		SELECT id, account_id, category, headline, detail, direction, confidence, generated_at
		FROM predictive_insights
		WHERE account_id = $1
		ORDER BY generated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing insights: %w", err)
	}
	defer rows.Close()

	var out []*reporting.PredictiveInsight
	for rows.Next() {
		var in reporting.PredictiveInsight
		var category, direction string
		if err := rows.Scan(
			&in.ID, &in.AccountID, &category, &in.Headline, &in.Detail,
			&direction, &in.Confidence, &in.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning insight: %w", err)
		}
		in.Category = reporting.InsightCategory(category)
		in.Direction = reporting.TrendDirection(direction)
		out = append(out, &in)
	}
	return out, rows.Err()
}

func (r *ReportingRepository) SaveReport(ctx context.Context, rep *reporting.ComplianceReport) error {
	recommendations, err := json.Marshal(rep.Recommendations)
	if err != nil {
		return fmt.Errorf("marshaling recommendations: %w", err)
	}
	query := `
		INSERT INTO compliance_reports (id, account_id, period_start, period_end, total_calls, total_violations, compliant_calls, score, discrepancy, recommendations, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		rep.ID, rep.AccountID, rep.PeriodStart, rep.PeriodEnd,
		rep.TotalCalls, rep.TotalViolations, rep.CompliantCalls,
		rep.Score, rep.Discrepancy, recommendations, rep.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("saving compliance report: %w", err)
	}
	return nil
}
