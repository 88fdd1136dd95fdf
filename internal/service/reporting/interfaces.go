package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/call"
	"github.com/dialerops/callgate-backend/internal/domain/reporting"
)

// CallRepository reads finalized call records for aggregation windows.
type CallRepository interface {
	ListFinalized(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*call.Record, error)
}

// ViolationRepository counts violations inside a reporting window.
type ViolationRepository interface {
	CountInWindow(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error)
}

// KPIRepository stores operator-defined KPI targets.
type KPIRepository interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*reporting.KPITarget, error)
	Save(ctx context.Context, target *reporting.KPITarget) error
}

// InsightRepository swaps the account's derived insights atomically each
// pipeline run so stale rows never accumulate.
type InsightRepository interface {
	Replace(ctx context.Context, accountID uuid.UUID, insights []*reporting.PredictiveInsight) error
}

// ReportRepository stores generated compliance reports.
type ReportRepository interface {
	SaveReport(ctx context.Context, report *reporting.ComplianceReport) error
}
