package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/reporting"
)

// KPI metric names resolvable from call stats.
const (
	MetricTotalCalls      = "total_calls"
	MetricCompletedCalls  = "completed_calls"
	MetricConvertedCalls  = "converted_calls"
	MetricTotalMinutes    = "total_minutes"
	MetricConversionRate  = "conversion_rate"
	MetricCompletionRate  = "completion_rate"
	MetricAverageDuration = "average_duration"
)

// KPITracker recomputes each KPI target's current value and status from
// the latest aggregation window.
type KPITracker struct {
	kpis   KPIRepository
	logger *zap.Logger
}

func NewKPITracker(kpis KPIRepository, logger *zap.Logger) *KPITracker {
	return &KPITracker{kpis: kpis, logger: logger}
}

// StatusFor derives a target's status from progress toward the target.
func StatusFor(current, target float64) reporting.KPIStatus {
	if target <= 0 {
		// a zero target is trivially met
		return reporting.KPIExceeded
	}
	progress := current / target
	switch {
	case progress >= 1:
		return reporting.KPIExceeded
	case progress >= 0.8:
		return reporting.KPIOnTrack
	case progress >= 0.6:
		return reporting.KPIAtRisk
	default:
		return reporting.KPIBehind
	}
}

// Refresh updates every KPI target for the account against the stats
// window. Targets naming an unknown metric keep their stored value but
// still have their status recomputed.
func (t *KPITracker) Refresh(ctx context.Context, accountID uuid.UUID, stats *reporting.CallStats) ([]*reporting.KPITarget, error) {
	targets, err := t.kpis.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("loading KPI targets").WithCause(err)
	}

	for _, target := range targets {
		if value, ok := metricValue(stats, target.Name); ok {
			target.CurrentValue = value
		} else {
			t.logger.Warn("KPI target references unknown metric",
				zap.String("account_id", accountID.String()),
				zap.String("metric", target.Name),
			)
		}
		target.Status = StatusFor(target.CurrentValue, target.TargetValue)
		target.UpdatedAt = time.Now().UTC()
		if err := t.kpis.Save(ctx, target); err != nil {
			return nil, errors.NewStoreUnavailableError("saving KPI target").WithCause(err)
		}
	}
	return targets, nil
}

func metricValue(stats *reporting.CallStats, metric string) (float64, bool) {
	switch metric {
	case MetricTotalCalls:
		return float64(stats.TotalCalls), true
	case MetricCompletedCalls:
		return float64(stats.CompletedCalls), true
	case MetricConvertedCalls:
		return float64(stats.ConvertedCalls), true
	case MetricTotalMinutes:
		return float64(stats.TotalMinutes), true
	case MetricConversionRate:
		return stats.ConversionRate, true
	case MetricCompletionRate:
		return stats.CompletionRate, true
	case MetricAverageDuration:
		return stats.AverageDuration, true
	}
	return 0, false
}
