package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/call"
	"github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/reporting"
)

// MetricsAggregator folds finalized call records into windowed stats.
// It only reads historical data and never touches admission state.
type MetricsAggregator struct {
	calls CallRepository
}

func NewMetricsAggregator(calls CallRepository) *MetricsAggregator {
	return &MetricsAggregator{calls: calls}
}

func (a *MetricsAggregator) Aggregate(ctx context.Context, accountID uuid.UUID, from, to time.Time) (*reporting.CallStats, error) {
	records, err := a.calls.ListFinalized(ctx, accountID, from, to)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("loading call records").WithCause(err)
	}

	stats := &reporting.CallStats{
		AccountID:   accountID,
		WindowStart: from,
		WindowEnd:   to,
	}
	for _, r := range records {
		stats.TotalCalls++
		if r.Status != call.StatusCompleted {
			continue
		}
		stats.CompletedCalls++
		if r.DurationMinutes != nil {
			stats.TotalMinutes += *r.DurationMinutes
		}
		if r.Outcome != nil && *r.Outcome == call.OutcomeConverted {
			stats.ConvertedCalls++
		}
	}

	if stats.CompletedCalls > 0 {
		stats.AverageDuration = float64(stats.TotalMinutes) / float64(stats.CompletedCalls)
	}
	if stats.TotalCalls > 0 {
		stats.CompletionRate = float64(stats.CompletedCalls) / float64(stats.TotalCalls) * 100
		stats.ConversionRate = float64(stats.ConvertedCalls) / float64(stats.TotalCalls) * 100
	}
	return stats, nil
}
