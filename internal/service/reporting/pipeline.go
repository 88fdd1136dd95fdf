package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dialerops/callgate-backend/internal/domain/reporting"
)

// RunResult bundles the artifacts of one pipeline run for an account.
type RunResult struct {
	Stats    *reporting.CallStats
	Previous *reporting.CallStats
	Targets  []*reporting.KPITarget
	Insights []*reporting.PredictiveInsight
	Report   *reporting.ComplianceReport
}

// Pipeline runs the derived reporting computations for an account:
// aggregation, KPI refresh, insight generation, and the compliance
// report. Runs are deduplicated per account so an overlapping schedule
// tick cannot produce duplicate KPI or insight rows.
type Pipeline struct {
	aggregator *MetricsAggregator
	tracker    *KPITracker
	insights   *InsightGenerator
	reporter   *ComplianceReporter

	insightRepo InsightRepository
	reportRepo  ReportRepository
	logger      *zap.Logger

	window time.Duration
	group  singleflight.Group
}

func NewPipeline(
	aggregator *MetricsAggregator,
	tracker *KPITracker,
	insights *InsightGenerator,
	reporter *ComplianceReporter,
	insightRepo InsightRepository,
	reportRepo ReportRepository,
	logger *zap.Logger,
	window time.Duration,
) *Pipeline {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &Pipeline{
		aggregator:  aggregator,
		tracker:     tracker,
		insights:    insights,
		reporter:    reporter,
		insightRepo: insightRepo,
		reportRepo:  reportRepo,
		logger:      logger,
		window:      window,
	}
}

// Run executes the pipeline for one account. Concurrent calls for the
// same account share a single execution and its result.
func (p *Pipeline) Run(ctx context.Context, accountID uuid.UUID) (*RunResult, error) {
	v, err, _ := p.group.Do(accountID.String(), func() (interface{}, error) {
		return p.run(ctx, accountID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RunResult), nil
}

func (p *Pipeline) run(ctx context.Context, accountID uuid.UUID) (*RunResult, error) {
	now := time.Now().UTC()
	currentStart := now.Add(-p.window)
	previousStart := now.Add(-2 * p.window)

	current, err := p.aggregator.Aggregate(ctx, accountID, currentStart, now)
	if err != nil {
		return nil, err
	}
	previous, err := p.aggregator.Aggregate(ctx, accountID, previousStart, currentStart)
	if err != nil {
		return nil, err
	}

	targets, err := p.tracker.Refresh(ctx, accountID, current)
	if err != nil {
		return nil, err
	}

	insights := p.insights.Generate(accountID, previous, current)
	if err := p.insightRepo.Replace(ctx, accountID, insights); err != nil {
		return nil, err
	}

	report, err := p.reporter.Generate(ctx, accountID, currentStart, now)
	if err != nil {
		return nil, err
	}
	if err := p.reportRepo.SaveReport(ctx, report); err != nil {
		return nil, err
	}

	return &RunResult{
		Stats:    current,
		Previous: previous,
		Targets:  targets,
		Insights: insights,
		Report:   report,
	}, nil
}

// RunPeriodic runs the pipeline for every listed account on each tick
// until the context is canceled. A failed run is logged and retried on
// the next tick; it never surfaces to the admission path.
func (p *Pipeline) RunPeriodic(ctx context.Context, interval time.Duration, accountIDs func(context.Context) ([]uuid.UUID, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := accountIDs(ctx)
			if err != nil {
				p.logger.Error("failed to list accounts for reporting run", zap.Error(err))
				continue
			}
			for _, id := range ids {
				if _, err := p.Run(ctx, id); err != nil {
					p.logger.Error("reporting run failed",
						zap.String("account_id", id.String()),
						zap.Error(err))
				}
			}
		}
	}
}
