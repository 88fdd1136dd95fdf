package reporting_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dialerops/callgate-backend/internal/domain/call"
	"github.com/dialerops/callgate-backend/internal/domain/compliance"
	domainreporting "github.com/dialerops/callgate-backend/internal/domain/reporting"
	"github.com/dialerops/callgate-backend/internal/domain/values"
	"github.com/dialerops/callgate-backend/internal/service/reporting"
	"github.com/dialerops/callgate-backend/internal/testutil"
)

var dest = values.MustNewPhoneNumber("+15553332211")

func addCall(t *testing.T, store *testutil.CallStore, accountID uuid.UUID, start time.Time, minutes int64, outcome call.Outcome) {
	t.Helper()
	r, err := call.NewRecord(accountID, dest, uuid.New())
	require.NoError(t, err)
	r.StartTime = start
	require.NoError(t, r.Complete(minutes, outcome))
	require.NoError(t, store.Save(context.Background(), r))
}

func TestKPIStatusBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		target  float64
		want    domainreporting.KPIStatus
	}{
		{"exceeded at target", 100, 100, domainreporting.KPIExceeded},
		{"exceeded above target", 140, 100, domainreporting.KPIExceeded},
		{"on track at 80 percent", 80, 100, domainreporting.KPIOnTrack},
		{"at risk just below 80", 79, 100, domainreporting.KPIAtRisk},
		{"at risk at 60 percent", 60, 100, domainreporting.KPIAtRisk},
		{"behind below 60", 59, 100, domainreporting.KPIBehind},
		{"behind at zero", 0, 100, domainreporting.KPIBehind},
		{"zero target trivially met", 5, 0, domainreporting.KPIExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reporting.StatusFor(tt.current, tt.target))
		})
	}
}

func TestBenchmarkPercentile(t *testing.T) {
	tests := []struct {
		name        string
		userValue   float64
		average     float64
		topQuartile float64
		want        float64
	}{
		{"at top quartile", 25, 15, 25, 90},
		{"above top quartile", 40, 15, 25, 90},
		{"between average and top quartile", 20, 15, 25, 70},
		{"at average", 15, 15, 25, 50},
		{"below average", 7.5, 15, 25, 25},
		{"zero value", 0, 15, 25, 0},
		{"zero average guard", 0, 0, 0, 90}, // 0 >= 0 top quartile
		{"zero average below quartile", 1, 0, 5, 50 + 1.0/5.0*40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, reporting.Percentile(tt.userValue, tt.average, tt.topQuartile), 0.0001)
		})
	}
}

func TestMetricsAggregator(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()
	calls := testutil.NewCallStore()
	now := time.Now().UTC()

	addCall(t, calls, accountID, now.Add(-time.Hour), 10, call.OutcomeAnswered)
	addCall(t, calls, accountID, now.Add(-2*time.Hour), 6, call.OutcomeConverted)

	// abandoned call counts toward totals only
	abandoned, err := call.NewRecord(accountID, dest, uuid.New())
	require.NoError(t, err)
	abandoned.StartTime = now.Add(-3 * time.Hour)
	require.NoError(t, abandoned.Abandon())
	require.NoError(t, calls.Save(ctx, abandoned))

	// outside the window
	addCall(t, calls, accountID, now.Add(-48*time.Hour), 30, call.OutcomeAnswered)

	stats, err := reporting.NewMetricsAggregator(calls).Aggregate(ctx, accountID, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, int64(2), stats.CompletedCalls)
	assert.Equal(t, int64(1), stats.ConvertedCalls)
	assert.Equal(t, int64(16), stats.TotalMinutes)
	assert.InDelta(t, 8.0, stats.AverageDuration, 0.0001)
	assert.InDelta(t, 66.6667, stats.CompletionRate, 0.001)
	assert.InDelta(t, 33.3333, stats.ConversionRate, 0.001)
}

func TestKPITracker_Refresh(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()
	kpis := testutil.NewKPIStore()
	require.NoError(t, kpis.Save(ctx, &domainreporting.KPITarget{
		ID:          uuid.New(),
		AccountID:   accountID,
		Name:        reporting.MetricTotalCalls,
		TargetValue: 100,
		Period:      domainreporting.PeriodWeekly,
	}))

	tracker := reporting.NewKPITracker(kpis, zaptest.NewLogger(t))
	stats := &domainreporting.CallStats{AccountID: accountID, TotalCalls: 80}

	targets, err := tracker.Refresh(ctx, accountID, stats)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, float64(80), targets[0].CurrentValue)
	assert.Equal(t, domainreporting.KPIOnTrack, targets[0].Status)
}

func TestInsightGenerator(t *testing.T) {
	accountID := uuid.New()
	gen := reporting.NewInsightGenerator()

	t.Run("no movement yields no insights", func(t *testing.T) {
		prev := &domainreporting.CallStats{TotalCalls: 100, ConversionRate: 10, AverageDuration: 5}
		cur := &domainreporting.CallStats{TotalCalls: 110, ConversionRate: 12, AverageDuration: 5.5}
		assert.Empty(t, gen.Generate(accountID, prev, cur))
	})

	t.Run("volume spike", func(t *testing.T) {
		prev := &domainreporting.CallStats{TotalCalls: 100}
		cur := &domainreporting.CallStats{TotalCalls: 130}
		insights := gen.Generate(accountID, prev, cur)
		require.Len(t, insights, 1)
		assert.Equal(t, domainreporting.InsightVolume, insights[0].Category)
		assert.Equal(t, domainreporting.TrendUp, insights[0].Direction)
		assert.Equal(t, 0.8, insights[0].Confidence)
	})

	t.Run("volume at threshold does not trigger", func(t *testing.T) {
		prev := &domainreporting.CallStats{TotalCalls: 100}
		cur := &domainreporting.CallStats{TotalCalls: 120}
		assert.Empty(t, gen.Generate(accountID, prev, cur))
	})

	t.Run("conversion drop", func(t *testing.T) {
		prev := &domainreporting.CallStats{TotalCalls: 100, ConversionRate: 20}
		cur := &domainreporting.CallStats{TotalCalls: 100, ConversionRate: 12}
		insights := gen.Generate(accountID, prev, cur)
		require.Len(t, insights, 1)
		assert.Equal(t, domainreporting.InsightConversion, insights[0].Category)
		assert.Equal(t, domainreporting.TrendDown, insights[0].Direction)
		assert.Equal(t, 0.75, insights[0].Confidence)
	})

	t.Run("duration anomaly", func(t *testing.T) {
		prev := &domainreporting.CallStats{TotalCalls: 100, AverageDuration: 4}
		cur := &domainreporting.CallStats{TotalCalls: 100, AverageDuration: 9}
		insights := gen.Generate(accountID, prev, cur)
		require.Len(t, insights, 1)
		assert.Equal(t, domainreporting.InsightDuration, insights[0].Category)
		assert.Equal(t, 0.9, insights[0].Confidence)
	})
}

func TestComplianceReporter(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	// violations are stamped at save time, so the window must extend past now
	from, to := now.Add(-24*time.Hour), now.Add(time.Minute)

	t.Run("clean period", func(t *testing.T) {
		accountID := uuid.New()
		calls := testutil.NewCallStore()
		violations := testutil.NewViolationStore()
		for i := 0; i < 4; i++ {
			addCall(t, calls, accountID, now.Add(-time.Hour), 5, call.OutcomeAnswered)
		}

		report, err := reporting.NewComplianceReporter(calls, violations).Generate(ctx, accountID, from, to)
		require.NoError(t, err)
		assert.Equal(t, int64(4), report.TotalCalls)
		assert.Equal(t, 100, report.Score)
		assert.False(t, report.Discrepancy)
		assert.Empty(t, report.Recommendations)
	})

	t.Run("violations lower the score", func(t *testing.T) {
		accountID := uuid.New()
		calls := testutil.NewCallStore()
		violations := testutil.NewViolationStore()
		for i := 0; i < 10; i++ {
			addCall(t, calls, accountID, now.Add(-time.Hour), 5, call.OutcomeAnswered)
		}
		for i := 0; i < 2; i++ {
			require.NoError(t, violations.Save(ctx, compliance.NewViolation(
				accountID, dest, compliance.ViolationDNC, compliance.SeverityCritical, "dnc hit")))
		}

		report, err := reporting.NewComplianceReporter(calls, violations).Generate(ctx, accountID, from, to)
		require.NoError(t, err)
		assert.Equal(t, int64(8), report.CompliantCalls)
		assert.Equal(t, 80, report.Score)
		assert.NotEmpty(t, report.Recommendations)
	})

	t.Run("idle period scores against nominal calls", func(t *testing.T) {
		accountID := uuid.New()
		report, err := reporting.NewComplianceReporter(testutil.NewCallStore(), testutil.NewViolationStore()).
			Generate(ctx, accountID, from, to)
		require.NoError(t, err)
		assert.Equal(t, int64(0), report.TotalCalls)
		assert.Equal(t, 100, report.Score)
	})

	t.Run("violations exceeding calls clamp and flag", func(t *testing.T) {
		accountID := uuid.New()
		calls := testutil.NewCallStore()
		violations := testutil.NewViolationStore()
		addCall(t, calls, accountID, now.Add(-time.Hour), 5, call.OutcomeAnswered)
		for i := 0; i < 3; i++ {
			require.NoError(t, violations.Save(ctx, compliance.NewViolation(
				accountID, dest, compliance.ViolationFrequency, compliance.SeverityMedium, "over limit")))
		}

		report, err := reporting.NewComplianceReporter(calls, violations).Generate(ctx, accountID, from, to)
		require.NoError(t, err)
		assert.Equal(t, int64(0), report.CompliantCalls)
		assert.Equal(t, 0, report.Score)
		assert.True(t, report.Discrepancy)
	})
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()
	logger := zaptest.NewLogger(t)

	calls := testutil.NewCallStore()
	violations := testutil.NewViolationStore()
	kpis := testutil.NewKPIStore()
	insightStore := testutil.NewInsightStore()
	reports := testutil.NewReportStore()

	now := time.Now().UTC()
	// previous week: 10 calls; current week: 15 calls, a >20% jump
	for i := 0; i < 10; i++ {
		addCall(t, calls, accountID, now.Add(-8*24*time.Hour), 5, call.OutcomeAnswered)
	}
	for i := 0; i < 15; i++ {
		addCall(t, calls, accountID, now.Add(-24*time.Hour), 5, call.OutcomeAnswered)
	}

	pipeline := reporting.NewPipeline(
		reporting.NewMetricsAggregator(calls),
		reporting.NewKPITracker(kpis, logger),
		reporting.NewInsightGenerator(),
		reporting.NewComplianceReporter(calls, violations),
		insightStore,
		reports,
		logger,
		7*24*time.Hour,
	)

	result, err := pipeline.Run(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), result.Stats.TotalCalls)
	assert.Equal(t, int64(10), result.Previous.TotalCalls)
	require.Len(t, result.Insights, 1)
	assert.Equal(t, domainreporting.InsightVolume, result.Insights[0].Category)
	require.NotNil(t, result.Report)
	assert.Equal(t, 100, result.Report.Score)

	stored, err := insightStore.ListByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Len(t, reports.Reports(), 1)
}
