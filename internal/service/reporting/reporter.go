package reporting

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/reporting"
)

// ComplianceReporter synthesizes a per-period compliance score from call
// and violation history.
type ComplianceReporter struct {
	calls      CallRepository
	violations ViolationRepository
}

func NewComplianceReporter(calls CallRepository, violations ViolationRepository) *ComplianceReporter {
	return &ComplianceReporter{calls: calls, violations: violations}
}

func (r *ComplianceReporter) Generate(ctx context.Context, accountID uuid.UUID, from, to time.Time) (*reporting.ComplianceReport, error) {
	records, err := r.calls.ListFinalized(ctx, accountID, from, to)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("loading call records").WithCause(err)
	}
	violations, err := r.violations.CountInWindow(ctx, accountID, from, to)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("counting violations").WithCause(err)
	}

	totalCalls := int64(len(records))

	// an idle period scores against a nominal 100 calls so the score
	// still reflects any violations recorded while no calls connected
	scoreBase := totalCalls
	if scoreBase == 0 {
		scoreBase = 100
	}

	// violations are not one-per-call, so the compliant count can go
	// negative; clamp and flag instead of inventing a different formula
	compliant := scoreBase - violations
	discrepancy := false
	if compliant < 0 {
		compliant = 0
		discrepancy = true
	}
	score := int(math.Round(100 * float64(compliant) / float64(scoreBase)))

	report := &reporting.ComplianceReport{
		ID:              uuid.New(),
		AccountID:       accountID,
		PeriodStart:     from,
		PeriodEnd:       to,
		TotalCalls:      totalCalls,
		TotalViolations: violations,
		CompliantCalls:  compliant,
		Score:           score,
		Discrepancy:     discrepancy,
		Recommendations: recommendations(score, violations, discrepancy),
		GeneratedAt:     time.Now().UTC(),
	}
	return report, nil
}

// Percentile positions a metric against fleet benchmarks.
func Percentile(userValue, average, topQuartile float64) float64 {
	switch {
	case userValue >= topQuartile:
		return 90
	case userValue >= average:
		if topQuartile == average {
			return 50
		}
		return 50 + (userValue-average)/(topQuartile-average)*40
	case average == 0:
		return 0
	default:
		return userValue / average * 50
	}
}

// Compare builds a benchmark entry for one metric.
func Compare(metric string, userValue, average, topQuartile float64) reporting.BenchmarkData {
	return reporting.BenchmarkData{
		Metric:      metric,
		UserValue:   userValue,
		Average:     average,
		TopQuartile: topQuartile,
		Percentile:  Percentile(userValue, average, topQuartile),
	}
}

func recommendations(score int, violations int64, discrepancy bool) []string {
	var recs []string
	if discrepancy {
		recs = append(recs, "violation count exceeded call count for the period; audit rule configuration and violation sources")
	}
	if violations > 0 {
		recs = append(recs, "review recent violations and refresh DNC and consent imports")
	}
	if score < 90 {
		recs = append(recs, "compliance score below 90; consider tightening calling-hour and frequency rules")
	}
	return recs
}
