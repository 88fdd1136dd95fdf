package reporting

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/reporting"
)

// Heuristic constants for insight generation. The confidences are fixed
// per category and the thresholds are part of the reporting contract.
const (
	volumeTrendRatio     = 0.2  // fraction of previous-week calls
	conversionTrendPP    = 5.0  // percentage points
	durationAnomalyRatio = 0.5  // fraction of previous average duration
	confidenceVolume     = 0.8
	confidenceConversion = 0.75
	confidenceDuration   = 0.9
)

// InsightGenerator derives trend and anomaly insights by comparing two
// consecutive aggregation windows.
type InsightGenerator struct{}

func NewInsightGenerator() *InsightGenerator {
	return &InsightGenerator{}
}

func (g *InsightGenerator) Generate(accountID uuid.UUID, previous, current *reporting.CallStats) []*reporting.PredictiveInsight {
	now := time.Now().UTC()
	insights := []*reporting.PredictiveInsight{}

	if previous.TotalCalls > 0 {
		delta := current.TotalCalls - previous.TotalCalls
		if math.Abs(float64(delta)) > volumeTrendRatio*float64(previous.TotalCalls) {
			insights = append(insights, &reporting.PredictiveInsight{
				ID:        uuid.New(),
				AccountID: accountID,
				Category:  reporting.InsightVolume,
				Headline:  fmt.Sprintf("Call volume %s sharply week over week", trendWord(delta >= 0)),
				Detail: fmt.Sprintf("%d calls this week against %d last week (%+d)",
					current.TotalCalls, previous.TotalCalls, delta),
				Direction:   direction(delta >= 0),
				Confidence:  confidenceVolume,
				GeneratedAt: now,
			})
		}
	}

	if deltaPP := current.ConversionRate - previous.ConversionRate; math.Abs(deltaPP) > conversionTrendPP {
		insights = append(insights, &reporting.PredictiveInsight{
			ID:        uuid.New(),
			AccountID: accountID,
			Category:  reporting.InsightConversion,
			Headline:  fmt.Sprintf("Conversion rate %s by %.1f points", trendWord(deltaPP >= 0), math.Abs(deltaPP)),
			Detail: fmt.Sprintf("conversion moved from %.1f%% to %.1f%%",
				previous.ConversionRate, current.ConversionRate),
			Direction:   direction(deltaPP >= 0),
			Confidence:  confidenceConversion,
			GeneratedAt: now,
		})
	}

	if previous.AverageDuration > 0 {
		delta := current.AverageDuration - previous.AverageDuration
		if math.Abs(delta) > durationAnomalyRatio*previous.AverageDuration {
			insights = append(insights, &reporting.PredictiveInsight{
				ID:        uuid.New(),
				AccountID: accountID,
				Category:  reporting.InsightDuration,
				Headline:  "Average call duration is anomalous",
				Detail: fmt.Sprintf("average duration moved from %.1f to %.1f minutes",
					previous.AverageDuration, current.AverageDuration),
				Direction:   direction(delta >= 0),
				Confidence:  confidenceDuration,
				GeneratedAt: now,
			})
		}
	}

	return insights
}

func direction(up bool) reporting.TrendDirection {
	if up {
		return reporting.TrendUp
	}
	return reporting.TrendDown
}

func trendWord(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
