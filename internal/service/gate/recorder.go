package gate

import (
	"context"

	"go.uber.org/zap"

	"github.com/dialerops/callgate-backend/internal/domain/compliance"
	"github.com/dialerops/callgate-backend/internal/domain/events"
)

// ViolationRecorder persists violations produced by rule evaluation and
// publishes an alert event for high and critical severities.
type ViolationRecorder struct {
	violations ViolationRepository
	publisher  EventPublisher
	logger     *zap.Logger
}

func NewViolationRecorder(violations ViolationRepository, publisher EventPublisher, logger *zap.Logger) *ViolationRecorder {
	return &ViolationRecorder{
		violations: violations,
		publisher:  publisher,
		logger:     logger,
	}
}

// Record saves every violation. A persistence failure is logged but
// does not abort the remaining saves; the violation list is audit
// evidence and each entry stands alone.
func (r *ViolationRecorder) Record(ctx context.Context, violations []*compliance.Violation) {
	for _, v := range violations {
		if err := r.violations.Save(ctx, v); err != nil {
			r.logger.Error("failed to persist compliance violation",
				zap.String("account_id", v.AccountID.String()),
				zap.String("type", string(v.Type)),
				zap.Error(err),
			)
			continue
		}
		if v.Severity >= compliance.SeverityHigh {
			r.publisher.Publish(ctx, events.NewComplianceViolation(
				v.AccountID, string(v.Type), v.Severity.String(), v.Destination.String(),
			))
		}
	}
}
