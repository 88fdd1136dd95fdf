package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dialerops/callgate-backend/internal/domain/account"
	"github.com/dialerops/callgate-backend/internal/domain/compliance"
	"github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// FeatureRecordingDisclosure marks accounts whose dialer plays the
// required recording disclosure before connecting.
const FeatureRecordingDisclosure = "recording_disclosure"

// Result is the aggregated outcome of evaluating every enabled rule.
// The violation list is audit evidence, so evaluation never stops at
// the first failure.
type Result struct {
	Compliant  bool                    `json:"compliant"`
	Violations []*compliance.Violation `json:"violations"`
	Warnings   []compliance.Warning    `json:"warnings"`
	CheckID    uuid.UUID               `json:"check_id"`
	Timestamp  time.Time               `json:"timestamp"`
}

// Evaluator runs an account's compliance rule set against a proposed call.
type Evaluator struct {
	rules    RuleRepository
	dncList  DNCRepository
	consents ConsentRepository
	activity ActivityLog
	logger   *zap.Logger
}

func NewEvaluator(rules RuleRepository, dncList DNCRepository, consents ConsentRepository, activity ActivityLog, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		rules:    rules,
		dncList:  dncList,
		consents: consents,
		activity: activity,
		logger:   logger,
	}
}

// Evaluate checks the proposed call against every enabled rule and
// aggregates violations and warnings. timezone is the destination's IANA
// zone as reported by the dialer; it may be empty. A repository failure
// on any rule fails the whole evaluation closed rather than admitting
// the call with a partial rule set.
func (e *Evaluator) Evaluate(ctx context.Context, acct *account.Account, destination values.PhoneNumber, timezone string, callTime time.Time) (*Result, error) {
	rules, err := e.rules.ListEnabled(ctx, acct.ID)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("loading rule set").WithCause(err)
	}

	result := &Result{
		Compliant:  true,
		Violations: []*compliance.Violation{},
		Warnings:   []compliance.Warning{},
		CheckID:    uuid.New(),
		Timestamp:  time.Now(),
	}

	var lookupErrs []error
	for _, rule := range rules {
		var err error
		switch rule.Type {
		case compliance.RuleDNCCheck:
			err = e.checkDNC(ctx, acct, destination, result)
		case compliance.RuleConsentVerification:
			err = e.checkConsent(ctx, acct, destination, rule, result)
		case compliance.RuleCallingHours:
			e.checkCallingHours(acct, destination, rule, timezone, callTime, result)
		case compliance.RuleFrequencyLimit:
			err = e.checkFrequency(ctx, acct, destination, rule, result)
		case compliance.RuleRecordingDisclosure:
			e.checkRecordingDisclosure(acct, destination, result)
		default:
			e.logger.Warn("skipping rule of unknown type",
				zap.String("account_id", acct.ID.String()),
				zap.String("rule_id", rule.ID.String()),
				zap.String("rule_type", string(rule.Type)),
			)
		}
		if err != nil {
			lookupErrs = append(lookupErrs, fmt.Errorf("%s: %w", rule.Type, err))
		}
	}

	if len(lookupErrs) > 0 {
		return nil, errors.NewStoreUnavailableError(fmt.Sprintf("rule evaluation incomplete: %v", lookupErrs[0])).WithCause(lookupErrs[0])
	}

	result.Compliant = len(result.Violations) == 0
	return result, nil
}

func (e *Evaluator) checkDNC(ctx context.Context, acct *account.Account, destination values.PhoneNumber, result *Result) error {
	entry, err := e.dncList.FindActive(ctx, acct.ID, destination)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	result.Violations = append(result.Violations, compliance.NewViolation(
		acct.ID, destination,
		compliance.ViolationDNC, compliance.SeverityCritical,
		fmt.Sprintf("destination is on the do-not-call list (%s, source %s)", entry.Reason, entry.Source),
	))
	return nil
}

func (e *Evaluator) checkConsent(ctx context.Context, acct *account.Account, destination values.PhoneNumber, rule *compliance.Rule, result *Result) error {
	record, err := e.consents.FindActive(ctx, acct.ID, destination)
	if err != nil {
		return err
	}
	if record == nil || record.IsExpired() {
		result.Violations = append(result.Violations, compliance.NewViolation(
			acct.ID, destination,
			compliance.ViolationConsent, compliance.SeverityHigh,
			"no active consent on record for destination",
		))
		return nil
	}
	if record.ExpiresWithin(rule.ExpiryWarningWindow()) {
		result.Warnings = append(result.Warnings, compliance.Warning{
			Type:        "consent_expiring",
			Destination: destination,
			Message:     fmt.Sprintf("consent expires at %s", record.ExpiresAt.Format(time.RFC3339)),
		})
	}
	return nil
}

func (e *Evaluator) checkCallingHours(acct *account.Account, destination values.PhoneNumber, rule *compliance.Rule, timezone string, callTime time.Time, result *Result) {
	start, end := rule.CallingHours()
	hour := callTime.In(e.location(acct, rule, timezone)).Hour()
	if hour >= start && hour < end {
		return
	}
	result.Violations = append(result.Violations, compliance.NewViolation(
		acct.ID, destination,
		compliance.ViolationCallingHours, compliance.SeverityHigh,
		fmt.Sprintf("local hour %d outside permitted window %02d:00-%02d:00", hour, start, end),
	))
}

func (e *Evaluator) checkFrequency(ctx context.Context, acct *account.Account, destination values.PhoneNumber, rule *compliance.Rule, result *Result) error {
	maxCalls, period := rule.FrequencyLimit()
	count, err := e.activity.Count(ctx, acct.ID, destination, period)
	if err != nil {
		return err
	}
	if count < maxCalls {
		return nil
	}
	result.Violations = append(result.Violations, compliance.NewViolation(
		acct.ID, destination,
		compliance.ViolationFrequency, compliance.SeverityMedium,
		fmt.Sprintf("%d calls to destination within %s (limit %d)", count, period, maxCalls),
	))
	return nil
}

func (e *Evaluator) checkRecordingDisclosure(acct *account.Account, destination values.PhoneNumber, result *Result) {
	if acct.HasFeature(FeatureRecordingDisclosure) {
		return
	}
	result.Violations = append(result.Violations, compliance.NewViolation(
		acct.ID, destination,
		compliance.ViolationRecordingDisclosure, compliance.SeverityMedium,
		"recording disclosure is required but not enabled for the account",
	))
}

// location resolves the evaluation timezone: the rule override wins,
// then the caller-supplied destination zone, then the account setting,
// then UTC.
func (e *Evaluator) location(acct *account.Account, rule *compliance.Rule, timezone string) *time.Location {
	for _, name := range []string{rule.Params.Timezone, timezone, acct.Settings.Timezone} {
		if name == "" {
			continue
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			e.logger.Warn("invalid timezone, falling back",
				zap.String("account_id", acct.ID.String()),
				zap.String("timezone", name),
			)
			continue
		}
		return loc
	}
	return time.UTC
}
