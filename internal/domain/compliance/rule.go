package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Rule is a single enabled/disabled compliance check with typed parameters.
// Priority orders rules for presentation only; evaluation is exhaustive and
// never gated on priority.
type Rule struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	Name      string     `json:"name"`
	Type      RuleType   `json:"type"`
	Enabled   bool       `json:"enabled"`
	Priority  int        `json:"priority"`
	Params    RuleParams `json:"params"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RuleType string

const (
	RuleDNCCheck            RuleType = "dnc_check"
	RuleCallingHours        RuleType = "calling_hours"
	RuleFrequencyLimit      RuleType = "frequency_limit"
	RuleConsentVerification RuleType = "consent_verification"
	RuleRecordingDisclosure RuleType = "recording_disclosure"
)

func (t RuleType) Valid() bool {
	switch t {
	case RuleDNCCheck, RuleCallingHours, RuleFrequencyLimit,
		RuleConsentVerification, RuleRecordingDisclosure:
		return true
	}
	return false
}

// RuleParams carries the per-type parameters. Only the fields relevant to
// the rule's type are consulted; zero values fall back to defaults.
type RuleParams struct {
	// calling_hours
	StartHour int    `json:"start_hour,omitempty"`
	EndHour   int    `json:"end_hour,omitempty"`
	Timezone  string `json:"timezone,omitempty"` // overrides the caller-supplied zone when set

	// frequency_limit
	MaxCalls    int `json:"max_calls,omitempty"`
	PeriodHours int `json:"period_hours,omitempty"`

	// consent_verification
	ExpiryWarningDays int `json:"expiry_warning_days,omitempty"`
}

// Defaults applied when a rule's parameters are unset.
const (
	DefaultCallingHoursStart = 8
	DefaultCallingHoursEnd   = 21
	DefaultFrequencyMaxCalls = 3
	DefaultFrequencyPeriod   = 24 * time.Hour
	DefaultExpiryWarningDays = 30
)

// NewRule creates an enabled rule of the given type.
func NewRule(accountID uuid.UUID, name string, ruleType RuleType) (*Rule, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("account ID cannot be nil")
	}
	if name == "" {
		return nil, fmt.Errorf("rule name cannot be empty")
	}
	if !ruleType.Valid() {
		return nil, fmt.Errorf("invalid rule type: %s", ruleType)
	}

	now := time.Now().UTC()
	return &Rule{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      name,
		Type:      ruleType,
		Enabled:   true,
		Priority:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CallingHours returns the configured window, defaulting to 8-21. Each
// bound defaults independently so a half-configured rule still yields a
// callable window instead of (start, 0).
func (r *Rule) CallingHours() (start, end int) {
	start, end = r.Params.StartHour, r.Params.EndHour
	if start <= 0 {
		start = DefaultCallingHoursStart
	}
	if end <= 0 {
		end = DefaultCallingHoursEnd
	}
	return start, end
}

// FrequencyLimit returns the configured window limit, defaulting to 3 per 24h.
func (r *Rule) FrequencyLimit() (maxCalls int, period time.Duration) {
	maxCalls = r.Params.MaxCalls
	if maxCalls <= 0 {
		maxCalls = DefaultFrequencyMaxCalls
	}
	period = time.Duration(r.Params.PeriodHours) * time.Hour
	if period <= 0 {
		period = DefaultFrequencyPeriod
	}
	return maxCalls, period
}

// ExpiryWarningWindow returns how far ahead consent expiry warnings fire.
func (r *Rule) ExpiryWarningWindow() time.Duration {
	days := r.Params.ExpiryWarningDays
	if days <= 0 {
		days = DefaultExpiryWarningDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Validate validates the rule configuration.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid rule type: %s", r.Type)
	}

	if r.Type == RuleCallingHours {
		start, end := r.CallingHours()
		if start < 0 || start > 23 {
			return fmt.Errorf("start hour must be between 0 and 23")
		}
		if end < 1 || end > 24 {
			return fmt.Errorf("end hour must be between 1 and 24")
		}
		if start >= end {
			return fmt.Errorf("start hour must precede end hour")
		}
	}

	if r.Type == RuleFrequencyLimit && r.Params.MaxCalls < 0 {
		return fmt.Errorf("max calls cannot be negative")
	}

	return nil
}
