package account

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a tenant on the platform. MinutesUsed is mutated only through
// the usage ledger's Reserve/Commit/Release contract.
type Account struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Status Status    `json:"status"`

	// Billing
	MonthlyMinuteQuota int64           `json:"monthly_minute_quota"` // 0 means unlimited
	MinutesUsed        int64           `json:"minutes_used"`
	PerMinuteRate      decimal.Decimal `json:"per_minute_rate"`

	// Dialer limits
	MaxConcurrentCalls int `json:"max_concurrent_calls"`

	// Feature flags (e.g. "recording_disclosure", "predictive_dialing")
	EnabledFeatures []string `json:"enabled_features"`

	Settings Settings `json:"settings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusSuspended
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Settings struct {
	Timezone          string `json:"timezone"`
	CallingHoursStart int    `json:"calling_hours_start"`
	CallingHoursEnd   int    `json:"calling_hours_end"`
}

func NewAccount(name, email string, quota int64) (*Account, error) {
	if name == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}
	if quota < 0 {
		return nil, fmt.Errorf("quota cannot be negative")
	}

	now := time.Now().UTC()
	return &Account{
		ID:                 uuid.New(),
		Name:               name,
		Email:              email,
		Status:             StatusActive,
		MonthlyMinuteQuota: quota,
		MinutesUsed:        0,
		PerMinuteRate:      decimal.NewFromFloat(0.012),
		MaxConcurrentCalls: 10,
		EnabledFeatures:    []string{},
		Settings: Settings{
			Timezone:          "UTC",
			CallingHoursStart: 8,
			CallingHoursEnd:   21,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasFeature reports whether a feature flag is enabled for the account.
func (a *Account) HasFeature(feature string) bool {
	for _, f := range a.EnabledFeatures {
		if f == feature {
			return true
		}
	}
	return false
}

// Unlimited reports whether the account has no minute quota.
func (a *Account) Unlimited() bool {
	return a.MonthlyMinuteQuota == 0
}

// QuotaRemaining returns remaining minutes. Unlimited accounts return -1.
func (a *Account) QuotaRemaining() int64 {
	if a.Unlimited() {
		return -1
	}
	remaining := a.MonthlyMinuteQuota - a.MinutesUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UsagePercent returns used/quota as a percentage. Unlimited accounts return 0.
func (a *Account) UsagePercent() float64 {
	if a.Unlimited() {
		return 0
	}
	return float64(a.MinutesUsed) / float64(a.MonthlyMinuteQuota) * 100
}

// ApplyUsage folds committed minutes into MinutesUsed. Usage is monotonic;
// negative deltas are rejected (corrections go through a separate admin path).
func (a *Account) ApplyUsage(minutes int64) error {
	if minutes < 0 {
		return fmt.Errorf("usage delta cannot be negative: %d", minutes)
	}
	a.MinutesUsed += minutes
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// UsageCost returns the billed cost of the given minutes at the account rate.
func (a *Account) UsageCost(minutes int64) decimal.Decimal {
	return a.PerMinuteRate.Mul(decimal.NewFromInt(minutes))
}

func (a *Account) IsSuspended() bool {
	return a.Status == StatusSuspended || a.Status == StatusClosed
}

func (a *Account) CanMakeCalls() bool {
	return a.Status == StatusActive
}
