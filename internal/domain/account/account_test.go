package account_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialerops/callgate-backend/internal/domain/account"
)

func TestNewAccount(t *testing.T) {
	tests := []struct {
		name     string
		acctName string
		quota    int64
		wantErr  bool
		validate func(t *testing.T, a *account.Account)
	}{
		{
			name:     "metered account",
			acctName: "Acme Outreach",
			quota:    5000,
			validate: func(t *testing.T, a *account.Account) {
				assert.Equal(t, account.StatusActive, a.Status)
				assert.Equal(t, int64(5000), a.MonthlyMinuteQuota)
				assert.Equal(t, int64(0), a.MinutesUsed)
				assert.False(t, a.Unlimited())
				assert.Equal(t, int64(5000), a.QuotaRemaining())
				assert.Equal(t, "UTC", a.Settings.Timezone)
				assert.Equal(t, 8, a.Settings.CallingHoursStart)
				assert.Equal(t, 21, a.Settings.CallingHoursEnd)
			},
		},
		{
			name:     "unlimited account",
			acctName: "Enterprise",
			quota:    0,
			validate: func(t *testing.T, a *account.Account) {
				assert.True(t, a.Unlimited())
				assert.Equal(t, int64(-1), a.QuotaRemaining())
				assert.Zero(t, a.UsagePercent())
			},
		},
		{
			name:     "empty name rejected",
			acctName: "",
			quota:    100,
			wantErr:  true,
		},
		{
			name:     "negative quota rejected",
			acctName: "Bad",
			quota:    -1,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := account.NewAccount(tt.acctName, "ops@example.com", tt.quota)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, a)
		})
	}
}

func TestAccount_ApplyUsage(t *testing.T) {
	a, err := account.NewAccount("Acme", "ops@example.com", 100)
	require.NoError(t, err)

	require.NoError(t, a.ApplyUsage(40))
	assert.Equal(t, int64(40), a.MinutesUsed)
	assert.Equal(t, int64(60), a.QuotaRemaining())
	assert.InDelta(t, 40.0, a.UsagePercent(), 0.001)

	// usage is monotonic
	require.Error(t, a.ApplyUsage(-5))
	assert.Equal(t, int64(40), a.MinutesUsed)

	// overage clamps remaining at zero but keeps the real counter
	require.NoError(t, a.ApplyUsage(70))
	assert.Equal(t, int64(110), a.MinutesUsed)
	assert.Equal(t, int64(0), a.QuotaRemaining())
	assert.Greater(t, a.UsagePercent(), 100.0)
}

func TestAccount_Features(t *testing.T) {
	a, err := account.NewAccount("Acme", "ops@example.com", 0)
	require.NoError(t, err)

	assert.False(t, a.HasFeature("recording_disclosure"))
	a.EnabledFeatures = append(a.EnabledFeatures, "recording_disclosure")
	assert.True(t, a.HasFeature("recording_disclosure"))
}

func TestAccount_UsageCost(t *testing.T) {
	a, err := account.NewAccount("Acme", "ops@example.com", 0)
	require.NoError(t, err)
	a.PerMinuteRate = decimal.NewFromFloat(0.02)

	assert.True(t, a.UsageCost(150).Equal(decimal.NewFromFloat(3.0)))
}
