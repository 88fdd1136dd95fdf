package compliance_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialerops/callgate-backend/internal/domain/compliance"
	"github.com/dialerops/callgate-backend/internal/domain/values"
)

func TestNewRule(t *testing.T) {
	accountID := uuid.New()

	tests := []struct {
		name     string
		ruleName string
		ruleType compliance.RuleType
		wantErr  bool
		validate func(t *testing.T, r *compliance.Rule)
	}{
		{
			name:     "dnc rule with defaults",
			ruleName: "Do Not Call Registry",
			ruleType: compliance.RuleDNCCheck,
			validate: func(t *testing.T, r *compliance.Rule) {
				assert.NotEqual(t, uuid.Nil, r.ID)
				assert.True(t, r.Enabled)
				assert.Equal(t, 1, r.Priority)
			},
		},
		{
			name:     "calling hours rule",
			ruleName: "Calling Hours",
			ruleType: compliance.RuleCallingHours,
			validate: func(t *testing.T, r *compliance.Rule) {
				start, end := r.CallingHours()
				assert.Equal(t, 8, start)
				assert.Equal(t, 21, end)
			},
		},
		{
			name:     "frequency rule",
			ruleName: "Frequency Cap",
			ruleType: compliance.RuleFrequencyLimit,
			validate: func(t *testing.T, r *compliance.Rule) {
				maxCalls, period := r.FrequencyLimit()
				assert.Equal(t, 3, maxCalls)
				assert.Equal(t, 24*time.Hour, period)
			},
		},
		{
			name:     "unknown type rejected",
			ruleName: "Bogus",
			ruleType: compliance.RuleType("bogus"),
			wantErr:  true,
		},
		{
			name:     "empty name rejected",
			ruleName: "",
			ruleType: compliance.RuleDNCCheck,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := compliance.NewRule(accountID, tt.ruleName, tt.ruleType)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, r.Validate())
			tt.validate(t, r)
		})
	}
}

func TestRule_ParamOverrides(t *testing.T) {
	r, err := compliance.NewRule(uuid.New(), "Strict Hours", compliance.RuleCallingHours)
	require.NoError(t, err)
	r.Params.StartHour = 9
	r.Params.EndHour = 17

	start, end := r.CallingHours()
	assert.Equal(t, 9, start)
	assert.Equal(t, 17, end)

	f, err := compliance.NewRule(uuid.New(), "Weekly Cap", compliance.RuleFrequencyLimit)
	require.NoError(t, err)
	f.Params.MaxCalls = 5
	f.Params.PeriodHours = 168

	maxCalls, period := f.FrequencyLimit()
	assert.Equal(t, 5, maxCalls)
	assert.Equal(t, 168*time.Hour, period)
}

// A rule with only one bound configured falls back per field; it must never
// yield an empty (start, 0) window that denies every call.
func TestRule_CallingHoursPartialParams(t *testing.T) {
	r, err := compliance.NewRule(uuid.New(), "Late Start", compliance.RuleCallingHours)
	require.NoError(t, err)

	r.Params.StartHour = 10
	start, end := r.CallingHours()
	assert.Equal(t, 10, start)
	assert.Equal(t, compliance.DefaultCallingHoursEnd, end)

	r.Params.StartHour = 0
	r.Params.EndHour = 18
	start, end = r.CallingHours()
	assert.Equal(t, compliance.DefaultCallingHoursStart, start)
	assert.Equal(t, 18, end)
}

func TestRule_Validate(t *testing.T) {
	r, err := compliance.NewRule(uuid.New(), "Hours", compliance.RuleCallingHours)
	require.NoError(t, err)

	r.Params.StartHour = 22
	r.Params.EndHour = 6
	assert.Error(t, r.Validate())

	r.Params.StartHour = 8
	r.Params.EndHour = 21
	assert.NoError(t, r.Validate())
}

func TestNewConsentRecord(t *testing.T) {
	accountID := uuid.New()

	c, err := compliance.NewConsentRecord(accountID, "+15551234567", compliance.ConsentExpress, compliance.MethodWebForm)
	require.NoError(t, err)
	assert.True(t, c.IsActive())
	assert.False(t, c.IsRevoked())
	assert.False(t, c.IsExpired())
	assert.Nil(t, c.ExpiresAt)

	_, err = compliance.NewConsentRecord(uuid.Nil, "+15551234567", compliance.ConsentExpress, compliance.MethodWebForm)
	require.Error(t, err)

	_, err = compliance.NewConsentRecord(accountID, "+15551234567", compliance.ConsentType("psychic"), compliance.MethodVerbal)
	require.Error(t, err)
}

func TestConsentRecord_Lifecycle(t *testing.T) {
	c, err := compliance.NewConsentRecord(uuid.New(), "+15551234567", compliance.ConsentExpress, compliance.MethodWritten)
	require.NoError(t, err)

	// expiring soon triggers the warning window but stays active
	soon := time.Now().Add(10 * 24 * time.Hour)
	c.ExpiresAt = &soon
	assert.True(t, c.IsActive())
	assert.True(t, c.ExpiresWithin(30*24*time.Hour))
	assert.False(t, c.ExpiresWithin(24*time.Hour))

	// expired record is equivalent to absence of consent
	past := time.Now().Add(-time.Minute)
	c.ExpiresAt = &past
	assert.False(t, c.IsActive())

	require.Error(t, c.Extend(time.Hour))

	c2, err := compliance.NewConsentRecord(uuid.New(), "+15551234567", compliance.ConsentImplied, compliance.MethodSMS)
	require.NoError(t, err)
	c2.Revoke()
	assert.True(t, c2.IsRevoked())
	assert.False(t, c2.IsActive())
}

func TestViolation(t *testing.T) {
	accountID := uuid.New()
	dest := values.MustNewPhoneNumber("+15551234567")

	v := compliance.NewViolation(accountID, dest, compliance.ViolationDNC, compliance.SeverityCritical, "destination on suppression list")
	assert.False(t, v.Resolved)
	assert.Nil(t, v.CallID)
	assert.Equal(t, "critical", v.Severity.String())

	callID := uuid.New()
	v.AttachCall(callID)
	require.NotNil(t, v.CallID)
	assert.Equal(t, callID, *v.CallID)

	resolver := uuid.New()
	v.Resolve(resolver)
	assert.True(t, v.Resolved)
	require.NotNil(t, v.ResolvedBy)
	assert.Equal(t, resolver, *v.ResolvedBy)
	assert.NotNil(t, v.ResolvedAt)
}
