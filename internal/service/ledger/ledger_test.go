package ledger_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dialerops/callgate-backend/internal/domain/account"
	"github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/events"
	"github.com/dialerops/callgate-backend/internal/domain/values"
	"github.com/dialerops/callgate-backend/internal/service/ledger"
	"github.com/dialerops/callgate-backend/internal/testutil"
)

var testDest = values.MustNewPhoneNumber("+15551234567")

func newTestLedger(t *testing.T, acct *account.Account) (*ledger.Ledger, *testutil.AccountStore, *testutil.EventRecorder) {
	store := testutil.NewAccountStore()
	store.Put(acct)
	recorder := testutil.NewEventRecorder()
	l := ledger.New(store, recorder, zaptest.NewLogger(t), ledger.Config{
		ReservationGrace: time.Minute,
		SweepInterval:    time.Second,
	})
	return l, store, recorder
}

func mustAccount(t *testing.T, quota int64) *account.Account {
	a, err := account.NewAccount("Acme Outreach", "ops@example.com", quota)
	require.NoError(t, err)
	return a
}

func TestLedger_ReserveCommitRelease(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 100)
	l, store, _ := newTestLedger(t, acct)

	res, remaining, err := l.Reserve(ctx, acct.ID, testDest, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(95), remaining)
	assert.Equal(t, int64(5), l.OpenMinutes(acct.ID))

	// commit with a shorter actual duration
	require.NoError(t, l.Commit(ctx, res.ID, 3))
	assert.Equal(t, int64(0), l.OpenMinutes(acct.ID))

	updated, err := store.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.MinutesUsed)

	// committing again reports the reservation gone
	err = l.Commit(ctx, res.ID, 3)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestLedger_QuotaDenied(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 10)
	acct.MinutesUsed = 8
	l, _, _ := newTestLedger(t, acct)

	// 2 minutes remain, so a longer call may still start; the possible
	// overrun is absorbed the same way an in-flight overage is
	_, remaining, err := l.Reserve(ctx, acct.ID, testDest, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	// nothing remains now
	_, _, err = l.Reserve(ctx, acct.ID, testDest, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "QUOTA_EXCEEDED"))
}

func TestLedger_UnlimitedNeverDenies(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 0)
	l, _, _ := newTestLedger(t, acct)

	for i := 0; i < 50; i++ {
		_, remaining, err := l.Reserve(ctx, acct.ID, testDest, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), remaining)
	}
}

// Concurrency safety: with quota Q = N-1 and N workers each requesting one
// minute, exactly N-1 reservations succeed regardless of interleaving.
func TestLedger_ConcurrentReserveExactAdmission(t *testing.T) {
	ctx := context.Background()
	const n = 32
	acct := mustAccount(t, n-1)
	l, _, _ := newTestLedger(t, acct)

	var admitted, denied atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := l.Reserve(ctx, acct.ID, testDest, 1)
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.IsCode(err, "QUOTA_EXCEEDED"):
				denied.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n-1), admitted.Load())
	assert.Equal(t, int64(1), denied.Load())
}

// Scenario from the admission contract: quota 60, used 58, two workers
// request 3 minutes concurrently; exactly one wins.
func TestLedger_ConcurrentLastSlot(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 60)
	acct.MinutesUsed = 58
	l, _, _ := newTestLedger(t, acct)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _, err := l.Reserve(ctx, acct.ID, testDest, 3)
			results <- err
		}()
	}

	var admitted, denied int
	for i := 0; i < 2; i++ {
		if err := <-results; err == nil {
			admitted++
		} else {
			require.True(t, errors.IsCode(err, "QUOTA_EXCEEDED"), "got %v", err)
			denied++
		}
	}

	// the winner holds 58+3=61 against 60, so the loser must see
	// nothing remaining; never both
	assert.Equal(t, 1, admitted)
	assert.Equal(t, 1, denied)

	_, _, err := l.Reserve(ctx, acct.ID, testDest, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "QUOTA_EXCEEDED"))
}

func TestLedger_ReleaseIdempotent(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 10)
	l, store, _ := newTestLedger(t, acct)

	res, _, err := l.Reserve(ctx, acct.ID, testDest, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), l.OpenMinutes(acct.ID))

	require.NoError(t, l.Release(ctx, res.ID))
	assert.Equal(t, int64(0), l.OpenMinutes(acct.ID))

	// second release is a no-op, no double credit
	require.NoError(t, l.Release(ctx, res.ID))
	assert.Equal(t, int64(0), l.OpenMinutes(acct.ID))

	updated, err := store.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.MinutesUsed)
}

func TestLedger_CommitOverageVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 10)
	l, _, _ := newTestLedger(t, acct)

	res, _, err := l.Reserve(ctx, acct.ID, testDest, 2)
	require.NoError(t, err)

	// in-flight call ran long; the account goes over quota for this call
	require.NoError(t, l.Commit(ctx, res.ID, 15))

	// the overage denies the very next reservation
	_, _, err = l.Reserve(ctx, acct.ID, testDest, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "QUOTA_EXCEEDED"))
}

func TestLedger_ThresholdEvents(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 100)
	l, _, recorder := newTestLedger(t, acct)

	res, _, err := l.Reserve(ctx, acct.ID, testDest, 50)
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, res.ID, 50))
	assert.Empty(t, recorder.OfType(events.TypeUsageThresholdCrossed))

	// crossing 80%
	res, _, err = l.Reserve(ctx, acct.ID, testDest, 35)
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, res.ID, 35))

	crossed := recorder.OfType(events.TypeUsageThresholdCrossed)
	require.Len(t, crossed, 1)
	assert.Equal(t, acct.ID, crossed[0].AccountID)
	assert.InDelta(t, 85.0, crossed[0].Payload["percentage"].(float64), 0.001)

	// crossing 100%
	res, _, err = l.Reserve(ctx, acct.ID, testDest, 15)
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, res.ID, 20))

	crossed = recorder.OfType(events.TypeUsageThresholdCrossed)
	require.Len(t, crossed, 2)
}

func TestLedger_FailClosedOnStoreError(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 100)
	l, store, _ := newTestLedger(t, acct)

	store.FailReads = true
	_, _, err := l.Reserve(ctx, acct.ID, testDest, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "STORE_UNAVAILABLE"))
	assert.True(t, errors.IsRetryable(err))
}

func TestLedger_SuspendedAccountDenied(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 100)
	acct.Status = account.StatusSuspended
	l, _, _ := newTestLedger(t, acct)

	_, _, err := l.Reserve(ctx, acct.ID, testDest, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "ACCOUNT_SUSPENDED"))
}

func TestLedger_SweepReclaimsAbandoned(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 10)
	l, _, _ := newTestLedger(t, acct)

	_, _, err := l.Reserve(ctx, acct.ID, testDest, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), l.OpenMinutes(acct.ID))

	// before the grace window nothing is reclaimed
	assert.Zero(t, l.SweepExpired(ctx, time.Now()))
	assert.Equal(t, int64(8), l.OpenMinutes(acct.ID))

	// past the grace window the abandoned hold is released
	assert.Equal(t, 1, l.SweepExpired(ctx, time.Now().Add(2*time.Minute)))
	assert.Equal(t, int64(0), l.OpenMinutes(acct.ID))

	// quota is usable again
	_, _, err = l.Reserve(ctx, acct.ID, testDest, 8)
	require.NoError(t, err)
}

// The sweep must not hold the global index lock while inspecting account
// states, or it deadlocks against Reserve/Release which lock in the
// opposite order.
func TestLedger_SweepConcurrentWithTraffic(t *testing.T) {
	ctx := context.Background()
	acct := mustAccount(t, 0) // unlimited, so Reserve never denies
	l, _, _ := newTestLedger(t, acct)

	// keep a pile of open reservations so the sweep always has work
	for i := 0; i < 64; i++ {
		_, _, err := l.Reserve(ctx, acct.ID, testDest, 1)
		require.NoError(t, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res, _, err := l.Reserve(ctx, acct.ID, testDest, 1)
				if err != nil {
					t.Errorf("reserve: %v", err)
					return
				}
				if err := l.Release(ctx, res.ID); err != nil {
					t.Errorf("release: %v", err)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				l.SweepExpired(ctx, time.Now())
			}
		}
	}()

	time.Sleep(200 * time.Millisecond)
	close(stop)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ledger wedged: sweep deadlocked against reserve/release")
	}
}
