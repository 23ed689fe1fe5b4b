package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func shortCheckout(t *testing.T, created time.Time, ttl time.Duration) *Checkout {
	co := testCheckout(t)
	co.CreatedAt = created
	co.ExpiresAt = created.Add(ttl)
	return co
}

func TestTrackerCountdownAndExpiry(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: created}
	co := shortCheckout(t, created, 5*time.Second)
	source := &mockSource{checkout: co.Clone()}
	tracker := NewTracker(co, source, &mockPayer{}, WithTrackerClock(clock.Now))
	ctx := context.Background()

	s := tracker.Tick(ctx)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, "00:05", s.Countdown)

	clock.Set(created.Add(4900 * time.Millisecond))
	s = tracker.Tick(ctx)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, "00:01", s.Countdown)

	clock.Set(created.Add(5 * time.Second))
	s = tracker.Tick(ctx)
	assert.Equal(t, StatusExpired, s.Status)
	assert.Equal(t, "Expired", s.Countdown)
	assert.Equal(t, 0, source.callCount(), "no refetch before the delay")

	clock.Set(created.Add(6 * time.Second))
	tracker.Tick(ctx)
	assert.Equal(t, 0, source.callCount())

	clock.Set(created.Add(6500 * time.Millisecond))
	s = tracker.Tick(ctx)
	assert.Equal(t, 1, source.callCount(), "one refetch once the delay has passed")
	assert.Equal(t, StatusExpired, s.Status, "authoritative pending does not undo a local expiry")

	clock.Set(created.Add(30 * time.Second))
	tracker.Tick(ctx)
	assert.Equal(t, 1, source.callCount(), "refetch happens only once")
}

func TestTrackerRefetchFindsLatePayment(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: created.Add(5 * time.Second)}
	co := shortCheckout(t, created, 5*time.Second)
	source := &mockSource{checkout: co.Clone()}
	source.set(func(c *Checkout) { c.Status = StatusNotified })

	tracker := NewTracker(co, source, nil, WithTrackerClock(clock.Now))
	ctx := context.Background()

	assert.Equal(t, StatusExpired, tracker.Tick(ctx).Status)

	clock.Set(created.Add(7 * time.Second))
	s := tracker.Tick(ctx)
	assert.Equal(t, StatusNotified, s.Status, "the authoritative record wins over local expiry")
	assert.Equal(t, "", s.Countdown)
}

func TestTrackerPayOverlay(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: created.Add(time.Minute)}
	co := shortCheckout(t, created, 15*time.Minute)
	source := &mockSource{checkout: co.Clone()}
	payer := &mockPayer{txID: "TXPAID"}
	tracker := NewTracker(co, source, payer, WithTrackerClock(clock.Now))
	ctx := context.Background()

	txID, err := tracker.Pay(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TXPAID", txID)
	assert.Equal(t, 1, source.callCount(), "the record is refreshed after paying")

	s := tracker.Snapshot()
	assert.Equal(t, StatusPaid, s.Status, "local overlay shows paid while the record lags")
	assert.Equal(t, StatusPending, s.Checkout.Status)
	assert.Equal(t, "TXPAID", s.TxID)
	assert.Nil(t, s.LastError)

	// The overlay is not expired by the clock
	clock.Set(created.Add(20 * time.Minute))
	assert.Equal(t, StatusPaid, tracker.Tick(ctx).Status)

	source.set(func(c *Checkout) { c.Status = StatusNotified })
	require.NoError(t, tracker.Reconcile(ctx))
	assert.Equal(t, StatusNotified, tracker.Snapshot().Status)

	_, err = tracker.Pay(ctx)
	assert.True(t, errors.Is(err, ErrNotPayable))
	assert.Equal(t, 1, payer.calls)
}

func TestTrackerPayFailureLeavesStatus(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: created.Add(time.Minute)}
	co := shortCheckout(t, created, 15*time.Minute)

	for _, payErr := range []error{ErrSigningRejected, ErrConfirmationTimeout, ErrSubmission} {
		t.Run(ErrorCode(payErr), func(t *testing.T) {
			payer := &mockPayer{err: payErr}
			tracker := NewTracker(co, &mockSource{checkout: co.Clone()}, payer, WithTrackerClock(clock.Now))

			_, err := tracker.Pay(context.Background())
			require.Error(t, err)

			s := tracker.Snapshot()
			assert.Equal(t, StatusPending, s.Status)
			assert.Equal(t, "", s.TxID)
			assert.True(t, errors.Is(s.LastError, payErr))
		})
	}
}

func TestTrackerPaymentConfirmedAfterDeadline(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: created.Add(14 * time.Minute)}
	co := shortCheckout(t, created, 15*time.Minute)
	source := &mockSource{checkout: co.Clone()}

	started := make(chan struct{})
	release := make(chan struct{})
	payer := &mockPayer{payFunc: func(ctx context.Context, c *Checkout) (string, error) {
		close(started)
		<-release
		return "TX-LATE", nil
	}}
	tracker := NewTracker(co, source, payer, WithTrackerClock(clock.Now))
	ctx := context.Background()

	type result struct {
		txID string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		txID, err := tracker.Pay(ctx)
		done <- result{txID, err}
	}()

	<-started
	clock.Set(created.Add(16 * time.Minute))
	s := tracker.Tick(ctx)
	assert.Equal(t, StatusPending, s.Status, "no local expiry while an attempt is in flight")

	close(release)
	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "TX-LATE", r.txID)

	s = tracker.Snapshot()
	assert.Equal(t, StatusPaid, s.Status)
	assert.Equal(t, "TX-LATE", s.TxID)
	assert.Equal(t, "", s.Countdown)

	// The refetch after the deadline still finds the record pending
	clock.Set(created.Add(20 * time.Minute))
	s = tracker.Tick(ctx)
	assert.Equal(t, StatusPaid, s.Status)
	assert.Equal(t, 2, source.callCount())
}

func TestTrackerFailedPaymentAfterDeadlineExpires(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: created.Add(14 * time.Minute)}
	co := shortCheckout(t, created, 15*time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	payer := &mockPayer{payFunc: func(ctx context.Context, c *Checkout) (string, error) {
		close(started)
		<-release
		return "", ErrSigningRejected
	}}
	tracker := NewTracker(co, nil, payer, WithTrackerClock(clock.Now))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := tracker.Pay(ctx)
		done <- err
	}()

	<-started
	clock.Set(created.Add(16 * time.Minute))
	assert.Equal(t, StatusPending, tracker.Tick(ctx).Status)

	close(release)
	assert.True(t, errors.Is(<-done, ErrSigningRejected))

	s := tracker.Tick(ctx)
	assert.Equal(t, StatusExpired, s.Status)
	assert.Equal(t, "Expired", s.Countdown)
	assert.True(t, errors.Is(s.LastError, ErrSigningRejected))
}

func TestTrackerPayExpiredCheckout(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: created.Add(time.Hour)}
	co := shortCheckout(t, created, 15*time.Minute)
	payer := &mockPayer{txID: "TX"}
	tracker := NewTracker(co, nil, payer, WithTrackerClock(clock.Now))

	_, err := tracker.Pay(context.Background())
	assert.True(t, errors.Is(err, ErrNotPayable))
	assert.Equal(t, 0, payer.calls)
}

func TestTrackerReconcileIsMonotonic(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	co := shortCheckout(t, created, 15*time.Minute)
	co.Status = StatusPaid
	source := &mockSource{checkout: co.Clone()}
	source.set(func(c *Checkout) { c.Status = StatusPending })

	tracker := NewTracker(co, source, nil, WithTrackerClock(func() time.Time { return created }))
	require.NoError(t, tracker.Reconcile(context.Background()))
	assert.Equal(t, StatusPaid, tracker.Snapshot().Status)

	source.set(func(c *Checkout) { c.Status = StatusFailed })
	require.NoError(t, tracker.Reconcile(context.Background()))
	assert.Equal(t, StatusFailed, tracker.Snapshot().Status)
}

func TestTrackerReconcileSourceError(t *testing.T) {
	co := testCheckout(t)
	source := &mockSource{checkout: co.Clone(), err: errors.New("registry down")}
	tracker := NewTracker(co, source, nil)

	assert.Error(t, tracker.Reconcile(context.Background()))
	assert.Equal(t, StatusPending, tracker.Snapshot().Checkout.Status)
}

func TestLoadTracker(t *testing.T) {
	co := testCheckout(t)
	source := &mockSource{checkout: co}

	tracker, err := LoadTracker(context.Background(), source, co.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, co.ID, tracker.Snapshot().Checkout.ID)

	source.err = errors.New("not found")
	_, err = LoadTracker(context.Background(), source, "chk_missing", nil)
	assert.Error(t, err)
}

func TestTrackerRunEmitsUntilCancelled(t *testing.T) {
	co := testCheckout(t)
	co.CreatedAt = time.Now()
	co.ExpiresAt = co.CreatedAt.Add(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	snapshots := make(chan Snapshot, 16)
	tracker := NewTracker(co, nil, nil,
		WithTickInterval(5*time.Millisecond),
		WithTickHandler(func(s Snapshot) {
			select {
			case snapshots <- s:
			default:
			}
		}))

	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()

	first := <-snapshots
	assert.Equal(t, StatusPending, first.Status)
	assert.NotEmpty(t, first.Countdown)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
