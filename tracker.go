package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/algocheckout/checkout/logger"
	"github.com/algocheckout/checkout/metrics"
)

// DefaultRefetchDelay is how long after the countdown reaches zero the
// authoritative record is fetched again.
const DefaultRefetchDelay = 1500 * time.Millisecond

// DefaultTickInterval drives Run.
const DefaultTickInterval = time.Second

// Snapshot is the view state of a tracked checkout at one instant
type Snapshot struct {
	Checkout  Checkout
	Status    Status
	Remaining time.Duration
	// Countdown is set while the checkout is pending or expired.
	Countdown string
	TxID      string
	LastError error
}

// Tracker follows one checkout for a view: it derives the countdown, detects
// expiry, overlays a locally confirmed payment on top of the last fetched
// record and reconciles with the authoritative source.
type Tracker struct {
	mu sync.Mutex

	checkout      Checkout
	localExpiry   bool
	paying        int
	txID          string
	lastErr       error
	zeroAt        time.Time
	refetched     bool
	refetchDelay  time.Duration
	tickInterval  time.Duration
	onTick        func(Snapshot)
	source        CheckoutSource
	payer         Payer
	logger        logger.Logger
	metrics       metrics.Recorder
	now           func() time.Time
	networkLabels map[string]string
}

// TrackerOption configures a tracker
type TrackerOption func(*Tracker)

// WithRefetchDelay overrides DefaultRefetchDelay
func WithRefetchDelay(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.refetchDelay = d
	}
}

// WithTickInterval overrides DefaultTickInterval
func WithTickInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.tickInterval = d
		}
	}
}

// WithTickHandler receives every snapshot produced by Run
func WithTickHandler(fn func(Snapshot)) TrackerOption {
	return func(t *Tracker) {
		t.onTick = fn
	}
}

func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

func WithTrackerLogger(l logger.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger.OrNoop(l)
	}
}

func WithTrackerMetrics(r metrics.Recorder, network NetworkID) TrackerOption {
	return func(t *Tracker) {
		t.metrics = metrics.OrNoop(r)
		t.networkLabels = map[string]string{"network": string(network)}
	}
}

// NewTracker tracks co. source may be nil, in which case nothing is re-fetched.
func NewTracker(co *Checkout, source CheckoutSource, payer Payer, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		checkout:     *co.Clone(),
		source:       source,
		payer:        payer,
		refetchDelay: DefaultRefetchDelay,
		tickInterval: DefaultTickInterval,
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LoadTracker fetches checkout id from source and tracks it.
func LoadTracker(ctx context.Context, source CheckoutSource, id string, payer Payer, opts ...TrackerOption) (*Tracker, error) {
	co, err := source.GetCheckout(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout %s: %w", id, err)
	}
	return NewTracker(co, source, payer, opts...), nil
}

// Snapshot returns the current view state without advancing time-based logic.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(t.now())
}

// Tick recomputes the countdown, applies local expiry and, once the refetch
// delay after expiry has passed, re-fetches the record a single time.
func (t *Tracker) Tick(ctx context.Context) Snapshot {
	now := t.now()

	t.mu.Lock()
	if t.checkout.Status == StatusPending && t.checkout.Expired(now) {
		if t.zeroAt.IsZero() {
			t.zeroAt = now
		}
		// An attempt in flight may still confirm; expiry waits for its outcome.
		if t.txID == "" && t.paying == 0 {
			t.checkout.Status = StatusExpired
			t.localExpiry = true
			t.logger.Info("checkout expired", map[string]any{"checkoutId": t.checkout.ID})
			t.metrics.IncCounter(metrics.EventCheckoutExpired, t.networkLabels)
		}
	}
	id := t.checkout.ID
	refetch := t.source != nil && !t.refetched && !t.zeroAt.IsZero() && now.Sub(t.zeroAt) >= t.refetchDelay
	if refetch {
		t.refetched = true
	}
	t.mu.Unlock()

	if refetch {
		if err := t.Reconcile(ctx); err != nil {
			t.logger.Warn("checkout refetch after expiry failed", map[string]any{
				"checkoutId": id,
				"error":      err,
			})
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(t.now())
}

// Run ticks until ctx is done. It is the timer scoped to one view.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	t.emit(t.Tick(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.emit(t.Tick(ctx))
		}
	}
}

func (t *Tracker) emit(s Snapshot) {
	if t.onTick != nil {
		t.onTick(s)
	}
}

// Pay pays the tracked checkout. On success the view shows paid until the
// authoritative record says otherwise; on failure the status is unchanged and
// the error is kept for display.
func (t *Tracker) Pay(ctx context.Context) (string, error) {
	if t.payer == nil {
		return "", NewPaymentError(ErrCodeNotConnected, "no payer configured", nil)
	}

	now := t.now()
	t.mu.Lock()
	co := t.checkout.Clone()
	payable := t.txID == "" && co.Payable(now)
	if payable {
		t.paying++
	}
	t.mu.Unlock()

	if !payable {
		return "", NewPaymentError(ErrCodeNotPayable,
			fmt.Sprintf("checkout %s is %s", co.ID, t.Snapshot().Status),
			map[string]interface{}{"checkoutId": co.ID})
	}

	txID, err := t.payer.Pay(ctx, co)

	t.mu.Lock()
	t.paying--
	if err != nil {
		t.lastErr = err
		t.mu.Unlock()
		return "", err
	}
	t.txID = txID
	t.lastErr = nil
	if t.localExpiry {
		t.checkout.Status = StatusPending
		t.localExpiry = false
	}
	t.mu.Unlock()

	if t.source != nil {
		if err := t.Reconcile(ctx); err != nil {
			t.logger.Warn("checkout refresh after payment failed", map[string]any{
				"checkoutId": co.ID,
				"error":      err,
			})
		}
	}
	return txID, nil
}

// Reconcile fetches the authoritative record and merges it. Status never
// moves backwards, except that a locally detected expiry yields to any
// non-pending authoritative status.
func (t *Tracker) Reconcile(ctx context.Context) error {
	if t.source == nil {
		return nil
	}

	t.mu.Lock()
	id := t.checkout.ID
	t.mu.Unlock()

	start := t.now()
	fresh, err := t.source.GetCheckout(ctx, id)
	t.metrics.ObserveLatency(metrics.OperationCheckoutRefresh, t.now().Sub(start), t.networkLabels)
	if err != nil {
		return err
	}
	if fresh.ID != id {
		return fmt.Errorf("source returned checkout %s for %s", fresh.ID, id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.checkout.Status
	accept := fresh.Status == current || CanTransition(current, fresh.Status)
	if t.localExpiry && fresh.Status != StatusPending {
		accept = true
	}
	if !accept {
		t.logger.Warn("ignoring stale checkout status", map[string]any{
			"checkoutId": fresh.ID,
			"current":    current,
			"fetched":    fresh.Status,
		})
		return nil
	}

	keepExpired := t.localExpiry && t.txID == "" && fresh.Status == StatusPending
	t.checkout = *fresh.Clone()
	if keepExpired {
		t.checkout.Status = StatusExpired
	} else {
		t.localExpiry = false
	}
	if fresh.Status != StatusPending {
		t.lastErr = nil
	}
	t.metrics.IncCounter(metrics.EventCheckoutReconciled, t.networkLabels)
	return nil
}

func (t *Tracker) snapshotLocked(now time.Time) Snapshot {
	s := Snapshot{
		Checkout:  *t.checkout.Clone(),
		Status:    t.checkout.Status,
		TxID:      t.txID,
		LastError: t.lastErr,
	}
	if t.txID != "" && s.Status == StatusPending {
		s.Status = StatusPaid
	}
	switch s.Status {
	case StatusPending:
		s.Remaining = t.checkout.Remaining(now)
		s.Countdown = FormatCountdown(s.Remaining)
	case StatusExpired:
		s.Countdown = FormatCountdown(0)
	}
	return s
}
