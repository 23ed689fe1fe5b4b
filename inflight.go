package checkout

import (
	"sync"
	"time"
)

// AttemptStatus is the result of admitting a payment attempt.
type AttemptStatus int

const (
	// AttemptAdmitted means the caller owns the attempt and must Complete or Fail it.
	AttemptAdmitted AttemptStatus = iota
	// AttemptSettled means the checkout was already paid by this client.
	AttemptSettled
	// AttemptInFlight means another attempt for the checkout is running.
	AttemptInFlight
)

// DefaultSettledTTL is how long a confirmed payment is remembered.
const DefaultSettledTTL = 10 * time.Minute

// AttemptGuard admits at most one payment attempt per checkout at a time and
// remembers confirmed payments so a repeated Pay does not charge twice.
type AttemptGuard struct {
	mu       sync.Mutex
	settled  map[string]string
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewAttemptGuard creates a guard that remembers settlements for ttl.
func NewAttemptGuard(ttl time.Duration) *AttemptGuard {
	if ttl <= 0 {
		ttl = DefaultSettledTTL
	}
	return &AttemptGuard{
		settled:  make(map[string]string),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

// CheckAndMark atomically checks the guard and marks the checkout in-flight if needed.
// Returns:
// - AttemptSettled + tx id if a confirmed payment is remembered
// - AttemptInFlight + wait channel if another attempt is running
// - AttemptAdmitted + done channel if this attempt should proceed (now marked in-flight)
func (g *AttemptGuard) CheckAndMark(checkoutID string) (AttemptStatus, string, chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if txID, ok := g.settledLocked(checkoutID); ok {
		return AttemptSettled, txID, nil
	}

	if done, exists := g.inFlight[checkoutID]; exists {
		return AttemptInFlight, "", done
	}

	done := make(chan struct{})
	g.inFlight[checkoutID] = done
	return AttemptAdmitted, "", done
}

// Complete records a confirmed payment and releases the attempt.
func (g *AttemptGuard) Complete(checkoutID, txID string, done chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.settled[checkoutID] = txID
	g.expiry[checkoutID] = g.now().Add(g.ttl)
	g.releaseLocked(checkoutID, done)
	g.cleanupExpiredLocked()
}

// Fail releases the attempt without recording a payment, allowing a retry.
func (g *AttemptGuard) Fail(checkoutID string, done chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.releaseLocked(checkoutID, done)
}

// InFlight reports whether an attempt for checkoutID is running.
func (g *AttemptGuard) InFlight(checkoutID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.inFlight[checkoutID]
	return ok
}

// settledTx returns the remembered tx id for checkoutID.
func (g *AttemptGuard) settledTx(checkoutID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.settledLocked(checkoutID)
}

func (g *AttemptGuard) settledLocked(checkoutID string) (string, bool) {
	expiry, ok := g.expiry[checkoutID]
	if !ok {
		return "", false
	}
	if g.now().After(expiry) {
		delete(g.settled, checkoutID)
		delete(g.expiry, checkoutID)
		return "", false
	}
	return g.settled[checkoutID], true
}

// releaseLocked only clears the entry owned by done, so a stale release
// cannot drop a newer attempt.
func (g *AttemptGuard) releaseLocked(checkoutID string, done chan struct{}) {
	if current, ok := g.inFlight[checkoutID]; ok && current == done {
		delete(g.inFlight, checkoutID)
		close(done)
	}
}

func (g *AttemptGuard) cleanupExpiredLocked() {
	now := g.now()
	for id, expiry := range g.expiry {
		if now.After(expiry) {
			delete(g.settled, id)
			delete(g.expiry, id)
		}
	}
}
