package checkout

import (
	"fmt"
	"time"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusNotified, StatusExpired, StatusFailed},
	StatusPaid:    {StatusNotified, StatusFailed},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusNotified, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusNotified || s == StatusExpired || s == StatusFailed
}

// CanTransition reports whether from may move to to. Staying put is not a transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the checkout to status to. Re-applying the current status is a no-op.
func (c *Checkout) Transition(to Status) error {
	if c.Status == to {
		return nil
	}
	if !CanTransition(c.Status, to) {
		return NewPaymentError(ErrCodeInvalidTransition,
			fmt.Sprintf("checkout %s cannot move from %s to %s", c.ID, c.Status, to),
			map[string]interface{}{"from": c.Status, "to": to})
	}
	c.Status = to
	return nil
}

// Remaining returns the time left until expiry, never negative.
func (c *Checkout) Remaining(now time.Time) time.Duration {
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports whether the expiry time has been reached.
func (c *Checkout) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Payable reports whether a payment may be started for the checkout.
func (c *Checkout) Payable(now time.Time) bool {
	return c.Status == StatusPending && !c.Expired(now)
}

// FormatCountdown renders the time left as MM:SS, or H:MM:SS from one hour up.
// Partial seconds round up so the display only reads Expired once time is out.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}
	total := int64((d + time.Second - 1) / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
