package checkout

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusNotified, true},
		{StatusPending, StatusExpired, true},
		{StatusPending, StatusFailed, true},
		{StatusPaid, StatusNotified, true},
		{StatusPaid, StatusFailed, true},
		{StatusPaid, StatusPending, false},
		{StatusPaid, StatusExpired, false},
		{StatusNotified, StatusPaid, false},
		{StatusNotified, StatusFailed, false},
		{StatusExpired, StatusPending, false},
		{StatusExpired, StatusPaid, false},
		{StatusFailed, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusPaid.IsTerminal())
	assert.True(t, StatusNotified.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, Status("refunded").Valid())
}

func TestCheckoutTransition(t *testing.T) {
	co := &Checkout{ID: "chk_1", Status: StatusPending}

	require.NoError(t, co.Transition(StatusPaid))
	assert.Equal(t, StatusPaid, co.Status)

	require.NoError(t, co.Transition(StatusPaid), "re-applying the current status is a no-op")

	err := co.Transition(StatusPending)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StatusPaid, co.Status)
}

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "Expired"},
		{-time.Second, "Expired"},
		{time.Millisecond, "00:01"},
		{5 * time.Second, "00:05"},
		{90 * time.Second, "01:30"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{time.Hour, "1:00:00"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2:03:04"},
		{1500 * time.Millisecond, "00:02"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCountdown(tt.in), tt.in.String())
	}
}

func TestCountdownNeverExpiredBeforeDeadline(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	co := &Checkout{ID: "chk_1", Status: StatusPending, CreatedAt: created, ExpiresAt: created.Add(5 * time.Second)}

	for elapsed := time.Duration(0); elapsed < 5*time.Second; elapsed += 100 * time.Millisecond {
		now := created.Add(elapsed)
		assert.NotEqual(t, "Expired", FormatCountdown(co.Remaining(now)), "at %s", elapsed)
		assert.True(t, co.Payable(now))
	}
	assert.Equal(t, "Expired", FormatCountdown(co.Remaining(created.Add(5*time.Second))))
	assert.False(t, co.Payable(created.Add(5*time.Second)))
}
