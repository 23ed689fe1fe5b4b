// Package metrics records checkout events and latencies.
package metrics

import "time"

// Event and operation names used across the checkout packages.
const (
	EventWalletConnected     = "wallet_connected"
	EventWalletDisconnected  = "wallet_disconnected"
	EventNetworkSwitched     = "network_switched"
	EventPaySubmitted        = "pay_submitted"
	EventPayConfirmed        = "pay_confirmed"
	EventPayFailed           = "pay_failed"
	EventPayDuplicate        = "pay_duplicate"
	EventCheckoutExpired     = "checkout_expired"
	EventCheckoutReconciled  = "checkout_reconciled"
	OperationPay             = "pay"
	OperationConfirmation    = "confirmation"
	OperationCheckoutRefresh = "checkout_refresh"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
