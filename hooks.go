package checkout

import (
	"context"
	"time"
)

// ============================================================================
// Pay Hook Context Types
// ============================================================================

// PayContext contains information passed to pay hooks
type PayContext struct {
	Ctx       context.Context
	Checkout  *Checkout
	Network   NetworkID
	Payer     string
	AttemptID string
	Timestamp time.Time
}

// PayResultContext contains a successful pay result and context
type PayResultContext struct {
	PayContext
	TxID     string
	Duration time.Duration
}

// PayFailureContext contains a pay failure and context
type PayFailureContext struct {
	PayContext
	Error    error
	Duration time.Duration
}

// ============================================================================
// Pay Hook Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook
// If Abort is true, the payment is not attempted and Reason is returned
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// BeforePayHook is called after the attempt is admitted and before anything is built
type BeforePayHook func(PayContext) (*BeforeHookResult, error)

// AfterPayHook is called after confirmation
// Any error returned will be logged but will not affect the result
type AfterPayHook func(PayResultContext) error

// OnPayFailureHook is called when a payment attempt fails
// Any error returned will be logged but will not affect the result
type OnPayFailureHook func(PayFailureContext) error
