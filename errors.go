package checkout

import (
	"errors"
	"fmt"
)

// PaymentError represents a checkout payment failure
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Is matches any PaymentError carrying the same code, so callers can test
// against the Err* sentinels with errors.Is.
func (e *PaymentError) Is(target error) bool {
	t, ok := target.(*PaymentError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	ErrCodeEncoding            = "encoding_error"
	ErrCodeBuild               = "build_error"
	ErrCodeConnectionCancelled = "connection_cancelled"
	ErrCodeConnection          = "connection_error"
	ErrCodeNotConnected        = "not_connected"
	ErrCodeSigningRejected     = "signing_rejected"
	ErrCodeSubmission          = "submission_error"
	ErrCodeConfirmationTimeout = "confirmation_timeout"
	ErrCodeAlreadyInProgress   = "already_in_progress"
	ErrCodeUnknownNetwork      = "unknown_network"
	ErrCodeNotPayable          = "checkout_not_payable"
	ErrCodeInvalidTransition   = "invalid_transition"
	ErrCodePayAborted          = "pay_aborted"
)

// Sentinels for errors.Is.
var (
	ErrEncoding            = &PaymentError{Code: ErrCodeEncoding, Message: "argument encoding failed"}
	ErrBuild               = &PaymentError{Code: ErrCodeBuild, Message: "transaction build failed"}
	ErrConnectionCancelled = &PaymentError{Code: ErrCodeConnectionCancelled, Message: "wallet connection cancelled"}
	ErrConnection          = &PaymentError{Code: ErrCodeConnection, Message: "wallet connection failed"}
	ErrNotConnected        = &PaymentError{Code: ErrCodeNotConnected, Message: "no wallet connected"}
	ErrSigningRejected     = &PaymentError{Code: ErrCodeSigningRejected, Message: "signing rejected"}
	ErrSubmission          = &PaymentError{Code: ErrCodeSubmission, Message: "submission failed"}
	ErrConfirmationTimeout = &PaymentError{Code: ErrCodeConfirmationTimeout, Message: "transaction not confirmed in time"}
	ErrAlreadyInProgress   = &PaymentError{Code: ErrCodeAlreadyInProgress, Message: "payment already in progress"}
	ErrUnknownNetwork      = &PaymentError{Code: ErrCodeUnknownNetwork, Message: "unknown network"}
	ErrNotPayable          = &PaymentError{Code: ErrCodeNotPayable, Message: "checkout is not payable"}
	ErrInvalidTransition   = &PaymentError{Code: ErrCodeInvalidTransition, Message: "invalid status transition"}
	ErrPayAborted          = &PaymentError{Code: ErrCodePayAborted, Message: "payment aborted"}
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WrapPaymentError creates a payment error with an underlying cause
func WrapPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the first PaymentError in err's chain, or "".
func ErrorCode(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Retryable reports whether the user may simply try the payment again.
// A confirmation timeout is not retryable: the group may still land.
func Retryable(err error) bool {
	switch ErrorCode(err) {
	case ErrCodeConnection, ErrCodeSigningRejected, ErrCodeSubmission, ErrCodeAlreadyInProgress:
		return true
	default:
		return false
	}
}
