package carrier

import (
	"errors"
	"fmt"
)

// Error represents a failure reported by a shipping carrier.
type Error struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Body       string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for Error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new carrier Error.
func NewError(carrier, code, message string) *Error {
	return &Error{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithBody attaches the raw upstream response body.
func (e *Error) WithBody(body string) *Error {
	e.Body = body
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Sentinel errors for the fulfillment error taxonomy.
var (
	// ErrAuthFailed indicates a fatal carrier credential failure.
	ErrAuthFailed = errors.New("carrier authentication failed")

	// ErrRateLimited indicates throttling after exhausting backoff retries.
	ErrRateLimited = errors.New("carrier rate limit exceeded")

	// ErrTimeout indicates a carrier call exceeded its deadline. Retryable.
	ErrTimeout = errors.New("carrier call timed out")

	// ErrDuplicateShipment indicates the order already has a tracking number.
	ErrDuplicateShipment = errors.New("shipment already created for order")

	// ErrPickupAlreadyScheduled indicates a pickup confirmation already exists.
	ErrPickupAlreadyScheduled = errors.New("pickup already scheduled")

	// ErrNoPickupScheduled indicates there is no pickup to cancel.
	ErrNoPickupScheduled = errors.New("no pickup scheduled")

	// ErrShipmentNotReady indicates the order is not in a shippable state.
	ErrShipmentNotReady = errors.New("order not ready for shipment")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Retryable
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}
