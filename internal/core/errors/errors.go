// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Entity resolution errors.
var (
	// ErrChannelNotFound indicates a monitored channel could not be found.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrItemNotFound indicates an intelligence item could not be found.
	ErrItemNotFound = errors.New("item not found")

	// ErrAccountNotFound indicates a CRM account could not be found.
	ErrAccountNotFound = errors.New("account not found")
)

// Approval and sync errors.
var (
	// ErrNoLinkedAccount indicates an item cannot be synced because it has no
	// CRM account mapping.
	ErrNoLinkedAccount = errors.New("no linked account")

	// ErrNotPending indicates a status change was refused because the item
	// has already been reviewed.
	ErrNotPending = errors.New("item is not pending")
)

// Classification and clustering errors.
var (
	// ErrEmptyResponse indicates the model returned an empty response.
	ErrEmptyResponse = errors.New("empty response")

	// ErrUnparseableVerdict indicates the classifier reply did not match the
	// verdict contract.
	ErrUnparseableVerdict = errors.New("unparseable verdict")

	// ErrUnparseableClusters indicates the clustering reply did not match the
	// topic contract.
	ErrUnparseableClusters = errors.New("unparseable clusters")

	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and
	// requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// Pipeline control errors.
var (
	// ErrMonitoringDisabled indicates polling and digest generation are
	// switched off by configuration.
	ErrMonitoringDisabled = errors.New("monitoring is disabled")

	// ErrDailyCapReached indicates the per-channel daily item cap has been hit.
	ErrDailyCapReached = errors.New("daily item cap reached")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
