package dispatch

import "errors"

var (
	// ErrUnauthenticated indicates the actor has no identity; there is no retry path.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInsufficientBalance indicates the quote exceeds the current balance.
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	// ErrEntitlementRevoked indicates a selected option is no longer permitted.
	ErrEntitlementRevoked = errors.New("selection no longer permitted by plan")
	// ErrQueueUnavailable indicates the execution backend rejected the hand-off.
	ErrQueueUnavailable = errors.New("execution queue unavailable")
	// ErrRunNotFound indicates the requested run does not exist.
	ErrRunNotFound = errors.New("run not found")
)
