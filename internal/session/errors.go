package session

import "errors"

var (
	// ErrNotFound indicates the session does not exist or belongs to someone else.
	ErrNotFound = errors.New("session not found")
	// ErrBusy indicates a message or confirmation is already in flight.
	ErrBusy = errors.New("a request for this session is already in progress")
	// ErrCompleted indicates the session reached its terminal state.
	ErrCompleted = errors.New("session already confirmed")
	// ErrNotReady indicates confirm was called outside ready_for_confirmation.
	ErrNotReady = errors.New("session is not ready for confirmation")
	// ErrAttachmentNotFound indicates the referenced attachment is not on the spec.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrAssistantUnavailable indicates the assistant call failed; the
	// specification and state are unchanged and a notice was logged.
	ErrAssistantUnavailable = errors.New("assistant unavailable")
	// ErrUnknownField indicates a quantity edit named a field with no
	// declared dimension.
	ErrUnknownField = errors.New("unknown quantity field")
)
