package assistant

import (
	"context"
	"errors"
)

// Conversation states the assistant may report back.
const (
	StateCollecting         = "collecting"
	StateAwaitingAttachment = "awaiting_attachment"
	StateReady              = "ready_for_confirmation"
)

// Snapshot is the full current specification forwarded with every
// message as contextual grounding, never just the raw text.
type Snapshot struct {
	ModuleID       string            `json:"moduleId"`
	ModuleName     string            `json:"moduleName"`
	RequiredFields []string          `json:"requiredFields"`
	Fields         map[string]string `json:"fields"`
	Options        []string          `json:"options"`
	Flags          []string          `json:"flags"`
	Quantities     map[string]int    `json:"quantities"`
	Attachments    []string          `json:"attachments"`
	ReferenceText  string            `json:"referenceText,omitempty"`
}

// Input is one conversational exchange request.
type Input struct {
	SessionID string
	Message   string
	Snapshot  Snapshot
}

// Reply is the assistant's structured answer: an output message, field
// values it inferred, and a completion signal for the state machine.
type Reply struct {
	Message      string            `json:"message"`
	State        string            `json:"state"`
	MissingField string            `json:"missingField,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
}

// Client abstracts the remote conversational assistant.
type Client interface {
	Converse(ctx context.Context, in Input) (Reply, error)
}

// ValidState reports whether the assistant returned a known state value.
func ValidState(state string) bool {
	switch state {
	case StateCollecting, StateAwaitingAttachment, StateReady:
		return true
	}
	return false
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("assistant not configured")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Converse returns ErrNotConfigured.
func (PlaceholderClient) Converse(ctx context.Context, in Input) (Reply, error) {
	_ = ctx
	_ = in
	return Reply{}, ErrNotConfigured
}
