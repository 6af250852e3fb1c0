package session

import (
	"time"

	"studio-backend/internal/attachments"
)

// Conversation states. Confirmed is terminal; a new interaction needs a
// fresh session.
const (
	StateCollecting           = "collecting"
	StateAwaitingAttachment   = "awaiting_attachment"
	StateReadyForConfirmation = "ready_for_confirmation"
	StateConfirmed            = "confirmed"
)

// Log entry roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// LogEntry is one visible conversation message. The log is append-only
// and ordered by submission time; entries are never edited or removed.
type LogEntry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Specification is the accumulating description of the job to submit.
// It is mutated only through the session service; the pricing engine
// reads it and never writes.
type Specification struct {
	Fields        map[string]string    `json:"fields"`
	Options       []string             `json:"options,omitempty"`
	Flags         []string             `json:"flags,omitempty"`
	Quantities    map[string]int       `json:"quantities,omitempty"`
	Attachments   []attachments.Record `json:"attachments,omitempty"`
	ReferenceText string               `json:"referenceText,omitempty"`
}

// NewSpecification returns an empty specification.
func NewSpecification() Specification {
	return Specification{
		Fields:     map[string]string{},
		Quantities: map[string]int{},
	}
}

// AttachmentByID returns the record with the given id.
func (s Specification) AttachmentByID(id string) (attachments.Record, bool) {
	for _, rec := range s.Attachments {
		if rec.ID == id {
			return rec, true
		}
	}
	return attachments.Record{}, false
}

// Session binds one actor's interaction with one module: the
// specification being built, the conversation log, and the state that
// decides whether it may be submitted.
type Session struct {
	ID        string        `json:"id"`
	UserID    string        `json:"-"`
	ModuleID  string        `json:"moduleId"`
	State     string        `json:"state"`
	Spec      Specification `json:"spec"`
	Log       []LogEntry    `json:"log"`
	UsageID   string        `json:"usageId,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
