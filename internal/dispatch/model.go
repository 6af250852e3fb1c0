package dispatch

import "time"

// Run statuses.
const (
	StatusQueued  = "queued"
	StatusCharged = "charged"
	StatusFailed  = "failed"
)

// Handle is the tracking reference returned to the caller on dispatch.
// Completion of the generation work is observed elsewhere.
type Handle struct {
	UsageID string `json:"usageId"`
}

// Run is one recorded execution hand-off.
type Run struct {
	ID        string    `json:"usageId"`
	UserID    string    `json:"-"`
	SessionID string    `json:"sessionId"`
	ModuleID  string    `json:"moduleId"`
	Credits   int       `json:"credits"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
