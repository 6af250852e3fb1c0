package dispatch

import "context"

// RunsRepo defines persistence operations for execution runs.
type RunsRepo interface {
	Create(ctx context.Context, run Run) error
	GetByID(ctx context.Context, userID, runID string) (Run, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error)
	UpdateStatus(ctx context.Context, runID, status string) error
}
