package dispatch

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of RunsRepo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Run
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Run)}
}

// Create stores a run.
func (r *MemoryRepo) Create(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[run.ID] = run
	return nil
}

// GetByID returns a run scoped to its owner.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, runID string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.data[runID]
	if !ok || run.UserID != userID {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

// ListByUser returns runs newest-first, honoring limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var runs []Run
	for _, run := range r.data {
		if run.UserID == userID {
			runs = append(runs, run)
		}
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })

	if offset >= len(runs) {
		return []Run{}, nil
	}
	end := len(runs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return runs[offset:end], nil
}

// UpdateStatus transitions a run's status.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, runID, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.data[runID]
	if !ok {
		return ErrRunNotFound
	}
	run.Status = status
	r.data[runID] = run
	return nil
}

// ClaimGuest reassigns a guest's run history to the authenticated user.
func (r *MemoryRepo) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, run := range r.data {
		if run.UserID != guestUserID {
			continue
		}
		run.UserID = authedUserID
		r.data[id] = run
		count++
	}
	return count, nil
}

var _ RunsRepo = (*MemoryRepo)(nil)
