package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]ModuleDescriptor
}

// NewMemoryRepo constructs a MemoryRepo seeded with the given descriptors.
func NewMemoryRepo(descriptors ...ModuleDescriptor) *MemoryRepo {
	repo := &MemoryRepo{data: make(map[string]ModuleDescriptor, len(descriptors))}
	for _, d := range descriptors {
		repo.data[d.ID] = d
	}
	return repo
}

// GetByID returns the descriptor for a module.
func (r *MemoryRepo) GetByID(ctx context.Context, moduleID string) (ModuleDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return ModuleDescriptor{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.data[moduleID]
	if !ok {
		return ModuleDescriptor{}, ErrNotFound
	}
	return d, nil
}

// List returns all descriptors ordered by id.
func (r *MemoryRepo) List(ctx context.Context) ([]ModuleDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModuleDescriptor, 0, len(r.data))
	for _, d := range r.data {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
