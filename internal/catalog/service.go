package catalog

import (
	"context"
	"errors"
)

// Service exposes read-only catalogue lookups.
type Service struct {
	Repo Repo
}

// NewService constructs a Service over the given repo.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Get returns one module descriptor.
func (s *Service) Get(ctx context.Context, moduleID string) (ModuleDescriptor, error) {
	if moduleID == "" {
		return ModuleDescriptor{}, errors.New("module id is required")
	}
	return s.Repo.GetByID(ctx, moduleID)
}

// List returns every catalogued module.
func (s *Service) List(ctx context.Context) ([]ModuleDescriptor, error) {
	return s.Repo.List(ctx)
}
