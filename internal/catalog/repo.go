package catalog

import "context"

// Repo defines persistence operations for module descriptors.
type Repo interface {
	GetByID(ctx context.Context, moduleID string) (ModuleDescriptor, error)
	List(ctx context.Context) ([]ModuleDescriptor, error)
}
