package balance

import (
	"context"

	"studio-backend/internal/entitlement"
)

type store interface {
	Get(ctx context.Context, userID string) (Balance, error)
	EnsurePeriod(ctx context.Context, userID string) (Balance, error)
	Consume(ctx context.Context, userID string, n int) (Balance, error)
	Reset(ctx context.Context, userID string) (Balance, error)
	SetPlan(ctx context.Context, userID, plan string, limit int) (Balance, error)
}

// Service manages credit balances via an underlying store.
type Service struct {
	store store
}

// NewService constructs a Service with an in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore()}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore}
}

// Get returns the current balance for a user, refreshed for the period.
func (s *Service) Get(ctx context.Context, userID string) (Balance, error) {
	return s.store.EnsurePeriod(ctx, userID)
}

// CanConsume reports whether the user has n credits available. The
// balance itself is never decremented here; charging happens at
// execution time on the backend side.
func (s *Service) CanConsume(ctx context.Context, userID string, n int) (bool, Balance, error) {
	b, err := s.store.EnsurePeriod(ctx, userID)
	if err != nil {
		return false, Balance{}, err
	}
	if n <= 0 {
		return true, b, nil
	}
	return b.Used+n <= b.Limit, b, nil
}

// Consume charges n credits if within the limit. Called by the
// settlement worker once a dispatched job is accepted.
func (s *Service) Consume(ctx context.Context, userID string, n int) (Balance, error) {
	return s.store.Consume(ctx, userID, n)
}

// Reset zeroes usage and restarts the period window.
func (s *Service) Reset(ctx context.Context, userID string) (Balance, error) {
	return s.store.Reset(ctx, userID)
}

// SetPlan switches the user's plan and credit limit.
func (s *Service) SetPlan(ctx context.Context, userID, plan string, limit int) (Balance, error) {
	return s.store.SetPlan(ctx, userID, plan, limit)
}

// EntitlementFor resolves the entitlement snapshot for a user from
// their current plan.
func (s *Service) EntitlementFor(ctx context.Context, userID string) (entitlement.Context, error) {
	b, err := s.store.EnsurePeriod(ctx, userID)
	if err != nil {
		return entitlement.Context{}, err
	}
	return entitlement.ForPlan(b.Plan), nil
}
