package balance

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]Balance
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]Balance)}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	s.mu.RLock()
	b, ok := s.data[userID]
	s.mu.RUnlock()
	if ok {
		return b, nil
	}
	return s.ensure(ctx, userID)
}

func (s *memoryStore) EnsurePeriod(ctx context.Context, userID string) (Balance, error) {
	return s.ensure(ctx, userID)
}

func (s *memoryStore) ensure(ctx context.Context, userID string) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[userID]
	if !ok {
		b = defaultBalance()
	}
	if !now.Before(b.ResetsAt) {
		b.Used = 0
		b.ResetsAt = now.Add(periodLength)
	}
	s.data[userID] = b
	return b, nil
}

func (s *memoryStore) Consume(ctx context.Context, userID string, n int) (Balance, error) {
	if n <= 0 {
		return s.ensure(ctx, userID)
	}
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[userID]
	if !ok {
		b = defaultBalance()
	}
	if !now.Before(b.ResetsAt) {
		b.Used = 0
		b.ResetsAt = now.Add(periodLength)
	}
	if b.Used+n > b.Limit {
		return Balance{}, ErrInsufficientCredits
	}
	b.Used += n
	s.data[userID] = b
	return b, nil
}

func (s *memoryStore) Reset(ctx context.Context, userID string) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[userID]
	if !ok {
		b = defaultBalance()
	}
	b.Used = 0
	b.ResetsAt = now.Add(periodLength)
	s.data[userID] = b
	return b, nil
}

func (s *memoryStore) SetPlan(ctx context.Context, userID, plan string, limit int) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[userID]
	if !ok {
		b = defaultBalance()
	}
	b.Plan = plan
	if limit > 0 {
		b.Limit = limit
	}
	s.data[userID] = b
	return b, nil
}
