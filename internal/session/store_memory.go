package session

import (
	"context"
	"sync"

	"studio-backend/internal/attachments"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Session
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Session)}
}

// Create stores a new session.
func (s *MemoryStore) Create(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.ID] = clone(sess)
	return nil
}

// Get returns a session scoped to its owner.
func (s *MemoryStore) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.data[sessionID]
	if !ok || sess.UserID != userID {
		return Session{}, ErrNotFound
	}
	return clone(sess), nil
}

// Save overwrites an existing session snapshot.
func (s *MemoryStore) Save(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sess.ID]; !ok {
		return ErrNotFound
	}
	s.data[sess.ID] = clone(sess)
	return nil
}

// ClaimGuest reassigns every session owned by a guest identity to the
// authenticated user and reports how many moved.
func (s *MemoryStore) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, sess := range s.data {
		if sess.UserID != guestUserID {
			continue
		}
		sess.UserID = authedUserID
		s.data[id] = sess
		count++
	}
	return count, nil
}

// clone deep-copies the mutable parts so callers never share maps or
// slices with the store.
func clone(sess Session) Session {
	out := sess
	out.Spec.Fields = make(map[string]string, len(sess.Spec.Fields))
	for k, v := range sess.Spec.Fields {
		out.Spec.Fields[k] = v
	}
	out.Spec.Quantities = make(map[string]int, len(sess.Spec.Quantities))
	for k, v := range sess.Spec.Quantities {
		out.Spec.Quantities[k] = v
	}
	out.Spec.Options = append([]string(nil), sess.Spec.Options...)
	out.Spec.Flags = append([]string(nil), sess.Spec.Flags...)
	out.Spec.Attachments = append([]attachments.Record(nil), sess.Spec.Attachments...)
	out.Log = append([]LogEntry(nil), sess.Log...)
	return out
}

var _ Store = (*MemoryStore)(nil)
