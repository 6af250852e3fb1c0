package session

import "context"

// Store persists session snapshots and conversation history.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, userID, sessionID string) (Session, error)
	Save(ctx context.Context, s Session) error
}
