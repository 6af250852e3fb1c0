package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGStore implements Store using Postgres. The specification and the
// conversation log are stored as JSONB snapshots per session.
type PGStore struct {
	DB *sql.DB
}

// Create inserts a new session row.
func (s *PGStore) Create(ctx context.Context, sess Session) error {
	specRaw, logRaw, err := encodeSession(sess)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO sessions (id, user_id, module_id, state, spec, log, usage_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.DB.ExecContext(ctx, query,
		sess.ID,
		sess.UserID,
		sess.ModuleID,
		sess.State,
		specRaw,
		logRaw,
		nullable(sess.UsageID),
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	return err
}

// Get fetches a session scoped to its owner.
func (s *PGStore) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	const query = `
SELECT id, user_id, module_id, state, spec, log, usage_id, created_at, updated_at
FROM sessions
WHERE user_id = $1 AND id = $2
LIMIT 1`
	var (
		sess    Session
		specRaw []byte
		logRaw  []byte
		usageID sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, query, userID, sessionID).Scan(
		&sess.ID,
		&sess.UserID,
		&sess.ModuleID,
		&sess.State,
		&specRaw,
		&logRaw,
		&usageID,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	if err := json.Unmarshal(specRaw, &sess.Spec); err != nil {
		return Session{}, fmt.Errorf("decode session %s spec: %w", sess.ID, err)
	}
	if len(logRaw) > 0 {
		if err := json.Unmarshal(logRaw, &sess.Log); err != nil {
			return Session{}, fmt.Errorf("decode session %s log: %w", sess.ID, err)
		}
	}
	if sess.Spec.Fields == nil {
		sess.Spec.Fields = map[string]string{}
	}
	if sess.Spec.Quantities == nil {
		sess.Spec.Quantities = map[string]int{}
	}
	sess.UsageID = usageID.String
	return sess, nil
}

// Save overwrites an existing session snapshot.
func (s *PGStore) Save(ctx context.Context, sess Session) error {
	specRaw, logRaw, err := encodeSession(sess)
	if err != nil {
		return err
	}
	const query = `
UPDATE sessions
SET state = $1, spec = $2, log = $3, usage_id = $4, updated_at = $5
WHERE user_id = $6 AND id = $7`
	res, err := s.DB.ExecContext(ctx, query,
		sess.State,
		specRaw,
		logRaw,
		nullable(sess.UsageID),
		time.Now().UTC(),
		sess.UserID,
		sess.ID,
	)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimGuest reassigns every session owned by a guest identity to the
// authenticated user and reports how many moved.
func (s *PGStore) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	const query = `
UPDATE sessions SET user_id = $1, updated_at = $2 WHERE user_id = $3`
	res, err := s.DB.ExecContext(ctx, query, authedUserID, time.Now().UTC(), guestUserID)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func encodeSession(sess Session) (specRaw, logRaw []byte, err error) {
	specRaw, err = json.Marshal(sess.Spec)
	if err != nil {
		return nil, nil, fmt.Errorf("encode session %s spec: %w", sess.ID, err)
	}
	logRaw, err = json.Marshal(sess.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("encode session %s log: %w", sess.ID, err)
	}
	return specRaw, logRaw, nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

var _ Store = (*PGStore)(nil)
