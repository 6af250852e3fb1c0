package dispatch

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements RunsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO usage_runs (id, user_id, session_id, module_id, credits, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		run.ID,
		run.UserID,
		run.SessionID,
		run.ModuleID,
		run.Credits,
		run.Status,
		run.CreatedAt,
	)
	return err
}

// GetByID fetches a run scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, runID string) (Run, error) {
	const query = `
SELECT id, user_id, session_id, module_id, credits, status, created_at
FROM usage_runs
WHERE user_id = $1 AND id = $2
LIMIT 1`
	var run Run
	err := r.DB.QueryRowContext(ctx, query, userID, runID).Scan(
		&run.ID,
		&run.UserID,
		&run.SessionID,
		&run.ModuleID,
		&run.Credits,
		&run.Status,
		&run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, err
	}
	return run, nil
}

// ListByUser lists runs newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, user_id, session_id, module_id, credits, status, created_at
FROM usage_runs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID,
			&run.UserID,
			&run.SessionID,
			&run.ModuleID,
			&run.Credits,
			&run.Status,
			&run.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a run's status.
func (r *PGRepo) UpdateStatus(ctx context.Context, runID, status string) error {
	const query = `
UPDATE usage_runs SET status = $1 WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, status, runID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ClaimGuest reassigns a guest's run history to the authenticated user.
func (r *PGRepo) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	const query = `
UPDATE usage_runs SET user_id = $1 WHERE user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, authedUserID, guestUserID)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

var _ RunsRepo = (*PGRepo)(nil)
