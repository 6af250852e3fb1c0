package balance

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed balance store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Get(ctx context.Context, userID string) (Balance, error) {
	return s.ensure(ctx, userID)
}

func (s *pgStore) EnsurePeriod(ctx context.Context, userID string) (Balance, error) {
	return s.ensure(ctx, userID)
}

func (s *pgStore) ensure(ctx context.Context, userID string) (Balance, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	b, err := s.lockAndEnsure(ctx, tx, userID)
	if err != nil {
		return Balance{}, err
	}
	if err = tx.Commit(); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (s *pgStore) Consume(ctx context.Context, userID string, n int) (Balance, error) {
	if n <= 0 {
		return s.ensure(ctx, userID)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	b, err := s.lockAndEnsure(ctx, tx, userID)
	if err != nil {
		return Balance{}, err
	}
	if b.Used+n > b.Limit {
		err = ErrInsufficientCredits
		return Balance{}, err
	}
	b.Used += n
	if _, err = tx.ExecContext(ctx, `
UPDATE balances SET used = $1 WHERE user_id = $2`, b.Used, userID); err != nil {
		return Balance{}, err
	}
	if err = tx.Commit(); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (s *pgStore) Reset(ctx context.Context, userID string) (Balance, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	b, err := s.lockAndEnsure(ctx, tx, userID)
	if err != nil {
		return Balance{}, err
	}
	b.Used = 0
	b.ResetsAt = time.Now().UTC().Add(periodLength)
	if _, err = tx.ExecContext(ctx, `
UPDATE balances SET used = 0, resets_at = $1 WHERE user_id = $2`, b.ResetsAt, userID); err != nil {
		return Balance{}, err
	}
	if err = tx.Commit(); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (s *pgStore) SetPlan(ctx context.Context, userID, plan string, limit int) (Balance, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	b, err := s.lockAndEnsure(ctx, tx, userID)
	if err != nil {
		return Balance{}, err
	}
	b.Plan = plan
	if limit > 0 {
		b.Limit = limit
	}
	if _, err = tx.ExecContext(ctx, `
UPDATE balances SET plan = $1, credit_limit = $2 WHERE user_id = $3`, b.Plan, b.Limit, userID); err != nil {
		return Balance{}, err
	}
	if err = tx.Commit(); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// lockAndEnsure selects the row for update, inserting the default
// balance when absent and rolling the period window when expired.
func (s *pgStore) lockAndEnsure(ctx context.Context, tx *sql.Tx, userID string) (Balance, error) {
	const selectQuery = `
SELECT plan, credit_limit, used, resets_at
FROM balances
WHERE user_id = $1
FOR UPDATE`

	var b Balance
	err := tx.QueryRowContext(ctx, selectQuery, userID).Scan(&b.Plan, &b.Limit, &b.Used, &b.ResetsAt)
	if errors.Is(err, sql.ErrNoRows) {
		b = defaultBalance()
		_, err = tx.ExecContext(ctx, `
INSERT INTO balances (user_id, plan, credit_limit, used, resets_at)
VALUES ($1, $2, $3, $4, $5)`, userID, b.Plan, b.Limit, b.Used, b.ResetsAt)
		if err != nil {
			return Balance{}, err
		}
		return b, nil
	}
	if err != nil {
		return Balance{}, err
	}

	now := time.Now().UTC()
	if !now.Before(b.ResetsAt) {
		b.Used = 0
		b.ResetsAt = now.Add(periodLength)
		if _, err := tx.ExecContext(ctx, `
UPDATE balances SET used = 0, resets_at = $1 WHERE user_id = $2`, b.ResetsAt, userID); err != nil {
			return Balance{}, err
		}
	}
	return b, nil
}
