package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"studio-backend/internal/dispatch"
	"studio-backend/internal/session"
)

// Service migrates guest-owned data to an authenticated account.
type Service struct {
	Sessions session.Store
	Runs     dispatch.RunsRepo
}

type ClaimResult struct {
	MigratedSessions int `json:"migratedSessions"`
	MigratedRuns     int `json:"migratedRuns"`
}

func NewService(sessions session.Store, runs dispatch.RunsRepo) *Service {
	return &Service{Sessions: sessions, Runs: runs}
}

// ClaimGuest moves every session and run owned by the guest identity to
// the authenticated user. When both stores share a Postgres connection
// the move runs in one transaction.
func (s *Service) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (ClaimResult, error) {
	if strings.TrimSpace(guestUserID) == "" || strings.TrimSpace(authedUserID) == "" {
		return ClaimResult{}, errors.New("guestUserID and authedUserID are required")
	}

	if sessPG, ok := s.Sessions.(*session.PGStore); ok && sessPG != nil && sessPG.DB != nil {
		if runsPG, ok := s.Runs.(*dispatch.PGRepo); ok && runsPG != nil && runsPG.DB == sessPG.DB {
			return claimWithTx(ctx, sessPG.DB, guestUserID, authedUserID)
		}
	}

	sessionCount, err := claimSessions(ctx, s.Sessions, guestUserID, authedUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	runCount, err := claimRuns(ctx, s.Runs, guestUserID, authedUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{MigratedSessions: sessionCount, MigratedRuns: runCount}, nil
}

func claimWithTx(ctx context.Context, db *sql.DB, guestUserID, authedUserID string) (ClaimResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ClaimResult{}, err
	}
	defer tx.Rollback()

	sessRes, err := tx.ExecContext(ctx, `UPDATE sessions SET user_id = $1, updated_at = $2 WHERE user_id = $3`, authedUserID, time.Now().UTC(), guestUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	sessionCount, _ := sessRes.RowsAffected()

	runRes, err := tx.ExecContext(ctx, `UPDATE usage_runs SET user_id = $1 WHERE user_id = $2`, authedUserID, guestUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	runCount, _ := runRes.RowsAffected()

	if err := tx.Commit(); err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{MigratedSessions: int(sessionCount), MigratedRuns: int(runCount)}, nil
}

type guestClaimer interface {
	ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error)
}

func claimSessions(ctx context.Context, store session.Store, guestUserID, authedUserID string) (int, error) {
	if claimer, ok := store.(guestClaimer); ok {
		return claimer.ClaimGuest(ctx, guestUserID, authedUserID)
	}
	return 0, errors.New("session store does not support claim")
}

func claimRuns(ctx context.Context, repo dispatch.RunsRepo, guestUserID, authedUserID string) (int, error) {
	if claimer, ok := repo.(guestClaimer); ok {
		return claimer.ClaimGuest(ctx, guestUserID, authedUserID)
	}
	return 0, errors.New("runs repo does not support claim")
}
