package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	created := time.Now().UTC()

	mock.ExpectExec("INSERT INTO usage_runs").
		WithArgs("run-1", "user-1", "sess-1", "doc-generator", 37, StatusQueued, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("SELECT id, user_id, session_id, module_id, credits, status, created_at").
		WithArgs("user-1", "run-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "session_id", "module_id", "credits", "status", "created_at"}).
			AddRow("run-1", "user-1", "sess-1", "doc-generator", 37, StatusQueued, created))

	repo := &PGRepo{DB: db}
	ctx := context.Background()

	run := Run{
		ID:        "run-1",
		UserID:    "user-1",
		SessionID: "sess-1",
		ModuleID:  "doc-generator",
		Credits:   37,
		Status:    StatusQueued,
		CreatedAt: created,
	}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, "user-1", "run-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Credits != 37 || got.Status != StatusQueued {
		t.Fatalf("unexpected run: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT id, user_id, session_id, module_id, credits, status, created_at").
		WithArgs("user-1", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "session_id", "module_id", "credits", "status", "created_at"}))

	repo := &PGRepo{DB: db}
	_, err = repo.GetByID(context.Background(), "user-1", "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("GetByID error = %v, want ErrRunNotFound", err)
	}
}

func TestPGRepoUpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("UPDATE usage_runs SET status").
		WithArgs(StatusCharged, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := &PGRepo{DB: db}
	err = repo.UpdateStatus(context.Background(), "missing", StatusCharged)
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("UpdateStatus error = %v, want ErrRunNotFound", err)
	}
}
