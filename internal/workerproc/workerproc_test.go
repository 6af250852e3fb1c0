package workerproc

import (
	"context"
	"errors"
	"testing"

	"studio-backend/internal/balance"
	"studio-backend/internal/dispatch"
	"studio-backend/internal/queue"
)

func TestParseMessageValid(t *testing.T) {
	body, err := queue.EncodeMessage(queue.Message{
		UsageID:   "run-1",
		SessionID: "sess-1",
		ModuleID:  "doc-generator",
		UserID:    "user-1",
		Credits:   20,
		Version:   1,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	msg, meta, err := ParseMessage(string(body))
	if err != nil {
		t.Fatalf("ParseMessage error = %v", err)
	}
	if msg.UsageID != "run-1" || msg.Credits != 20 {
		t.Fatalf("decoded message = %+v", msg)
	}
	if meta.BodyLen != len(body) || meta.BodySHA == "" {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestParseMessageEmptyBody(t *testing.T) {
	_, _, err := ParseMessage("   ")
	var emptyErr ErrEmptyBody
	if !errors.As(err, &emptyErr) {
		t.Fatalf("error = %v, want ErrEmptyBody", err)
	}
}

func TestParseMessageDecodeFailure(t *testing.T) {
	_, meta, err := ParseMessage("{not json")
	var decodeErr ErrDecode
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
	if meta.BodySHA == "" {
		t.Fatal("expected body hash for diagnostics")
	}
}

func TestParseMessageMissingUsageID(t *testing.T) {
	body, _ := queue.EncodeMessage(queue.Message{UserID: "user-1", Credits: 5, RequestID: "req-9"})
	_, _, err := ParseMessage(string(body))
	var missingErr ErrMissingUsageID
	if !errors.As(err, &missingErr) {
		t.Fatalf("error = %v, want ErrMissingUsageID", err)
	}
	if missingErr.RequestID != "req-9" {
		t.Fatalf("RequestID = %q, want req-9", missingErr.RequestID)
	}
}

type recordingRuns struct {
	updates map[string]string
	err     error
}

func (r *recordingRuns) UpdateStatus(ctx context.Context, runID, status string) error {
	_ = ctx
	if r.err != nil {
		return r.err
	}
	if r.updates == nil {
		r.updates = make(map[string]string)
	}
	r.updates[runID] = status
	return nil
}

func TestSettleChargesAndMarksRun(t *testing.T) {
	svc := balance.NewService()
	runs := &recordingRuns{}
	settler := &Settler{Balance: svc, Runs: runs}

	msg := queue.Message{UsageID: "run-1", UserID: "user-1", Credits: 20}
	if err := settler.Settle(context.Background(), msg); err != nil {
		t.Fatalf("Settle error = %v", err)
	}

	if runs.updates["run-1"] != dispatch.StatusCharged {
		t.Fatalf("run status = %q, want %q", runs.updates["run-1"], dispatch.StatusCharged)
	}
	b, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get balance: %v", err)
	}
	if b.Used != 20 {
		t.Fatalf("Used = %d, want 20", b.Used)
	}
}

func TestSettleInsufficientCreditsIsTerminal(t *testing.T) {
	svc := balance.NewService()
	runs := &recordingRuns{}
	settler := &Settler{Balance: svc, Runs: runs}

	msg := queue.Message{UsageID: "run-2", UserID: "user-2", Credits: 999}
	err := settler.Settle(context.Background(), msg)

	var settleErr ErrSettle
	if !errors.As(err, &settleErr) {
		t.Fatalf("error = %v, want ErrSettle", err)
	}
	if settleErr.Retryable {
		t.Fatal("insufficient credits must not be retryable")
	}
	if !errors.Is(err, balance.ErrInsufficientCredits) {
		t.Fatalf("error = %v, want wrapped ErrInsufficientCredits", err)
	}
	if runs.updates["run-2"] != dispatch.StatusFailed {
		t.Fatalf("run status = %q, want %q", runs.updates["run-2"], dispatch.StatusFailed)
	}
}

type failingConsumer struct{}

func (failingConsumer) Consume(ctx context.Context, userID string, n int) (balance.Balance, error) {
	_ = ctx
	_ = userID
	_ = n
	return balance.Balance{}, errors.New("connection refused")
}

func TestSettleStoreFailureIsRetryable(t *testing.T) {
	runs := &recordingRuns{}
	settler := &Settler{Balance: failingConsumer{}, Runs: runs}

	err := settler.Settle(context.Background(), queue.Message{UsageID: "run-3", UserID: "user-3", Credits: 10})

	var settleErr ErrSettle
	if !errors.As(err, &settleErr) {
		t.Fatalf("error = %v, want ErrSettle", err)
	}
	if !settleErr.Retryable {
		t.Fatal("store failure should be retryable")
	}
	if len(runs.updates) != 0 {
		t.Fatalf("run status should be untouched, got %v", runs.updates)
	}
}

func TestSettleZeroCreditRunSkipsCharge(t *testing.T) {
	runs := &recordingRuns{}
	settler := &Settler{Balance: failingConsumer{}, Runs: runs}

	if err := settler.Settle(context.Background(), queue.Message{UsageID: "run-4", UserID: "user-4"}); err != nil {
		t.Fatalf("Settle error = %v", err)
	}
	if runs.updates["run-4"] != dispatch.StatusCharged {
		t.Fatalf("run status = %q, want %q", runs.updates["run-4"], dispatch.StatusCharged)
	}
}

func TestSettleMissingRunRecordStillSettles(t *testing.T) {
	svc := balance.NewService()
	runs := &recordingRuns{err: dispatch.ErrRunNotFound}
	settler := &Settler{Balance: svc, Runs: runs}

	if err := settler.Settle(context.Background(), queue.Message{UsageID: "run-5", UserID: "user-5", Credits: 5}); err != nil {
		t.Fatalf("Settle error = %v", err)
	}
	b, _ := svc.Get(context.Background(), "user-5")
	if b.Used != 5 {
		t.Fatalf("Used = %d, want 5", b.Used)
	}
}
