package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"studio-backend/internal/balance"
	"studio-backend/internal/dispatch"
	"studio-backend/internal/queue"
	"studio-backend/internal/shared/metrics"
	"studio-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingUsageID indicates a message missing the usage id.
type ErrMissingUsageID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingUsageID) Error() string { return "missing usage id" }

// ErrSettle indicates settlement failed after successful parsing.
// Retryable reports whether redelivery could succeed; non-retryable
// failures (such as insufficient credits) are terminal and the message
// should be deleted.
type ErrSettle struct {
	UsageID   string
	RequestID string
	Err       error
	Retryable bool
}

func (e ErrSettle) Error() string {
	if e.Err == nil {
		return "settle run"
	}
	return "settle run: " + e.Err.Error()
}

func (e ErrSettle) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.UsageID) == "" {
		return msg, meta, ErrMissingUsageID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type creditConsumer interface {
	Consume(ctx context.Context, userID string, n int) (balance.Balance, error)
}

type runStatusUpdater interface {
	UpdateStatus(ctx context.Context, runID, status string) error
}

// Settler charges a dispatched run against the user's credit balance and
// records the outcome on the run record.
type Settler struct {
	Balance creditConsumer
	Runs    runStatusUpdater
}

// NewSettler wires a settler from the balance service and runs repository.
func NewSettler(balanceSvc *balance.Service, runs dispatch.RunsRepo) *Settler {
	return &Settler{Balance: balanceSvc, Runs: runs}
}

// Settle consumes the run's credits and marks the run charged. A run whose
// user no longer has the credits is marked failed; that outcome is terminal.
// Once the charge has gone through, a failure to update the run record is
// logged but not returned, since redelivering the message would charge twice.
func (s *Settler) Settle(ctx context.Context, msg queue.Message) error {
	if s == nil || s.Balance == nil || s.Runs == nil {
		return errors.New("settler not configured")
	}

	if msg.Credits > 0 {
		if _, err := s.Balance.Consume(ctx, msg.UserID, msg.Credits); err != nil {
			if errors.Is(err, balance.ErrInsufficientCredits) {
				s.markRun(ctx, msg, dispatch.StatusFailed)
				metrics.IncRunFailed()
				return ErrSettle{UsageID: msg.UsageID, RequestID: msg.RequestID, Err: err}
			}
			return ErrSettle{UsageID: msg.UsageID, RequestID: msg.RequestID, Err: err, Retryable: true}
		}
	}

	s.markRun(ctx, msg, dispatch.StatusCharged)
	metrics.IncRunCharged()
	return nil
}

func (s *Settler) markRun(ctx context.Context, msg queue.Message, status string) {
	err := s.Runs.UpdateStatus(ctx, msg.UsageID, status)
	if err == nil || errors.Is(err, dispatch.ErrRunNotFound) {
		// A missing run record means dispatch enqueued the job but never
		// persisted the record; the charge outcome still stands.
		return
	}
	telemetry.Error("worker.settle.mark_failed", map[string]any{
		"usage_id": msg.UsageID,
		"status":   status,
		"error":    err.Error(),
	})
}
