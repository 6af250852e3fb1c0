package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studio-backend/internal/balance"
	"studio-backend/internal/catalog"
	"studio-backend/internal/entitlement"
	"studio-backend/internal/pricing"
	"studio-backend/internal/queue"
	"studio-backend/internal/shared/metrics"
	"studio-backend/internal/shared/telemetry"
)

// SubmitInput carries everything needed for the final hand-off.
type SubmitInput struct {
	UserID     string
	SessionID  string
	RequestID  string
	Descriptor catalog.ModuleDescriptor
	Selection  pricing.Selection
	Payload    map[string]any
}

// Dispatcher hands completed specifications to the execution backend.
// It never performs the generation work itself.
type Dispatcher struct {
	Balance *balance.Service
	Queue   queue.Client
	Runs    RunsRepo
}

// Submit re-validates the actor, balance and entitlements against
// current state, then enqueues the payload and records a usage run.
// The UI's view of all three may be stale; each failure maps to a
// distinct error kind so the caller can render a precise remedy.
func (d *Dispatcher) Submit(ctx context.Context, in SubmitInput) (Handle, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return Handle{}, ErrUnauthenticated
	}

	ent, err := d.Balance.EntitlementFor(ctx, in.UserID)
	if err != nil {
		return Handle{}, fmt.Errorf("resolve entitlement: %w", err)
	}

	quote, err := pricing.ComputeQuote(in.Selection, in.Descriptor, ent)
	if err != nil {
		if errors.Is(err, entitlement.ErrPremiumRequired) || errors.Is(err, entitlement.ErrFeatureDisabled) {
			return Handle{}, fmt.Errorf("%w: %v", ErrEntitlementRevoked, err)
		}
		return Handle{}, err
	}

	ok, _, err := d.Balance.CanConsume(ctx, in.UserID, quote.Credits)
	if err != nil {
		return Handle{}, fmt.Errorf("check balance: %w", err)
	}
	if !ok {
		return Handle{}, ErrInsufficientBalance
	}

	run := Run{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		SessionID: in.SessionID,
		ModuleID:  in.Descriptor.ID,
		Credits:   quote.Credits,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	msg := queue.Message{
		UsageID:    run.ID,
		SessionID:  in.SessionID,
		ModuleID:   in.Descriptor.ID,
		UserID:     in.UserID,
		Credits:    quote.Credits,
		Payload:    in.Payload,
		RequestID:  in.RequestID,
		EnqueuedAt: run.CreatedAt.Format(time.RFC3339),
		Version:    1,
	}
	if err := d.Queue.Send(ctx, msg); err != nil {
		telemetry.Error("dispatch.enqueue_failed", map[string]any{
			"session_id": in.SessionID,
			"module_id":  in.Descriptor.ID,
			"request_id": in.RequestID,
			"err":        err.Error(),
		})
		return Handle{}, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	if err := d.Runs.Create(ctx, run); err != nil {
		// The job is already on the queue; the run record is best-effort.
		telemetry.Warn("dispatch.record_run_failed", map[string]any{
			"usage_id": run.ID,
			"err":      err.Error(),
		})
	}

	metrics.IncRunDispatched()
	telemetry.Info("dispatch.submitted", map[string]any{
		"usage_id":   run.ID,
		"session_id": in.SessionID,
		"module_id":  in.Descriptor.ID,
		"credits":    quote.Credits,
		"request_id": in.RequestID,
	})

	return Handle{UsageID: run.ID}, nil
}
