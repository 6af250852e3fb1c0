package queue

import (
	"context"

	"studio-backend/internal/shared/telemetry"
)

// Client sends execution messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// NopClient accepts messages without delivering them. Used in dev when
// no queue is configured; dispatched jobs are never settled.
type NopClient struct{}

// Send logs the message and drops it.
func (NopClient) Send(ctx context.Context, msg Message) error {
	telemetry.Warn("queue.dropped", map[string]any{
		"usage_id":  msg.UsageID,
		"module_id": msg.ModuleID,
	})
	return nil
}

var _ Client = NopClient{}
