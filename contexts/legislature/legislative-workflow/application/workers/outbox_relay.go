package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "assembly/contexts/legislature/legislative-workflow/application"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

// OutboxRelay moves committed workflow events from the outbox to the bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes one batch in creation order. A row is marked published
// only after the bus accepted it; the first failure ends the batch.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("workflow outbox list failed",
			"event", "workflow_outbox_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(pending) == 0 {
		logger.Debug("workflow outbox relay found no pending rows",
			"event", "workflow_outbox_relay_noop",
			"module", application.ModuleName,
			"layer", "worker",
			"batch_size", limit,
		)
		return 0, nil
	}

	published := 0
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("workflow outbox decode failed",
				"event", "workflow_outbox_decode_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("workflow outbox publish failed",
				"event", "workflow_outbox_publish_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, r.now()); err != nil {
			logger.Error("workflow outbox mark published failed",
				"event", "workflow_outbox_mark_published_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		published++
	}

	logger.Info("workflow outbox relay cycle completed",
		"event", "workflow_outbox_relay_completed",
		"module", application.ModuleName,
		"layer", "worker",
		"published_count", published,
	)
	return published, nil
}

// Run drains the outbox on every tick until ctx is done.
func (r OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			// Rows stay pending and are retried on the next tick.
			application.ResolveLogger(r.Logger).Warn("workflow outbox relay cycle failed",
				"event", "workflow_outbox_relay_retry",
				"module", application.ModuleName,
				"layer", "worker",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r OutboxRelay) now() time.Time {
	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}
	return now
}
