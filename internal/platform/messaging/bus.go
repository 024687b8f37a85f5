package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"assembly/contexts/legislature/legislative-workflow/ports"
)

// Bus is the event bus used by the outbox relay and consumers. Delivery is
// in-process; the broker list is accepted for configuration parity with an
// external broker.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	brokers     []string
	logger      *slog.Logger
	wg          sync.WaitGroup
}

type subscription struct {
	group      string
	deliveries chan delivery
	stopped    chan struct{}
}

// delivery carries one event to a subscriber and the handler's result back.
type delivery struct {
	event ports.EventEnvelope
	ack   chan error
}

// ErrSubscriberStopped reports a publish to a subscription whose context
// ended before it took the event.
var ErrSubscriberStopped = errors.New("messaging: subscriber stopped")

func NewBus(brokers []string, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bus := &Bus{
		subscribers: make(map[string][]*subscription),
		brokers:     append([]string(nil), brokers...),
		logger:      logger,
	}
	logger.Debug("event bus ready",
		"event", "bus_ready",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"brokers", bus.brokers,
	)
	return bus, nil
}

// Publish hands event to every subscriber of topic and waits for each handler
// to finish. A handler error is returned so the caller keeps the outbox row
// pending and retries it; consumers dedupe redeliveries by event id.
func (b *Bus) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	b.mu.RLock()
	subs := append([]*subscription(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := b.deliver(ctx, sub, event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, fmt.Errorf("consumer group %s: %w", sub.group, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		b.logger.Warn("event delivery failed",
			"event", "bus_publish_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"subscriber_count", len(subs),
	)
	return nil
}

func (b *Bus) deliver(ctx context.Context, sub *subscription, event ports.EventEnvelope) error {
	d := delivery{event: event, ack: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-sub.stopped:
		return ErrSubscriberStopped
	case sub.deliveries <- d:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-d.ack:
		return err
	}
}

// Subscribe starts one goroutine per subscription that runs until ctx is
// done.
func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	sub := &subscription{
		group:      consumerGroup,
		deliveries: make(chan delivery),
		stopped:    make(chan struct{}),
	}

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(sub.stopped)
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, sub)
				return
			case d := <-sub.deliveries:
				err := handler(ctx, d.event)
				if err != nil {
					b.logger.Error("consumer handler failed",
						"event", "bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", d.event.EventID,
						"event_type", d.event.EventType,
						"error", err.Error(),
					)
				}
				d.ack <- err
			}
		}
	}()
	return nil
}

// Wait blocks until every subscription goroutine has exited.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) removeSubscriber(topic string, target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]*subscription, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}

var _ ports.EventPublisher = (*Bus)(nil)
var _ ports.EventSubscriber = (*Bus)(nil)
