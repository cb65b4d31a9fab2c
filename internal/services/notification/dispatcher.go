// Package notification delivers best-effort notifications after ledger state
// changes. Callers enqueue and move on; delivery happens on a background
// worker and its outcome never reaches the caller.
package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultDeliveryTimeout = 5 * time.Second

// Notifier is what the services call after a state change.
type Notifier interface {
	Notify(ctx context.Context, event, accountID string, payload map[string]interface{})
}

// Sink delivers one event to a destination.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// NoopNotifier discards every notification.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string, string, map[string]interface{}) {}

// Dispatcher fans events out to its sinks from a single background worker.
// When the queue is full new events are dropped and logged.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Event
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(logger *zap.Logger, queueSize int, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Event, queueSize),
		logger:  logger.Named("notification"),
		timeout: defaultDeliveryTimeout,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues the event without waiting for delivery. The caller's
// context is deliberately not carried over to delivery.
func (d *Dispatcher) Notify(_ context.Context, event, accountID string, payload map[string]interface{}) {
	d.Publish(NewEvent(event, accountID, payload))
}

// Publish enqueues a prepared event. It reports false when the event was
// dropped.
func (d *Dispatcher) Publish(event Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped after close", zap.String("event", event.Name))
		return false
	}
	select {
	case d.queue <- event:
		return true
	default:
		d.logger.Warn("notification queue full, dropping event",
			zap.String("event", event.Name),
			zap.String("account_id", event.AccountID),
		)
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Deliver(ctx, event)
		cancel()
		if err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("event", event.Name),
				zap.String("event_id", event.ID),
				zap.String("account_id", event.AccountID),
				zap.Error(err),
			)
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
