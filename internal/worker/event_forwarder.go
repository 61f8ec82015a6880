package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
)

// DefaultQueueSize bounds events waiting for delivery.
const DefaultQueueSize = 1024

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("event forwarder stopped")

// EventForwarder moves ticket events off the request path: Enqueue is
// subscribed to the dispatcher and a single goroutine hands events to sink
// in publish order.
type EventForwarder struct {
	sink   events.EventHandler
	logger *zap.Logger

	queue chan events.Event
	done  chan struct{}

	mu      sync.RWMutex
	stopped bool

	delivered atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewEventForwarder builds a forwarder with the given queue size.
func NewEventForwarder(sink events.EventHandler, queueSize int, logger *zap.Logger) *EventForwarder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventForwarder{
		sink:   sink,
		logger: logger,
		queue:  make(chan events.Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Start subscribes to every event type and begins delivery.
func (f *EventForwarder) Start(d events.Dispatcher) {
	events.SubscribeAll(d, f.Enqueue)
	go f.run()
}

// Enqueue implements events.EventHandler. A full queue drops the event.
func (f *EventForwarder) Enqueue(_ context.Context, event events.Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.stopped {
		return ErrStopped
	}
	select {
	case f.queue <- event:
		return nil
	default:
		f.dropped.Add(1)
		f.logger.Warn("event queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
		return nil
	}
}

func (f *EventForwarder) run() {
	defer close(f.done)
	for event := range f.queue {
		if err := f.sink(context.Background(), event); err != nil {
			f.failed.Add(1)
			f.logger.Warn("event delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
			continue
		}
		f.delivered.Add(1)
	}
}

// Stop refuses new events and waits until the queue drains or ctx ends.
func (f *EventForwarder) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.stopped {
		f.stopped = true
		close(f.queue)
	}
	f.mu.Unlock()

	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports delivered, dropped and failed counts.
func (f *EventForwarder) Stats() (delivered, dropped, failed int64) {
	return f.delivered.Load(), f.dropped.Load(), f.failed.Load()
}
