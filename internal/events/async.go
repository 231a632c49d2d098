package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Async hands events to a background goroutine so that publishing never blocks.
// When the buffer is full the event is dropped and counted.
type Async struct {
	next    Publisher
	queue   chan Event
	timeout time.Duration
	onDrop  func()
	logger  *slog.Logger

	dropped atomic.Int64
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
}

// NewAsync starts the dispatcher. onDrop may be nil.
func NewAsync(next Publisher, buffer int, onDrop func(), logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		queue:   make(chan Event, buffer),
		timeout: 2 * time.Second,
		onDrop:  onDrop,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues the event without blocking
func (a *Async) Publish(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(e, "closed")
		return nil
	}
	select {
	case a.queue <- e:
	default:
		a.drop(e, "buffer full")
	}
	return nil
}

func (a *Async) drop(e Event, reason string) {
	a.dropped.Add(1)
	if a.onDrop != nil {
		a.onDrop()
	}
	a.logger.Warn("event dropped", "type", e.Type, "subject", e.SubjectID, "reason", reason)
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Publish(ctx, e); err != nil {
			a.logger.Warn("event delivery failed", "type", e.Type, "subject", e.SubjectID, "error", err)
		}
		cancel()
	}
}

// Dropped returns the number of events dropped so far
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until the queue is drained
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
