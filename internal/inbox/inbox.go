package inbox

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Inbox is a bounded, typed message channel whose sends give up after a
// timeout instead of blocking the sender forever
type Inbox[T any] struct {
	ch      chan T
	timeout time.Duration
	logger  *slog.Logger

	sent     atomic.Int64
	received atomic.Int64
	timeouts atomic.Int64

	mu       sync.Mutex
	maxDepth int
}

// Stats tracks inbox usage
type Stats struct {
	TotalSent     int64
	TotalReceived int64
	TimeoutCount  int64
	CurrentDepth  int
	MaxDepthSeen  int
}

// New creates an inbox with the given buffer size and send timeout
func New[T any](bufferSize int, timeout time.Duration, logger *slog.Logger) *Inbox[T] {
	return &Inbox[T]{
		ch:      make(chan T, bufferSize),
		timeout: timeout,
		logger:  logger,
	}
}

// Send delivers msg, waiting at most the send timeout.
// Returns false if the message was dropped.
func (ib *Inbox[T]) Send(msg T) bool {
	return ib.SendContext(context.Background(), msg)
}

// SendContext is Send that also gives up when ctx is done
func (ib *Inbox[T]) SendContext(ctx context.Context, msg T) bool {
	timer := time.NewTimer(ib.timeout)
	defer timer.Stop()

	select {
	case ib.ch <- msg:
		ib.sent.Add(1)
		ib.observeDepth()
		return true
	case <-timer.C:
		ib.timeouts.Add(1)
		ib.logger.Warn("inbox send timeout",
			"timeout", ib.timeout,
			"current_depth", len(ib.ch))
		return false
	case <-ctx.Done():
		ib.timeouts.Add(1)
		return false
	}
}

// TryReceive returns a message if one is waiting
func (ib *Inbox[T]) TryReceive() (T, bool) {
	select {
	case msg := <-ib.ch:
		ib.received.Add(1)
		return msg, true
	default:
		var zero T
		return zero, false
	}
}

// Drain hands every waiting message to fn without blocking and returns how
// many were processed
func (ib *Inbox[T]) Drain(fn func(T)) int {
	n := 0
	for {
		msg, ok := ib.TryReceive()
		if !ok {
			return n
		}
		fn(msg)
		n++
	}
}

func (ib *Inbox[T]) observeDepth() {
	depth := len(ib.ch)
	ib.mu.Lock()
	if depth > ib.maxDepth {
		ib.maxDepth = depth
	}
	ib.mu.Unlock()
}

// GetStats returns a snapshot of the inbox statistics
func (ib *Inbox[T]) GetStats() Stats {
	ib.mu.Lock()
	maxDepth := ib.maxDepth
	ib.mu.Unlock()

	return Stats{
		TotalSent:     ib.sent.Load(),
		TotalReceived: ib.received.Load(),
		TimeoutCount:  ib.timeouts.Load(),
		CurrentDepth:  len(ib.ch),
		MaxDepthSeen:  maxDepth,
	}
}

// Len returns the number of waiting messages
func (ib *Inbox[T]) Len() int {
	return len(ib.ch)
}
