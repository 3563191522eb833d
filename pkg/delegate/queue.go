package delegate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vango-dev/vrender/pkg/protocol"
)

// DefaultQueueSize is the outbound queue capacity used when none is given.
const DefaultQueueSize = 1024

// Queue is the outbound queue of synthetic events. The bridge pushes from
// the loop; the consumer (transport, wasm host, tests) drains from any
// goroutine. Events are numbered in push order.
type Queue struct {
	mu      sync.Mutex
	items   []protocol.Event
	size    int
	seq     uint64
	dropped uint64
	notify  chan struct{}
	logger  *slog.Logger
}

// NewQueue returns a queue holding at most size events. A full queue drops
// new events.
func NewQueue(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		size:   size,
		notify: make(chan struct{}, 1),
		logger: logger,
	}
}

// Push assigns the next sequence number to ev and enqueues it. It reports
// false when the queue is full and the event was dropped.
func (q *Queue) Push(ev protocol.Event) bool {
	q.mu.Lock()
	if len(q.items) >= q.size {
		q.dropped++
		q.mu.Unlock()
		q.logger.Warn("event queue full, dropping event",
			"event", ev.Name,
			"target", ev.Target)
		return false
	}
	q.seq++
	ev.Seq = q.seq
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns every queued event.
func (q *Queue) Drain() []protocol.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Pop removes and returns the oldest event.
func (q *Queue) Pop() (protocol.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return protocol.Event{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

// Wait blocks until at least one event is queued, then drains.
func (q *Queue) Wait(ctx context.Context) ([]protocol.Event, error) {
	for {
		if evs := q.Drain(); len(evs) > 0 {
			return evs, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Notify receives a value after pushes. It is a hint; always Drain.
func (q *Queue) Notify() <-chan struct{} { return q.notify }

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many events were dropped because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// LastSeq returns the sequence number of the most recently queued event.
func (q *Queue) LastSeq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq
}
