// Package queue buffers interactions between ingestion and the ledger.
package queue

import (
	"context"
	"sync"

	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an interaction; false means the queue is full or closed.
	Enqueue(ctx context.Context, in model.Interaction) bool

	// Dequeue returns the channel workers read from. It is closed by Close.
	Dequeue(ctx context.Context) <-chan model.Interaction

	Len(ctx context.Context) int
	Capacity() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	items    chan model.Interaction
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan model.Interaction, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue never blocks. The read lock keeps Close from closing the channel
// under an in-flight send.
func (q *InMemoryQueue) Enqueue(ctx context.Context, in model.Interaction) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		metrics.RecordQueueRejected()
		return false
	}
	select {
	case q.items <- in:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.items))
		return true
	default:
		metrics.RecordQueueRejected()
		return false
	}
}

func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan model.Interaction {
	return q.items
}

func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	return size
}

func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops new enqueues. Interactions already queued stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
