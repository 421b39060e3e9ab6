package repository

import (
	"context"
	"sync"
)

// keyQueue delivers changed keys to a single consumer goroutine in arrival
// order. A key already waiting in the queue is not queued twice.
type keyQueue struct {
	mu      sync.Mutex
	pending []string
	queued  map[string]bool
	signal  chan struct{}
}

func newKeyQueue() *keyQueue {
	return &keyQueue{
		queued: make(map[string]bool),
		signal: make(chan struct{}, 1),
	}
}

func (q *keyQueue) push(key string) {
	q.mu.Lock()
	if !q.queued[key] {
		q.queued[key] = true
		q.pending = append(q.pending, key)
	}
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *keyQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys := q.pending
	q.pending = nil
	clear(q.queued)
	return keys
}

// run invokes onChange for every queued key until ctx is canceled.
func (q *keyQueue) run(ctx context.Context, onChange func(key string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.signal:
			for _, key := range q.drain() {
				onChange(key)
			}
		}
	}
}
