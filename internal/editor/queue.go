package editor

import (
	"context"
	"sync"
)

type job func(ctx context.Context)

// jobQueue is an unbounded FIFO drained by a single worker, so pushes never
// block the caller.
type jobQueue struct {
	mu     sync.Mutex
	items  []job
	signal chan struct{}
	closed bool
}

func newJobQueue() *jobQueue {
	return &jobQueue{signal: make(chan struct{}, 1)}
}

func (q *jobQueue) push(j job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, j)
	q.mu.Unlock()
	q.wake()
	return true
}

func (q *jobQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// close stops accepting jobs; already queued jobs still run.
func (q *jobQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// run executes jobs in order until the queue is closed and empty.
func (q *jobQueue) run(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.signal
			continue
		}
		j := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		j(ctx)
	}
}
