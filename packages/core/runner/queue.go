package runner

import "sync"

// DefaultBatchSize bounds how many results one Drain call hands out.
const DefaultBatchSize = 256

// ResultQueue is a multi-producer queue with a single consumer. Producers
// Push from any goroutine; the consumer waits on Ready and takes bounded
// batches with Drain, which caps memory held per update and how often a
// display refreshes.
type ResultQueue struct {
	mu     sync.Mutex
	items  []*RequestResult
	ready  chan struct{}
	closed bool
	pushed int64
}

func NewResultQueue() *ResultQueue {
	return &ResultQueue{ready: make(chan struct{}, 1)}
}

// Push appends res. Pushing to a closed queue drops the result and
// returns false.
func (q *ResultQueue) Push(res *RequestResult) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, res)
	q.pushed++
	q.signal()
	q.mu.Unlock()
	return true
}

// signal wakes the consumer without blocking. Callers hold mu.
func (q *ResultQueue) signal() {
	if q.closed {
		return
	}
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns up to max results in push order. max <= 0
// uses DefaultBatchSize.
func (q *ResultQueue) Drain(max int) []*RequestResult {
	if max <= 0 {
		max = DefaultBatchSize
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(max, len(q.items))
	if n == 0 {
		return nil
	}
	batch := make([]*RequestResult, n)
	copy(batch, q.items[:n])
	clear(q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	} else {
		q.signal()
	}
	return batch
}

// Ready is signalled whenever results may be waiting. It is closed by Close.
func (q *ResultQueue) Ready() <-chan struct{} {
	return q.ready
}

func (q *ResultQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pushed returns the number of results accepted so far.
func (q *ResultQueue) Pushed() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}

// Close rejects further pushes and wakes the consumer. Results already
// queued can still be drained.
func (q *ResultQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

func (q *ResultQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Consume calls fn with batches of at most max results until the queue is
// closed and empty.
func (q *ResultQueue) Consume(max int, fn func([]*RequestResult)) {
	for {
		_, open := <-q.ready
		for {
			batch := q.Drain(max)
			if len(batch) == 0 {
				break
			}
			fn(batch)
		}
		if !open {
			return
		}
	}
}
