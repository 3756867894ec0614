package ingest

import "sync"

// Queue is a thread-safe unbounded FIFO of rows between producer streams
// and the single consumer that inserts facts.
//
// Producers never block on a slow consumer. The consumer waits on a
// signal channel, so it can select on context cancellation too:
//
//	for {
//	    if row, ok := q.TryPop(); ok {
//	        handle(row)
//	        continue
//	    }
//	    if q.Done() {
//	        return nil
//	    }
//	    select {
//	    case <-ctx.Done():
//	        return ctx.Err()
//	    case <-q.Wait():
//	    }
//	}
type Queue struct {
	mu     sync.Mutex
	rows   []Row
	closed bool
	signal chan struct{} // buffered, size 1; closed by Close
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		rows:   make([]Row, 0, 256),
		signal: make(chan struct{}, 1),
	}
}

// Push appends a row. It returns false once the queue is closed.
func (q *Queue) Push(r Row) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.rows = append(q.rows, r)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes the front row without blocking.
func (q *Queue) TryPop() (Row, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.rows) == 0 {
		return Row{}, false
	}
	r := q.rows[0]

	// Clear the slot so the backing array does not pin the values.
	q.rows[0] = Row{}
	if len(q.rows) == 1 {
		q.rows = q.rows[:0]
	} else {
		q.rows = q.rows[1:]
	}
	return r, true
}

// Wait returns a channel that signals when rows may be available. It is
// closed by Close.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Done reports whether the queue is closed and drained.
func (q *Queue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.rows) == 0
}

// Len returns the number of queued rows.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.rows)
}

// Close marks the end of input and wakes the consumer. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
