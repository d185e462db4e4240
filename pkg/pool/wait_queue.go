package pool

import "time"

// waiter represents one caller blocked in Acquire. Its channel has
// capacity 1 so a handoff under the pool mutex never blocks. Exactly
// one of three things resolves a waiter: a connection arrives on the
// channel, the channel is closed (pool disposed), or the waiter removes
// itself on timeout or cancellation.
type waiter struct {
	id         string
	ch         chan *pooledConn
	enqueuedAt time.Time
}

func newWaiter(id string) *waiter {
	return &waiter{
		id:         id,
		ch:         make(chan *pooledConn, 1),
		enqueuedAt: time.Now(),
	}
}

// waitQueue is a FIFO queue of blocked acquirers.
// All methods must be called with the owning pool's mutex held.
type waitQueue struct {
	entries []*waiter
}

func newWaitQueue() *waitQueue {
	return &waitQueue{}
}

// push appends w to the tail of the queue.
func (q *waitQueue) push(w *waiter) {
	q.entries = append(q.entries, w)
}

// pop removes and returns the oldest waiter, or nil when empty.
func (q *waitQueue) pop() *waiter {
	if len(q.entries) == 0 {
		return nil
	}
	w := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	return w
}

// remove deletes w from the queue. It returns false when w is no longer
// queued, which means a handoff to it is already in flight or done.
func (q *waitQueue) remove(w *waiter) bool {
	for i, entry := range q.entries {
		if entry == w {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// len reports the number of queued waiters.
func (q *waitQueue) len() int {
	return len(q.entries)
}

// failAll closes every queued waiter's channel and empties the queue.
// Waiters interpret a closed channel as pool disposal.
func (q *waitQueue) failAll() {
	for i, w := range q.entries {
		close(w.ch)
		q.entries[i] = nil
	}
	q.entries = q.entries[:0]
}
