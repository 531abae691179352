// Package wire defines the Wire duplex endpoint abstraction, the bounded
// MessageQueue that feeds it in each direction, and the outbound Latch
// that gates non-Control sends on queue pressure (spec §4.3, §4.4, §5).
package wire

import (
	"context"
	"sync"

	"github.com/torao/asterisque-go/message"
)

// Queue is a bounded FIFO of Messages with two watermark-edge signals
// (spec §4.3): Offerable toggles false once the queue reaches capacity
// and true again once it drains to half capacity (hysteresis, avoiding
// flapping at the boundary); Pollable toggles true on the first enqueue
// into an empty queue and false once drained to empty. Offer, Poll and
// Close are safe for concurrent callers; Queue assumes many producers
// and exactly one consumer draining via Poll, matching the teacher's
// `conn.mu`-guarded struct-field discipline in flow.go.
type Queue struct {
	mu        sync.Mutex
	cap       int
	buf       []message.Message
	closed    bool // no further Offer accepted
	drained   bool // terminal marker already returned by Poll
	hasTerm   bool // terminal marker is queued, waiting to be polled
	offerable bool
	pollable  bool
	// changed is closed and replaced on every state transition; Poll
	// and WaitOfferable select on it alongside ctx.Done(), mirroring
	// the buffered-by-one notify-channel idiom in flow.go's writeCh
	// without the self-deadlock risk a single shared channel would have
	// (each waiter gets its own receive of a channel that is only ever
	// closed, never sent on).
	changed chan struct{}
}

// NewQueue returns an empty Queue with the given cooperative capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 2 {
		capacity = 2
	}
	return &Queue{cap: capacity, offerable: true, changed: make(chan struct{})}
}

func (q *Queue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// ErrQueueClosed is returned by Offer once Close has been called. Poll
// does not return it: a drained, closed queue yields ok=false, err=nil.
var ErrQueueClosed = &queueClosedError{}

type queueClosedError struct{}

func (*queueClosedError) Error() string { return "wire: queue closed" }

// Offer appends msg to the queue. It fails with ErrQueueClosed once
// Close has been called.
func (q *Queue) Offer(msg message.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.buf = append(q.buf, msg)
	q.updateEdgesLocked()
	q.broadcastLocked()
	return nil
}

func (q *Queue) updateEdgesLocked() {
	n := len(q.buf)
	if n > 0 {
		q.pollable = true
	} else {
		q.pollable = false
	}
	if n >= q.cap {
		q.offerable = false
	} else if n <= q.cap/2 {
		q.offerable = true
	}
}

// Poll blocks until a message is available, the terminal marker
// inserted by Close is reached, or ctx is done. ok is true iff msg is a
// real, dequeued message; ok is false and err is nil when the terminal
// marker is reached (spec §4.3's "returns None... on the terminal
// marker" sentinel), and every call after that returns the same
// immediately without blocking.
func (q *Queue) Poll(ctx context.Context) (msg message.Message, ok bool, err error) {
	for {
		q.mu.Lock()
		if q.drained {
			q.mu.Unlock()
			return nil, false, nil
		}
		if len(q.buf) > 0 {
			msg = q.buf[0]
			q.buf = q.buf[1:]
			q.updateEdgesLocked()
			q.broadcastLocked()
			q.mu.Unlock()
			return msg, true, nil
		}
		if q.hasTerm {
			q.hasTerm = false
			q.drained = true
			q.broadcastLocked()
			q.mu.Unlock()
			return nil, false, nil
		}
		ch := q.changed
		q.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Close inserts the terminal marker that a draining Poll loop will
// observe exactly once, and rejects further Offer calls. Close is
// idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.hasTerm = true
	q.broadcastLocked()
}

// Offerable reports the current offerable edge level.
func (q *Queue) Offerable() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.offerable
}

// Pollable reports the current pollable edge level.
func (q *Queue) Pollable() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pollable
}

// Len reports the number of messages currently buffered (not including
// any pending terminal marker).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// WaitOfferable blocks until Offerable() is true, the queue closes, or
// ctx is done.
func (q *Queue) WaitOfferable(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.offerable || q.closed {
			q.mu.Unlock()
			return nil
		}
		ch := q.changed
		q.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
