package wire

import (
	"context"

	"github.com/torao/asterisque-go/message"
)

// Latch gates outbound sends on a Queue's offerable edge, except for
// Control messages, which always bypass the gate so a handshake or
// session-close can make progress even while the queue is under
// backpressure from streaming Blocks (spec §5).
type Latch struct {
	q *Queue
}

// NewLatch returns a Latch over q.
func NewLatch(q *Queue) *Latch {
	return &Latch{q: q}
}

// Send offers msg onto the gated Queue, blocking non-Control messages
// until the queue is offerable. It returns ctx.Err() if ctx is done
// first, or ErrQueueClosed if the queue has been closed.
func (l *Latch) Send(ctx context.Context, msg message.Message) error {
	if _, isControl := msg.(*message.Control); !isControl {
		if err := l.q.WaitOfferable(ctx); err != nil {
			return err
		}
	}
	return l.q.Offer(msg)
}
