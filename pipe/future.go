package pipe

import (
	"context"

	"github.com/torao/asterisque-go/value"
)

// Future is the one-shot result of a call: it completes exactly once,
// either with the decoded result Value or with an Abort (spec §4.6,
// §8 "any pipe, its future completes at most once"). The completing
// write is guaranteed single-writer by Pipe's closed-flag CAS, so
// Future itself needs no locking beyond the close-once done channel.
type Future struct {
	done   chan struct{}
	result value.Value
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(v value.Value) {
	f.result = v
	close(f.done)
}

func (f *Future) fail(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the Future completes or ctx is done.
func (f *Future) Wait(ctx context.Context) (value.Value, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return value.Value{}, ctx.Err()
	}
}

// Done reports whether the Future has completed, without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
