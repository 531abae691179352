package session

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/torao/asterisque-go/message"
	"github.com/torao/asterisque-go/pipe"
	"github.com/torao/asterisque-go/value"
	"github.com/torao/asterisque-go/wire"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakeWire is an in-process wire.Wire backed by two wire.Queues,
// standing in for a real transport in isolation (grounded on the
// teacher's own in-process test-double style).
type fakeWire struct {
	in, out *wire.Queue
	primary bool
	closed  bool
	mu      sync.Mutex
}

func newFakeWire(primary bool) *fakeWire {
	return &fakeWire{in: wire.NewQueue(16), out: wire.NewQueue(16), primary: primary}
}

func (w *fakeWire) Inbound() *wire.Queue            { return w.in }
func (w *fakeWire) Outbound() *wire.Queue           { return w.out }
func (w *fakeWire) LocalAddr() net.Addr             { return fakeAddr("local") }
func (w *fakeWire) RemoteAddr() net.Addr            { return fakeAddr("remote") }
func (w *fakeWire) IsPrimary() bool                 { return w.primary }
func (w *fakeWire) TLSSession() *tls.ConnectionState { return nil }
func (w *fakeWire) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.in.Close()
	w.out.Close()
	return nil
}

// pipeConnect splices a's outbound into b's inbound and vice versa, so
// messages posted by one Session's Latch arrive at the other
// Session's drain loop.
func pipeConnect(t *testing.T, a, b *fakeWire) {
	t.Helper()
	go forward(a.out, b.in)
	go forward(b.out, a.in)
}

func forward(src, dst *wire.Queue) {
	ctx := context.Background()
	for {
		msg, ok, err := src.Poll(ctx)
		if err != nil || !ok {
			dst.Close()
			return
		}
		if dst.Offer(msg) == wire.ErrQueueClosed {
			return
		}
	}
}

// echoDispatcher resolves every serviceID to a fixed session.Service,
// invoking it on its own goroutine (the Executor concern, collapsed
// here since this test only exercises routing).
type echoDispatcher struct {
	service Service
}

func (d *echoDispatcher) Dispatch(ctx context.Context, serviceID string, p *pipe.Pipe) {
	go func() {
		v, abort := d.service(ctx, p)
		if abort != nil {
			p.CloseFailure(abort.Code, abort.Message)
			return
		}
		p.CloseSuccess(v)
	}()
}

func echoService(ctx context.Context, p *pipe.Pipe) (value.Value, *pipe.Abort) {
	switch p.FunctionID() {
	case 10:
		if len(p.Params()) == 0 {
			return value.Value{}, &pipe.Abort{Code: pipe.FunctionFailed, Message: "missing arg"}
		}
		return p.Params()[0], nil
	default:
		return value.Value{}, &pipe.Abort{Code: pipe.FunctionUndefined, Message: "function not found"}
	}
}

func TestMinimalRPC(t *testing.T) {
	pw, sw := newFakeWire(true), newFakeWire(false)
	pipeConnect(t, pw, sw)

	primary := New(pw, uuid.New(), true, "echo", 30, 60, &echoDispatcher{service: echoService})
	secondary := New(sw, uuid.Nil, false, "echo", 30, 60, &echoDispatcher{service: echoService})
	defer primary.Close(false)
	defer secondary.Close(false)

	p, err := secondary.Open(0, 10, []value.Value{value.String("hi")}, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := p.Future().Wait(ctx)
	if err != nil {
		t.Fatalf("Future.Wait: %v", err)
	}
	if v.Text() != "hi" {
		t.Fatalf("got %q, want %q", v.Text(), "hi")
	}
}

func TestUnknownFunctionAborts(t *testing.T) {
	pw, sw := newFakeWire(true), newFakeWire(false)
	pipeConnect(t, pw, sw)

	New(pw, uuid.New(), true, "echo", 30, 60, &echoDispatcher{service: echoService})
	secondary := New(sw, uuid.Nil, false, "echo", 30, 60, &echoDispatcher{service: echoService})
	defer secondary.Close(false)

	p, err := secondary.Open(0, 9999, nil, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = p.Future().Wait(ctx)
	abort, ok := err.(*pipe.Abort)
	if !ok || abort.Code != pipe.FunctionUndefined {
		t.Fatalf("expected FunctionUndefined abort, got %v", err)
	}
}

func TestBlockToMissingPipeRepliesUnreachable(t *testing.T) {
	pw, sw := newFakeWire(true), newFakeWire(false)
	pipeConnect(t, pw, sw)

	New(pw, uuid.New(), true, "echo", 30, 60, &echoDispatcher{service: echoService})

	// Secondary-originated id (no primary mask) that the primary does not
	// know. No secondary Session is started: this test is the only reader
	// of sw.in, so the primary's reply cannot be consumed elsewhere.
	if err := sw.out.Offer(&message.Block{PipeID: 0x0042, Payload: []byte{1}}); err != nil {
		t.Fatalf("Offer: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for DestinationPipeUnreachable reply")
		default:
		}
		msg, ok, err := sw.in.Poll(context.Background())
		if err != nil || !ok {
			t.Fatalf("Poll: %v %v", ok, err)
		}
		if c, isClose := msg.(*message.Close); isClose && c.PipeID == 0x0042 {
			if c.Ok || c.Code != pipe.DestinationPipeUnreachable {
				t.Fatalf("expected DestinationPipeUnreachable Close, got %+v", c)
			}
			return
		}
	}
}

func TestGracefulCloseAbortsInFlightPipes(t *testing.T) {
	pw, sw := newFakeWire(true), newFakeWire(false)
	pipeConnect(t, pw, sw)

	// The primary's service returns only once its session is torn down, so
	// both pipes are still in flight when the primary closes.
	blocking := func(ctx context.Context, p *pipe.Pipe) (value.Value, *pipe.Abort) {
		<-ctx.Done()
		return value.Null(), nil
	}
	primary := New(pw, uuid.New(), true, "noop", 30, 60, &echoDispatcher{service: blocking})
	secondary := New(sw, uuid.Nil, false, "noop", 30, 60, &echoDispatcher{service: echoService})

	p1, _ := secondary.Open(0, 10, []value.Value{value.String("a")}, false)
	p2, _ := secondary.Open(0, 10, []value.Value{value.String("b")}, false)

	var closedCount int
	var mu sync.Mutex
	secondary.AddListener(listenerFunc(func(s *Session) {
		mu.Lock()
		closedCount++
		mu.Unlock()
	}))

	primary.Close(true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, p := range []*pipe.Pipe{p1, p2} {
		_, err := p.Future().Wait(ctx)
		abort, ok := err.(*pipe.Abort)
		if !ok || abort.Code != pipe.SessionClosing {
			t.Fatalf("expected SessionClosing abort, got %v", err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if closedCount != 1 {
		t.Fatalf("expected SessionClosed to fire exactly once, got %d", closedCount)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	pw := newFakeWire(true)
	s := New(pw, uuid.New(), true, "noop", 30, 60, &echoDispatcher{service: echoService})

	var fired int
	s.AddListener(listenerFunc(func(*Session) { fired++ }))
	s.Close(false)
	s.Close(false)
	if fired != 1 {
		t.Fatalf("expected listener to fire exactly once, got %d", fired)
	}
}

func TestWrongSideOpenTearsDownSession(t *testing.T) {
	sw := newFakeWire(false)
	secondary := New(sw, uuid.New(), false, "echo", 30, 60, &echoDispatcher{service: echoService})

	var closedCount int
	var mu sync.Mutex
	secondary.AddListener(listenerFunc(func(*Session) {
		mu.Lock()
		closedCount++
		mu.Unlock()
	}))

	// A secondary session only accepts peer-originated Opens with the
	// primary mask bit set; 0x0001 lacks it, so this is the wrong-side-
	// bit violation spec §8 scenario 5 requires to kill the session,
	// not just fail the one Open.
	if err := sw.in.Offer(&message.Open{PipeID: 0x0001, FunctionID: 10}); err != nil {
		t.Fatalf("Offer: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		got := closedCount
		mu.Unlock()
		if got == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for session teardown after wrong-side Open")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := secondary.Open(0, 10, nil, false); err == nil {
		t.Fatal("expected Open to fail once the session has torn down")
	}
}

type listenerFunc func(*Session)

func (f listenerFunc) SessionClosed(s *Session) { f(s) }
