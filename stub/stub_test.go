package stub

import (
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/torao/asterisque-go/pipe"
	"github.com/torao/asterisque-go/session"
	"github.com/torao/asterisque-go/value"
	"github.com/torao/asterisque-go/wire"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

type fakeWire struct {
	in, out *wire.Queue
	primary bool
}

func newFakeWire(primary bool) *fakeWire {
	return &fakeWire{in: wire.NewQueue(16), out: wire.NewQueue(16), primary: primary}
}

func (w *fakeWire) Inbound() *wire.Queue             { return w.in }
func (w *fakeWire) Outbound() *wire.Queue            { return w.out }
func (w *fakeWire) LocalAddr() net.Addr              { return fakeAddr("local") }
func (w *fakeWire) RemoteAddr() net.Addr             { return fakeAddr("remote") }
func (w *fakeWire) IsPrimary() bool                  { return w.primary }
func (w *fakeWire) TLSSession() *tls.ConnectionState { return nil }
func (w *fakeWire) Close() error {
	w.in.Close()
	w.out.Close()
	return nil
}

func pipeConnect(a, b *fakeWire) {
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

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(ctx context.Context, serviceID string, p *pipe.Pipe) {
	go func() {
		if len(p.Params()) == 0 {
			p.CloseFailure(pipe.FunctionFailed, "missing arg")
			return
		}
		p.CloseSuccess(p.Params()[0])
	}()
}

func TestStubCallRoundTrips(t *testing.T) {
	pw, sw := newFakeWire(true), newFakeWire(false)
	pipeConnect(pw, sw)

	session.New(pw, uuid.New(), true, "echo", 30, 60, echoDispatcher{})
	secondary := session.New(sw, uuid.Nil, false, "echo", 30, 60, echoDispatcher{})

	s := New(secondary, map[string]FunctionDescriptor{
		"Echo": {
			Priority:   0,
			FunctionID: 10,
			EncodeParams: func(args ...interface{}) ([]value.Value, error) {
				return []value.Value{value.String(args[0].(string))}, nil
			},
			DecodeResult: func(v value.Value) (interface{}, error) {
				return v.Text(), nil
			},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := s.Call(ctx, "Echo", "hi")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.(string) != "hi" {
		t.Fatalf("got %q, want %q", result, "hi")
	}
}

func TestStubCallUnknownFunctionName(t *testing.T) {
	pw := newFakeWire(true)
	sess := session.New(pw, uuid.New(), true, "echo", 30, 60, echoDispatcher{})
	s := New(sess, map[string]FunctionDescriptor{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := s.Call(ctx, "Missing")
	abort, ok := err.(*pipe.Abort)
	if !ok || abort.Code != pipe.FunctionUndefined {
		t.Fatalf("expected FunctionUndefined abort, got %v", err)
	}
}
