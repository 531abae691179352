// Package session implements the per-Wire orchestrator described in
// spec §4.7: it drains a Wire's inbound queue, routes Control/Open/
// Block/Close to the right place, and owns the outbound Latch that
// gates everything but Control sends. Grounded on vc.go's
// AcceptFlow/DispatchPayload/Close trio and on flow.go's locking
// discipline.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/torao/asterisque-go/message"
	"github.com/torao/asterisque-go/pipe"
	"github.com/torao/asterisque-go/value"
	"github.com/torao/asterisque-go/wire"
	"v.io/v23/verror"
	"v.io/x/lib/vlog"
)

// Listener receives a Session's lifecycle notification. Fired exactly
// once regardless of how Close was initiated (spec §7).
type Listener interface {
	SessionClosed(s *Session)
}

// Session is the per-connection orchestrator owning one pipe.Space and
// one wire.Wire (spec §4.7).
type Session struct {
	id        uuid.UUID
	primary   bool
	serviceID string
	ping      int32
	timeout   int32

	w          wire.Wire
	space      *pipe.Space
	latch      *wire.Latch
	dispatcher Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	listeners []Listener
}

// New constructs a Session over w and starts its inbound drain loop.
// id is the zero UUID only for a secondary session before the
// handshake assigns one; by the time New is called the Dispatcher has
// already resolved the real session-id (spec §4.8 step 5).
func New(w wire.Wire, id uuid.UUID, primary bool, serviceID string, ping, timeout int32, dispatcher Dispatcher) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		primary:    primary,
		serviceID:  serviceID,
		ping:       ping,
		timeout:    timeout,
		w:          w,
		latch:      wire.NewLatch(w.Outbound()),
		dispatcher: dispatcher,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.space = pipe.NewSpace(primary, s)
	go s.run()
	return s
}

// ID is this session's UUID (spec §3).
func (s *Session) ID() uuid.UUID { return s.id }

// Primary reports which side of the handshake's id-bit partitioning
// this session took.
func (s *Session) Primary() bool { return s.primary }

// ServiceID is the service-id this session routes inbound Opens to.
func (s *Session) ServiceID() string { return s.serviceID }

// AddListener registers l to be notified exactly once when this
// session closes. If the session has already closed, l is notified
// immediately.
func (s *Session) AddListener(l Listener) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.SessionClosed(s)
		return
	}
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Post implements pipe.Stub: it forwards msg to the outbound Latch.
func (s *Session) Post(msg message.Message) error {
	return s.latch.Send(s.ctx, msg)
}

// Closed implements pipe.Stub: it removes the pipe from the Space once
// it has fully terminated.
func (s *Session) Closed(p *pipe.Pipe) {
	s.space.Destroy(p.ID())
}

// Open allocates a Pipe, emits its Open, and returns it (spec §4.7);
// the caller awaits the result via pipe.Future().Wait.
func (s *Session) Open(priority int8, functionID uint16, params []value.Value, streamRecv bool) (*pipe.Pipe, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, verror.New(ErrSessionClosed, nil)
	}
	p, err := s.space.Create(priority, functionID, params, streamRecv)
	if err != nil {
		return nil, err
	}
	if err := s.Post(p.OpenMessage()); err != nil {
		return nil, err
	}
	return p, nil
}

// run drains Wire.Inbound() until the terminal marker or a fatal
// protocol error, dispatching each message to deliver.
func (s *Session) run() {
	for {
		msg, ok, err := s.w.Inbound().Poll(s.ctx)
		if err != nil || !ok {
			s.teardown(false)
			return
		}
		if err := s.deliver(msg); err != nil {
			vlog.Errorf("session %v: fatal protocol error: %v", s.id, err)
			s.teardown(false)
			return
		}
	}
}

// deliver routes one inbound Message per spec §4.7.
func (s *Session) deliver(msg message.Message) error {
	switch m := msg.(type) {
	case *message.Control:
		return s.deliverControl(m)
	case *message.Open:
		return s.deliverOpen(m)
	case *message.Block:
		return s.deliverBlock(m)
	case *message.Close:
		return s.deliverClose(m)
	default:
		return verror.New(ErrProtocolViolation, nil, "unrecognized message type")
	}
}

func (s *Session) deliverControl(c *message.Control) error {
	switch c.Code {
	case message.SyncSession:
		return verror.New(ErrProtocolViolation, nil, "unexpected SyncSession on an established session")
	case message.CloseSession:
		s.teardown(false)
		return nil
	default:
		return verror.New(ErrProtocolViolation, nil, "unrecognized control code", c.Code)
	}
}

// deliverOpen routes an inbound Open through the Space. A duplicate
// pipe-id is a survivable ProtocolError local to the one Open (logged
// and dropped); a wrong-side-bit pipe-id is a ProtocolViolation the
// peer has no business sending, so it is returned to run, which tears
// the whole session down (spec §7, §8 scenario 5).
func (s *Session) deliverOpen(m *message.Open) error {
	p, err := s.space.Accept(m)
	if err != nil {
		if verror.ErrorID(err) == pipe.ErrWrongSidePipeID.ID {
			return err
		}
		vlog.Errorf("session %v: rejecting Open: %v", s.id, err)
		return nil
	}
	s.dispatcher.Dispatch(s.ctx, s.serviceID, p)
	return nil
}

func (s *Session) deliverBlock(m *message.Block) error {
	p, ok := s.space.Get(m.PipeID)
	if !ok {
		return s.Post(message.CloseErr(m.PipeID, pipe.DestinationPipeUnreachable, "no such pipe"))
	}
	return p.DeliverBlock(m)
}

func (s *Session) deliverClose(m *message.Close) error {
	p, ok := s.space.Get(m.PipeID)
	if !ok {
		vlog.VI(2).Infof("session %v: Close for unknown pipe %d ignored", s.id, m.PipeID)
		return nil
	}
	p.DeliverClose(m)
	return nil
}

// Close transitions the session to closed exactly once (spec §4.7,
// §8 "session.close() is idempotent"). A graceful close best-effort
// closes every remaining pipe and posts Control{CloseSession} before
// tearing down; an ungraceful close tears down immediately.
func (s *Session) Close(graceful bool) {
	s.teardown(graceful)
}

func (s *Session) teardown(graceful bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	s.space.Close(graceful)
	if graceful {
		s.Post(&message.Control{Code: message.CloseSession})
	}
	s.cancel()
	s.w.Close()

	for _, l := range listeners {
		l.SessionClosed(s)
	}
}
