package pipe

import (
	"sync"

	"github.com/torao/asterisque-go/message"
	"github.com/torao/asterisque-go/value"
	"v.io/v23/verror"
)

// primaryMask is the high bit of a pipe-id that is reserved for
// whichever endpoint is primary during handshake, letting both sides
// allocate ids concurrently without coordination (spec §4.5).
const primaryMask uint16 = 0x8000

// maxIDAttempts bounds Create's collision-retry loop to the full size
// of the 15-bit id space it draws from (spec §4.5).
const maxIDAttempts = 1 << 15

// Space is the per-session registry mapping pipe-id to Pipe (spec
// §4.5), grounded on vc.go's mutex-protected flowMap plus its
// sequential allocFID counter.
type Space struct {
	mu      sync.Mutex
	pipes   map[uint16]*Pipe
	counter uint16
	mask    uint16
	closed  bool
	stub    Stub
}

// NewSpace returns an empty Space for one Session. primary selects
// which half of the pipe-id space this side allocates from.
func NewSpace(primary bool, s Stub) *Space {
	sp := &Space{pipes: make(map[uint16]*Pipe), stub: s}
	if primary {
		sp.mask = primaryMask
	}
	return sp
}

// Create allocates a fresh locally-originated Pipe (spec §4.5). The id
// is drawn as (counter++ & 0x7FFF) | mask, retried on collision up to
// the full 15-bit id space.
func (s *Space) Create(priority int8, functionID uint16, params []value.Value, streamRecv bool) (*Pipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, verror.New(ErrSpaceClosed, nil)
	}
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		s.counter++
		id := (s.counter & 0x7FFF) | s.mask
		if id == 0 {
			continue // 0 is reserved for Control
		}
		if _, exists := s.pipes[id]; exists {
			continue
		}
		p := newPipe(id, priority, functionID, params, true, streamRecv, s.stub)
		s.pipes[id] = p
		return p, nil
	}
	return nil, verror.New(ErrIDsExhausted, nil)
}

// Accept installs a Pipe for a remotely-initiated Open (spec §4.5). A
// pipe-id whose primary bit doesn't belong to the peer's side fails
// with ErrWrongSidePipeID, fatal to the session (spec §8 scenario 5); a
// duplicate id fails with the survivable ErrProtocolError instead.
func (s *Space) Accept(open *message.Open) (*Pipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, verror.New(ErrSpaceClosed, nil)
	}
	// The peer allocates from the opposite half of the id space, so an
	// accepted Open's mask bit must be the complement of our own.
	peerMask := s.mask ^ primaryMask
	if (open.PipeID & primaryMask) != peerMask {
		return nil, verror.New(ErrWrongSidePipeID, nil, open.PipeID)
	}
	if _, exists := s.pipes[open.PipeID]; exists {
		return nil, verror.New(ErrProtocolError, nil, "duplicate pipe-id", open.PipeID)
	}
	p := newPipe(open.PipeID, open.Priority, open.FunctionID, open.Params, false, true, s.stub)
	s.pipes[open.PipeID] = p
	return p, nil
}

// Get looks up a Pipe by id.
func (s *Space) Get(id uint16) (*Pipe, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipes[id]
	return p, ok
}

// Destroy removes a Pipe from the registry. Called by a Pipe's stub
// as soon as the Pipe closes in either direction (a local close, an
// inbound Close, or an abort when the session dies).
func (s *Space) Destroy(id uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pipes, id)
}

// Len reports the number of pipes currently tracked.
func (s *Space) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pipes)
}

// Close marks the Space closed, rejecting further Create/Accept calls,
// and fails every remaining pipe's Future with SessionClosing. A
// graceful close also emits a Close message to the peer for each pipe;
// an ungraceful one only completes the local Futures, since the
// outbound queue is being dropped rather than drained (spec §4.5, §5).
func (s *Space) Close(graceful bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pipes := make([]*Pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		pipes = append(pipes, p)
	}
	s.pipes = make(map[uint16]*Pipe)
	s.mu.Unlock()

	for _, p := range pipes {
		if graceful {
			p.CloseFailure(SessionClosing, "session closing")
		} else {
			p.Abort(SessionClosing, "session closing")
		}
	}
}
