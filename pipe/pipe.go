// Package pipe implements the per-call state machine (Pipe) and the
// per-session pipe-id registry (Space) described in spec §4.5/§4.6.
// Grounded on profiles/internal/rpc/stream/vc/vc.go's VC/flow pair:
// VC's mutex-protected flowMap maps almost one-for-one onto Space's
// pipe map, and vc.go's narrow Helper interface onto this package's
// Stub interface below.
package pipe

import (
	"sync"

	"github.com/torao/asterisque-go/message"
	"github.com/torao/asterisque-go/value"
	"v.io/v23/verror"
	"v.io/x/lib/vlog"
)

// MaxBlockPayload mirrors message.MaxBlockPayload; Pipe.Write chunks a
// caller's byte stream to this size per outbound Block.
const MaxBlockPayload = message.MaxBlockPayload

// blockBuffer is the per-pipe capacity of the inbound Block channel.
// Draining is the caller's responsibility (via Blocks()); this is
// backpressure against a slow or absent stream-receive consumer, not a
// hard protocol limit.
const blockBuffer = 64

// Stub is the narrow handle a Pipe uses to reach its owning Session,
// mirroring vc.go's two-method Helper interface so neither side holds a
// circular strong reference (spec §9 design note). Its methods are
// exported because, unlike Helper (implemented only within vc.go's own
// package), the implementation here lives in package session — an
// interface's unexported methods can only be satisfied by types in the
// same package that declares it.
type Stub interface {
	Post(msg message.Message) error
	Closed(p *Pipe)
}

// Pipe is the state-carrying entity for one concurrent call (spec
// §4.6). A Pipe is either locally created (Local() == true, via
// Space.Create) or remotely accepted (via Space.Accept).
type Pipe struct {
	id         uint16
	priority   int8
	functionID uint16
	params     []value.Value
	local      bool
	streamRecv bool

	stub   Stub
	future *Future

	mu        sync.Mutex
	closed    bool
	blocksEOF bool // true once an EOF Block has closed p.blocks

	blocks     chan *message.Block
	blocksOnce sync.Once
}

func newPipe(id uint16, priority int8, functionID uint16, params []value.Value, local, streamRecv bool, s Stub) *Pipe {
	return &Pipe{
		id:         id,
		priority:   priority,
		functionID: functionID,
		params:     params,
		local:      local,
		streamRecv: streamRecv,
		stub:       s,
		future:     newFuture(),
		blocks:     make(chan *message.Block, blockBuffer),
	}
}

// ID is this pipe's 16-bit wire identifier.
func (p *Pipe) ID() uint16 { return p.id }

// Priority is the priority this pipe's Open frame was sent with.
func (p *Pipe) Priority() int8 { return p.priority }

// FunctionID is the function this call invokes.
func (p *Pipe) FunctionID() uint16 { return p.functionID }

// Params are the arguments the call was opened with.
func (p *Pipe) Params() []value.Value { return p.params }

// Local reports whether this pipe was created by this endpoint
// (PipeSpace.Create) rather than accepted from the peer
// (PipeSpace.Accept).
func (p *Pipe) Local() bool { return p.local }

// Future is this call's result, completed at most once by whichever
// side closes the pipe first (spec §8 invariant).
func (p *Pipe) Future() *Future { return p.future }

// OpenMessage builds the Open frame a locally-created Pipe emits to its
// Session (spec §4.5 "Pipe emits Open to Session").
func (p *Pipe) OpenMessage() *message.Open {
	return &message.Open{PipeID: p.id, Priority: p.priority, FunctionID: p.functionID, Params: p.params}
}

// tryClose performs the single compare-and-set on the closed flag that
// arbitrates a race between a locally-initiated close and a
// peer-initiated one (spec §4.6: "whichever side wins completes the
// future, the loser is dropped silently"). It reports whether this
// call won the race.
func (p *Pipe) tryClose() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	return true
}

func (p *Pipe) closeBlocks() {
	p.blocksOnce.Do(func() { close(p.blocks) })
}

// SendBlock emits a streaming Block carrying payload on this pipe.
// Oversize payloads are rejected without touching the outbound queue
// (spec §8 scenario 6); callers streaming an arbitrarily large buffer
// should chunk through Write instead.
func (p *Pipe) SendBlock(payload []byte, loss uint8, eof bool) error {
	if len(payload) > MaxBlockPayload {
		return verror.New(message.ErrCodec, nil, "block payload exceeds", MaxBlockPayload, "bytes")
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil
	}
	return p.stub.Post(&message.Block{PipeID: p.id, EOF: eof, Loss: loss, Payload: payload})
}

// Write splices an arbitrary byte stream onto this pipe as a sequence
// of Blocks no larger than MaxBlockPayload each (spec §4.6).
func (p *Pipe) Write(buf []byte, loss uint8) error {
	for len(buf) > MaxBlockPayload {
		if err := p.SendBlock(buf[:MaxBlockPayload], loss, false); err != nil {
			return err
		}
		buf = buf[MaxBlockPayload:]
	}
	return p.SendBlock(buf, loss, false)
}

// WriteEOF emits the terminal Block of this pipe's outbound stream.
func (p *Pipe) WriteEOF(loss uint8) error {
	return p.SendBlock(nil, loss, true)
}

// Blocks returns the channel of inbound Blocks for a pipe created with
// stream-receive capability; it is closed once the EOF Block has been
// delivered. Pipes without stream-receive capability return nil.
func (p *Pipe) Blocks() <-chan *message.Block {
	if !p.streamRecv {
		return nil
	}
	return p.blocks
}

// StreamReceive reports whether this pipe declared stream-receive
// capability at creation (spec §4.6).
func (p *Pipe) StreamReceive() bool { return p.streamRecv }

// DeliverBlock routes an inbound Block to this pipe (spec §4.7). A
// Block delivered to a pipe that did not declare stream-receive
// capability fails the pipe with FunctionCannotReceiveBlock. A Block
// delivered after the stream's EOF Block has already closed p.blocks
// does too, rather than sending on the closed channel: that would
// panic the session's drain goroutine on invalid peer input.
func (p *Pipe) DeliverBlock(b *message.Block) error {
	if !p.streamRecv {
		return p.CloseFailure(FunctionCannotReceiveBlock, "pipe does not accept stream blocks")
	}
	p.mu.Lock()
	if p.closed || p.blocksEOF {
		alreadyClosed := p.closed
		p.mu.Unlock()
		if alreadyClosed {
			return nil
		}
		return p.CloseFailure(FunctionCannotReceiveBlock, "block delivered after stream EOF")
	}
	if b.EOF {
		p.blocksEOF = true
	}
	p.mu.Unlock()
	p.blocks <- b
	if b.EOF {
		p.closeBlocks()
	}
	return nil
}

// CloseSuccess emits a successful Close, completes the Future, and
// detaches this pipe from its Space. Idempotent: a second call is a
// silent no-op (spec §4.6).
func (p *Pipe) CloseSuccess(result value.Value) error {
	if !p.tryClose() {
		return nil
	}
	p.closeBlocks()
	p.future.complete(result)
	err := p.stub.Post(message.CloseOk(p.id, result))
	p.stub.Closed(p)
	return err
}

// CloseFailure emits a failed Close, fails the Future with an Abort,
// and detaches this pipe from its Space. Idempotent.
func (p *Pipe) CloseFailure(code int32, msg string) error {
	if !p.tryClose() {
		return nil
	}
	p.closeBlocks()
	p.future.fail(&Abort{Code: code, Message: msg})
	err := p.stub.Post(message.CloseErr(p.id, code, msg))
	p.stub.Closed(p)
	return err
}

// Abort fails the Future with the given code/message and detaches this
// pipe from its Space, without emitting a Close message. It is used for
// an ungraceful session teardown (spec §5 "session.close(graceful=false)
// ... fails all in-flight pipe futures" — without the per-pipe Close
// send that a graceful teardown performs, since the outbound queue is
// being dropped, not drained). Idempotent.
func (p *Pipe) Abort(code int32, msg string) {
	if !p.tryClose() {
		return
	}
	p.closeBlocks()
	p.future.fail(&Abort{Code: code, Message: msg})
	p.stub.Closed(p)
}

// DeliverClose routes a peer-initiated Close to this pipe (spec §4.7).
// If this pipe already closed locally first, the peer's Close is
// dropped silently per the tryClose race rule.
func (p *Pipe) DeliverClose(c *message.Close) {
	if !p.tryClose() {
		return
	}
	p.closeBlocks()
	if c.Ok {
		p.future.complete(c.Result)
	} else {
		p.future.fail(&Abort{Code: c.Code, Message: c.Message})
	}
	vlog.VI(2).Infof("pipe %d closed by peer (ok=%v)", p.id, c.Ok)
	p.stub.Closed(p)
}
