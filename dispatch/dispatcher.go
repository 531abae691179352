// Package dispatch implements the node-wide Dispatcher (spec §4.8): it
// owns this node's identity, the service registry, the live
// session-id -> session.Session map, and the handshake driver that
// turns a freshly connected wire.Wire into a Session. Grounded on
// profiles/internal/rpc/stream/vc/vc.go's HandshakeDialedVC/
// HandshakeAcceptedVC send-then-block-for-response shape, re-targeted
// at this spec's single-round SyncSession Control exchange.
package dispatch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/torao/asterisque-go/pipe"
	"github.com/torao/asterisque-go/session"
	"github.com/torao/asterisque-go/value"
	"v.io/x/lib/vlog"
)

// Executor runs a Service invocation. The default GoExecutor spawns a
// goroutine per call; a test or an embedder with its own worker pool
// can supply another implementation (spec §4.8 "Node-wide coordinator
// owning ... Executor").
type Executor interface {
	Run(fn func())
}

// GoExecutor runs each task on its own goroutine.
type GoExecutor struct{}

// Run implements Executor.
func (GoExecutor) Run(fn func()) { go fn() }

// Dispatcher is the node-wide coordinator (spec §4.8).
type Dispatcher struct {
	nodeID   uuid.UUID
	registry *Registry
	executor Executor
	codec    value.Codec

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
}

// New returns a Dispatcher identified by nodeID, using exec to run
// Service invocations (nil selects GoExecutor).
func New(nodeID uuid.UUID, exec Executor) *Dispatcher {
	if exec == nil {
		exec = GoExecutor{}
	}
	return &Dispatcher{
		nodeID:   nodeID,
		registry: NewRegistry(),
		executor: exec,
		sessions: make(map[uuid.UUID]*session.Session),
	}
}

// NodeID is this Dispatcher's node identity, carried in every handshake
// (spec §4.8 step 2).
func (d *Dispatcher) NodeID() uuid.UUID { return d.nodeID }

// Codec is this Dispatcher's VariableCodec, so Service authors can
// convert between value.Value and native Go types without constructing
// their own Codec. Sessions do not hold a Codec of their own.
func (d *Dispatcher) Codec() value.Codec { return d.codec }

// Registry exposes the service_id -> session.Service table (spec §4.8
// "Dispatcher also exposes services.set/get/remove").
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Sessions returns a snapshot of the live sessions keyed by session-id.
func (d *Dispatcher) Sessions() map[uuid.UUID]*session.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uuid.UUID]*session.Session, len(d.sessions))
	for k, v := range d.sessions {
		out[k] = v
	}
	return out
}

func (d *Dispatcher) hasSession(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sessions[id]
	return ok
}

func (d *Dispatcher) addSession(id uuid.UUID, s *session.Session) {
	d.mu.Lock()
	d.sessions[id] = s
	d.mu.Unlock()
}

func (d *Dispatcher) removeSession(id uuid.UUID) {
	d.mu.Lock()
	delete(d.sessions, id)
	d.mu.Unlock()
}

// Dispatch implements session.Dispatcher: it looks serviceID up in the
// registry and, on the Executor, invokes the Service and resolves p
// with its result (spec §4.7 "Open -> PipeSpace.accept; dispatch via
// Service.invoke in the Executor"). A serviceID with no registered
// Service fails the pipe with ServiceUndefined; a Service that returns
// an Abort fails the pipe with that Abort's code/message instead of
// FunctionFailed verbatim, since a Service is in the best position to
// distinguish FunctionUndefined/FunctionFailed/FunctionCannotReceiveBlock.
func (d *Dispatcher) Dispatch(ctx context.Context, serviceID string, p *pipe.Pipe) {
	svc, ok := d.registry.Get(serviceID)
	if !ok {
		vlog.VI(1).Infof("dispatch: no service registered for %q", serviceID)
		p.CloseFailure(pipe.ServiceUndefined, "service "+serviceID+" is not registered")
		return
	}
	d.executor.Run(func() {
		result, abort := svc(ctx, p)
		if abort != nil {
			p.CloseFailure(abort.Code, abort.Message)
			return
		}
		p.CloseSuccess(result)
	})
}
