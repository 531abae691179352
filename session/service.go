package session

import (
	"context"

	"github.com/torao/asterisque-go/pipe"
	"github.com/torao/asterisque-go/value"
)

// Service is the process-wide callable a service-id resolves to (spec
// §3 "Service registry", §6 "Service contract"): given the Pipe an Open
// arrived on, it returns the call's result or an Abort. A single
// Service typically fans out on p.FunctionID() internally — the
// registry and dispatch machinery only ever see the service-id, never
// individual function-ids.
type Service func(ctx context.Context, p *pipe.Pipe) (value.Value, *pipe.Abort)

// Dispatcher is the narrow handle a Session uses to resolve and invoke
// a Service for an inbound Open, without importing the dispatch
// package (spec §9 design note, applied at the session/dispatch
// boundary the same way it's applied at the pipe/session boundary).
type Dispatcher interface {
	// Dispatch resolves serviceID in the process-wide registry and
	// invokes the Service on p, completing p (CloseSuccess/CloseFailure)
	// when done. It does not block the caller on the Service's result.
	Dispatch(ctx context.Context, serviceID string, p *pipe.Pipe)
}
