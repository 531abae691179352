// Package stub replaces the reflective proxy the original source used
// to bind a language-native interface to remote calls (spec §9 design
// note "Coroutine/Future control flow"): instead of a dynamic proxy
// dispatching on reflected method names, a caller supplies an explicit
// function-id table and gets back per-call wrappers over Session.Open.
// There is no direct teacher analogue — the teacher binds services via
// VDL-generated code, an external-collaborator concern per this spec's
// Non-goals around reflective/dynamic proxy generation — so this
// package is built from the spec's own description alone.
package stub

import (
	"context"

	"github.com/torao/asterisque-go/pipe"
	"github.com/torao/asterisque-go/session"
	"github.com/torao/asterisque-go/value"
)

// FunctionDescriptor describes one remotely-callable function: the
// priority its Open frame should carry, how to encode the
// caller's native arguments into wire Values, and how to decode the
// call's result back into a native value.
type FunctionDescriptor struct {
	Priority     int8
	FunctionID   uint16
	EncodeParams func(args ...interface{}) ([]value.Value, error)
	DecodeResult func(value.Value) (interface{}, error)
}

// Stub is a typed client over one Session, generated from a
// function-id table rather than a reflective interface proxy.
type Stub struct {
	session   *session.Session
	functions map[string]FunctionDescriptor
}

// New returns a Stub over s, dispatching by the names used as keys
// into functions (typically the method names a code generator would
// have produced).
func New(s *session.Session, functions map[string]FunctionDescriptor) *Stub {
	return &Stub{session: s, functions: functions}
}

// Call opens a pipe for the named function, sends params, and waits for
// the result. It does not support streaming Blocks — callers needing
// to stream should use Open directly and drive the returned *pipe.Pipe.
func (s *Stub) Call(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	fd, ok := s.functions[name]
	if !ok {
		return nil, &pipe.Abort{Code: pipe.FunctionUndefined, Message: "stub: no such function " + name}
	}
	params, err := fd.EncodeParams(args...)
	if err != nil {
		return nil, err
	}
	p, err := s.session.Open(fd.Priority, fd.FunctionID, params, false)
	if err != nil {
		return nil, err
	}
	result, err := p.Future().Wait(ctx)
	if err != nil {
		return nil, err
	}
	return fd.DecodeResult(result)
}

// Open opens a pipe for the named function without waiting for its
// result, for callers that need to stream Blocks before or after the
// call completes.
func (s *Stub) Open(name string, streamRecv bool, args ...interface{}) (*pipe.Pipe, error) {
	fd, ok := s.functions[name]
	if !ok {
		return nil, &pipe.Abort{Code: pipe.FunctionUndefined, Message: "stub: no such function " + name}
	}
	params, err := fd.EncodeParams(args...)
	if err != nil {
		return nil, err
	}
	return s.session.Open(fd.Priority, fd.FunctionID, params, streamRecv)
}
