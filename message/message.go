// Package message implements the MessageCodec: the wire framing for the
// four kinds of Message that flow over a Wire (spec §3, §4.1).
package message

import "github.com/torao/asterisque-go/value"

// Kind identifies which of the four Message variants a frame carries;
// it is also the first byte written on the wire (spec §4.1).
type Kind byte

const (
	KindControl Kind = '*'
	KindOpen    Kind = '('
	KindClose   Kind = ')'
	KindBlock   Kind = '#'
)

// Message is the tagged sum {Open, Close, Block, Control}. Every
// non-Control variant carries a nonzero pipe-id; Control carries none.
type Message interface {
	Kind() Kind
}

// Open starts a call to FunctionID on a newly allocated pipe.
type Open struct {
	PipeID     uint16
	Priority   int8
	FunctionID uint16
	Params     []value.Value
}

func (*Open) Kind() Kind { return KindOpen }

// Close is the terminal message of a pipe in one direction. Exactly one
// of the Ok/Err halves is meaningful, selected by Ok.
type Close struct {
	PipeID  uint16
	Ok      bool
	Result  value.Value // meaningful iff Ok
	Code    int32       // meaningful iff !Ok
	Message string      // meaningful iff !Ok
}

func (*Close) Kind() Kind { return KindClose }

// CloseOk builds a successful Close.
func CloseOk(pipeID uint16, result value.Value) *Close {
	return &Close{PipeID: pipeID, Ok: true, Result: result}
}

// CloseErr builds a failed Close.
func CloseErr(pipeID uint16, code int32, msg string) *Close {
	return &Close{PipeID: pipeID, Ok: false, Code: code, Message: msg}
}

// MaxBlockPayload is the largest payload a single Block may carry
// (spec §3, §8 boundary tests).
const MaxBlockPayload = 61439

// MaxLoss is the largest value Block.Loss may carry; it occupies the
// low 7 bits of the status byte alongside the eof flag (spec §4.1).
const MaxLoss = 127

// Block carries streaming data between a pipe's Open and Close. Loss is
// a drop-tolerance hint for a future relay; this module stores and
// round-trips it but never consults it (spec §9 open question).
type Block struct {
	PipeID  uint16
	EOF     bool
	Loss    uint8
	Payload []byte
}

func (*Block) Kind() Kind { return KindBlock }

// ControlCode identifies the purpose of a Control message.
type ControlCode uint8

const (
	// SyncSession carries the handshake body described in §6.
	SyncSession ControlCode = 0x51 // 'Q'
	// CloseSession signals orderly session teardown; its Data is empty.
	CloseSession ControlCode = 0x43 // 'C'
	// endOfMessage is an internal MessageQueue sentinel (spec §4.3);
	// it is never encoded onto the wire.
	endOfMessage ControlCode = 0xFF
)

// Control carries session-level signaling outside any pipe.
type Control struct {
	Code ControlCode
	Data []byte
}

func (*Control) Kind() Kind { return KindControl }
