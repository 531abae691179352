package pipe

import "v.io/v23/verror"

const pkgPath = "github.com/torao/asterisque-go/pipe"

func reg(id, msg string) verror.IDAction {
	return verror.Register(verror.ID(pkgPath+id), verror.NoRetry, msg)
}

var (
	// ErrSpaceClosed reports Create/Accept called after Space.Close.
	ErrSpaceClosed = reg(".errSpaceClosed", "pipe space is closed{:3}")

	// ErrIDsExhausted reports that Create could not find a free id after
	// the bounded number of collision retries (spec §4.5).
	ErrIDsExhausted = reg(".errIDsExhausted", "no free pipe ids{:3}")

	// ErrProtocolError reports a duplicate pipe-id on Accept: a
	// survivable error local to the one Open, not fatal to the session
	// (spec §7 "ProtocolError").
	ErrProtocolError = reg(".errProtocolError", "protocol error{:3}")

	// ErrWrongSidePipeID reports an Accept whose pipe-id's primary bit
	// doesn't match the accepting side's role. Unlike ErrProtocolError,
	// this is a ProtocolViolation (spec §7, §8 scenario 5): the peer has
	// violated the id-space partitioning itself, so the caller must tear
	// the whole session down rather than just fail the one Open.
	ErrWrongSidePipeID = reg(".errWrongSidePipeID", "wrong-side pipe-id{:3}")
)

// Abort codes (spec §4.6). These are wire-visible numeric codes carried
// in a Close's Code field, not verror.IDActions — a peer on any
// implementation must be able to interpret them without this package's
// error registry.
const (
	Success                    int32 = 0
	Unexpected                 int32 = -1
	SessionClosing             int32 = -2
	ServiceUndefined           int32 = 100
	FunctionUndefined          int32 = 101
	FunctionFailed             int32 = 102
	FunctionCannotReceiveBlock int32 = 103
	DestinationPipeUnreachable int32 = 104
)

// Abort is the pipe-scoped error value surfaced on a Future when a call
// fails (spec §4.6, §7).
type Abort struct {
	Code    int32
	Message string
}

func (a *Abort) Error() string { return a.Message }
