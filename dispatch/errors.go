package dispatch

import "v.io/v23/verror"

const pkgPath = "github.com/torao/asterisque-go/dispatch"

func reg(id, msg string) verror.IDAction {
	return verror.Register(verror.ID(pkgPath+id), verror.NoRetry, msg)
}

var (
	// ErrProtocolViolation is returned when the peer's first inbound
	// Message isn't Control{SyncSession}, or its node-id doesn't match
	// the TLS session (spec §4.8 steps 3-4).
	ErrProtocolViolation = reg(".ErrProtocolViolation", "{1:}{2:} handshake protocol violation")
	// ErrSessionIDRejected is returned when the negotiated session-id is
	// the zero UUID or already present in the session map (spec §4.8 step 5).
	ErrSessionIDRejected = reg(".ErrSessionIDRejected", "{1:}{2:} session-id rejected")
)
