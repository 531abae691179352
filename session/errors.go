package session

import "v.io/v23/verror"

const pkgPath = "github.com/torao/asterisque-go/session"

func reg(id, msg string) verror.IDAction {
	return verror.Register(verror.ID(pkgPath+id), verror.NoRetry, msg)
}

var (
	// ErrProtocolViolation reports a Control{SyncSession} received after
	// the handshake, or any other message shape the wire protocol
	// forbids once a Session exists (spec §4.7, §7). Fatal to the
	// session.
	ErrProtocolViolation = reg(".errProtocolViolation", "protocol violation{:3}")

	// ErrSessionClosed reports Open called after Close.
	ErrSessionClosed = reg(".errSessionClosed", "session is closed{:3}")
)
