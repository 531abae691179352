package message

import "v.io/v23/verror"

const pkgPath = "github.com/torao/asterisque-go/message"

func reg(id, msg string) verror.IDAction {
	return verror.Register(verror.ID(pkgPath+id), verror.NoRetry, msg)
}

var (
	// ErrCodec reports a malformed or oversize frame, or an unknown
	// message-kind tag. Fatal to the session (spec §7).
	ErrCodec = reg(".errCodec", "malformed or oversize message frame{:3}")

	// ErrProtocolViolation reports a handshake mismatch, wrong-side
	// pipe-id, or unexpected Control message. Fatal to the session.
	ErrProtocolViolation = reg(".errProtocolViolation", "protocol violation{:3}")
)
