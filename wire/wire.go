package wire

import (
	"crypto/tls"
	"net"
)

// Wire is an opaque duplex endpoint: messages in, messages out, may
// fail, carries a peer certificate (spec §4.4). The concrete transport
// is an external collaborator; the core treats any Wire identically
// regardless of what carries it (a TLS socket, an in-process pipe used
// by tests, a websocket).
type Wire interface {
	// Inbound is drained by the owning Session; messages the peer sent
	// arrive here.
	Inbound() *Queue
	// Outbound is written to by the owning Session (through a Latch);
	// messages queued here are sent to the peer.
	Outbound() *Queue

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// IsPrimary reports which side of the handshake's id-bit
	// partitioning this endpoint takes (spec §4.5).
	IsPrimary() bool

	// TLSSession reports the negotiated TLS connection state, or nil if
	// this Wire is not backed by TLS (e.g. an in-process test pipe).
	TLSSession() *tls.ConnectionState

	// Close tears down the transport. Idempotent.
	Close() error
}
