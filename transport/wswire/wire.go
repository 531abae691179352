// Package wswire is the concrete wire.Wire transport: WebSocket over
// TLS, the only transport binding spec §1 names ("Out of scope
// (external collaborators): the concrete transport binding"). Grounded
// on the teacher's own use of gorilla/websocket in
// profiles/internal/lib/websocket/conn_test.go (the only websocket
// transport library anywhere in the pack) and the dial/listen split
// lib/websocket/hybrid.go demonstrates, here reworked around a single
// full-duplex websocket.Conn rather than a raw net.Conn multiplexer.
package wswire

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/torao/asterisque-go/message"
	"github.com/torao/asterisque-go/wire"
	"v.io/x/lib/vlog"
)

// DefaultQueueCapacity is the Queue capacity used for both directions
// unless a caller overrides it.
const DefaultQueueCapacity = 256

// Wire adapts a *websocket.Conn to wire.Wire: a reader goroutine decodes
// inbound binary frames into Wire.inbound, a writer goroutine encodes
// Wire.outbound into binary frames, matching the "Wire is an opaque
// duplex endpoint" contract (spec §4.4) regardless of what carries it.
type Wire struct {
	conn    *websocket.Conn
	primary bool
	in, out *wire.Queue

	closeOnce sync.Once
}

// Dial is the conventionally primary side of a handshake (spec §4.5
// designates one side primary; this port's convention is that the
// party dialing in is primary, the party accepting is secondary —
// documented in DESIGN.md as an Open Question resolution, since the
// spec leaves the choice to the transport binding).
func Dial(ctx context.Context, url string, tlsConfig *tls.Config) (*Wire, error) {
	dialer := &websocket.Dialer{TLSClientConfig: tlsConfig}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newWire(conn, true), nil
}

// Upgrader accepts inbound WebSocket connections as the secondary side
// of the handshake. It wraps websocket.Upgrader so a caller can plug
// Accept directly into an http.Handler.
type Upgrader struct {
	upgrader websocket.Upgrader
}

// NewUpgrader returns an Upgrader.
func NewUpgrader() *Upgrader {
	return &Upgrader{upgrader: websocket.Upgrader{ReadBufferSize: message.MaxFrameSize, WriteBufferSize: message.MaxFrameSize}}
}

// Accept upgrades w/r to a WebSocket connection and returns the
// resulting Wire.
func (u *Upgrader) Accept(w http.ResponseWriter, r *http.Request) (*Wire, error) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newWire(conn, false), nil
}

func newWire(conn *websocket.Conn, primary bool) *Wire {
	w := &Wire{
		conn:    conn,
		primary: primary,
		in:      wire.NewQueue(DefaultQueueCapacity),
		out:     wire.NewQueue(DefaultQueueCapacity),
	}
	go w.readPump()
	go w.writePump()
	return w
}

func (w *Wire) readPump() {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			vlog.VI(1).Infof("wswire: read error, closing: %v", err)
			w.Close()
			return
		}
		msg, _, err := message.Decode(data)
		if err != nil {
			vlog.Errorf("wswire: decode error, closing: %v", err)
			w.Close()
			return
		}
		if offerErr := w.in.Offer(msg); offerErr != nil {
			return
		}
	}
}

func (w *Wire) writePump() {
	ctx := context.Background()
	for {
		msg, ok, err := w.out.Poll(ctx)
		if err != nil || !ok {
			w.Close()
			return
		}
		buf, err := message.Encode(nil, msg)
		if err != nil {
			vlog.Errorf("wswire: encode error, dropping message: %v", err)
			continue
		}
		if err := w.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			vlog.VI(1).Infof("wswire: write error, closing: %v", err)
			w.Close()
			return
		}
	}
}

// Inbound implements wire.Wire.
func (w *Wire) Inbound() *wire.Queue { return w.in }

// Outbound implements wire.Wire.
func (w *Wire) Outbound() *wire.Queue { return w.out }

// LocalAddr implements wire.Wire.
func (w *Wire) LocalAddr() net.Addr { return w.conn.LocalAddr() }

// RemoteAddr implements wire.Wire.
func (w *Wire) RemoteAddr() net.Addr { return w.conn.RemoteAddr() }

// IsPrimary implements wire.Wire.
func (w *Wire) IsPrimary() bool { return w.primary }

// TLSSession implements wire.Wire.
func (w *Wire) TLSSession() *tls.ConnectionState {
	nc := w.conn.UnderlyingConn()
	if tc, ok := nc.(*tls.Conn); ok {
		state := tc.ConnectionState()
		return &state
	}
	return nil
}

// Close tears down the underlying connection and both Queues. Safe to
// call more than once or concurrently with the pumps observing the
// resulting error.
func (w *Wire) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.conn.Close()
		w.in.Close()
		w.out.Close()
	})
	return err
}
