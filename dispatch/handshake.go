package dispatch

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/google/uuid"
	"github.com/torao/asterisque-go/message"
	"github.com/torao/asterisque-go/session"
	"github.com/torao/asterisque-go/wire"
	"v.io/v23/verror"
	"v.io/x/lib/vlog"
)

// VerifyPeer optionally checks a handshake's claimed remote node-id
// against the Wire's TLS session (spec §4.8 step 4, "TLS peer cert
// subject matches remote node-id"). A nil VerifyPeer skips the check,
// which is the only option until a trust.TrustContext is wired in by
// the caller (trust/envelope verification is a separate, parallel leaf
// package — see DESIGN.md).
type VerifyPeer func(remoteNodeID uuid.UUID, tlsState *tls.ConnectionState) error

// BindResult is what a successful Bind produces: the installed Session
// plus the peer's advertised identity from its SyncSession.
type BindResult struct {
	Session         *session.Session
	RemoteNodeID    uuid.UUID
	RemoteServiceID string
}

// Bind drives the handshake described in spec §4.8 over w, advertising
// serviceID as the service this node will route w's inbound Opens to.
// It blocks until the handshake completes or ctx is done.
func (d *Dispatcher) Bind(ctx context.Context, w wire.Wire, serviceID string, ping, timeout int32, verify VerifyPeer) (*BindResult, error) {
	var localSessionID uuid.UUID
	if w.IsPrimary() {
		localSessionID = d.freshSessionID()
	}

	outBody := message.SyncSessionBody{
		Version:        message.ProtocolVersion,
		NodeID:         d.nodeID,
		SessionID:      localSessionID,
		ServiceID:      serviceID,
		UTCMillis:      nowMillis(),
		PingSeconds:    ping,
		SessionTimeout: timeout,
	}
	data, err := message.EncodeSyncSessionBody(outBody)
	if err != nil {
		return nil, err
	}
	if err := w.Outbound().Offer(&message.Control{Code: message.SyncSession, Data: data}); err != nil {
		w.Close()
		return nil, err
	}

	msg, ok, err := w.Inbound().Poll(ctx)
	if err != nil {
		w.Close()
		return nil, err
	}
	if !ok {
		w.Close()
		return nil, verror.New(ErrProtocolViolation, nil, "wire closed before handshake completed")
	}
	ctrl, isControl := msg.(*message.Control)
	if !isControl || ctrl.Code != message.SyncSession {
		w.Close()
		return nil, verror.New(ErrProtocolViolation, nil, "first inbound message was not Control{SyncSession}")
	}
	inBody, err := message.DecodeSyncSessionBody(ctrl.Data)
	if err != nil {
		w.Close()
		return nil, err
	}

	if verify != nil {
		if err := verify(inBody.NodeID, w.TLSSession()); err != nil {
			w.Close()
			return nil, verror.New(ErrProtocolViolation, nil, "peer identity verification failed", err)
		}
	}

	// Whichever side is primary generated the session-id at step 1; the
	// secondary side learns it only now, from the primary's message.
	sessionID := localSessionID
	if !w.IsPrimary() {
		sessionID = inBody.SessionID
	}
	if sessionID == uuid.Nil || d.hasSession(sessionID) {
		w.Outbound().Offer(&message.Control{Code: message.CloseSession})
		w.Close()
		return nil, verror.New(ErrSessionIDRejected, nil, sessionID)
	}

	s := session.New(w, sessionID, w.IsPrimary(), serviceID, ping, timeout, d)
	d.addSession(sessionID, s)
	s.AddListener(sessionClosedListener{d: d, id: sessionID})

	vlog.VI(1).Infof("dispatch: session %v bound (primary=%v, service=%q, peer=%q)", sessionID, w.IsPrimary(), serviceID, inBody.ServiceID)
	return &BindResult{Session: s, RemoteNodeID: inBody.NodeID, RemoteServiceID: inBody.ServiceID}, nil
}

type sessionClosedListener struct {
	d  *Dispatcher
	id uuid.UUID
}

func (l sessionClosedListener) SessionClosed(*session.Session) { l.d.removeSession(l.id) }

// freshSessionID returns a UUID not already present in the session map.
// Collisions against a 122-bit random space are astronomically
// unlikely; the loop exists purely so the guarantee is exact rather
// than probabilistic (spec §4.8 step 1).
func (d *Dispatcher) freshSessionID() uuid.UUID {
	for {
		id := uuid.New()
		if id != uuid.Nil && !d.hasSession(id) {
			return id
		}
	}
}

// nowMillis returns the current UTC time in milliseconds for the
// SyncSession timestamp; it is a package variable so it can be replaced.
var nowMillis = func() int64 { return time.Now().UnixMilli() }
