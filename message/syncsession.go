package message

import (
	"bytes"

	"v.io/v23/verror"
)

// ProtocolVersion is the only handshake version this module speaks.
const ProtocolVersion uint16 = 0x0100

// MaxServiceIDLen is the largest a SyncSessionBody.ServiceID may be
// (spec §6).
const MaxServiceIDLen = 255

// SyncSessionBody is the fixed, value-codec-independent layout carried
// as a Control{Code: SyncSession}.Data (spec §4.1, §6). It is parsed
// separately from the rest of the MessageCodec because its fields are
// plain fixed-width/length-prefixed primitives, not Values.
type SyncSessionBody struct {
	Version        uint16
	NodeID         [16]byte
	SessionID      [16]byte // zero when sent by the secondary endpoint
	ServiceID      string
	UTCMillis      int64
	PingSeconds    int32
	SessionTimeout int32
}

// EncodeSyncSessionBody writes body's fixed layout. It fails with
// ErrCodec if ServiceID exceeds MaxServiceIDLen bytes.
func EncodeSyncSessionBody(body SyncSessionBody) ([]byte, error) {
	if len(body.ServiceID) > MaxServiceIDLen {
		return nil, verror.New(ErrCodec, nil, "service-id exceeds", MaxServiceIDLen, "bytes")
	}
	w := new(bytes.Buffer)
	if err := writeUint16(w, body.Version); err != nil {
		return nil, err
	}
	if err := writeUUID(w, body.NodeID); err != nil {
		return nil, err
	}
	if err := writeUUID(w, body.SessionID); err != nil {
		return nil, err
	}
	if err := writeString8(w, body.ServiceID); err != nil {
		return nil, err
	}
	if err := writeInt64(w, body.UTCMillis); err != nil {
		return nil, err
	}
	if err := writeInt32(w, body.PingSeconds); err != nil {
		return nil, err
	}
	if err := writeInt32(w, body.SessionTimeout); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeSyncSessionBody parses buf per the §6 fixed layout. It fails
// with ErrCodec if buf is shorter than the minimum layout or the
// declared service-id length exceeds the remaining bytes.
func DecodeSyncSessionBody(buf []byte) (SyncSessionBody, error) {
	c := &cursor{buf: buf}
	var body SyncSessionBody
	var err error
	if body.Version, err = c.readUint16(); err != nil {
		return body, shortToCodec(err)
	}
	if body.NodeID, err = c.readUUID(); err != nil {
		return body, shortToCodec(err)
	}
	if body.SessionID, err = c.readUUID(); err != nil {
		return body, shortToCodec(err)
	}
	serviceID, err := c.readBytes8()
	if err != nil {
		return body, shortToCodec(err)
	}
	body.ServiceID = string(serviceID)
	if body.UTCMillis, err = c.readInt64(); err != nil {
		return body, shortToCodec(err)
	}
	if body.PingSeconds, err = c.readInt32(); err != nil {
		return body, shortToCodec(err)
	}
	if body.SessionTimeout, err = c.readInt32(); err != nil {
		return body, shortToCodec(err)
	}
	return body, nil
}

// shortToCodec turns the cursor's "need more bytes" signal into a hard
// ErrCodec: unlike a top-level Message frame, a SyncSessionBody is
// parsed only after its enclosing Control's length-prefixed Data has
// already been fully buffered, so a short read here means the body
// itself is malformed, not merely incomplete.
func shortToCodec(err error) error {
	if IsShortBuffer(err) {
		return verror.New(ErrCodec, nil, "SyncSessionBody shorter than minimum layout")
	}
	return err
}
