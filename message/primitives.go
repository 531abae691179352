package message

import (
	"bytes"
	"encoding/binary"
)

// writeUint8 and friends mirror the style of the teacher's writeInt/
// writeString helpers in control.go: one small function per primitive
// wire type, called in field order from each kind's encoder.

func writeUint8(w *bytes.Buffer, v uint8) error {
	return w.WriteByte(v)
}

func writeInt8(w *bytes.Buffer, v int8) error {
	return w.WriteByte(byte(v))
}

func writeUint16(w *bytes.Buffer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeInt32(w *bytes.Buffer, v int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	_, err := w.Write(b[:])
	return err
}

func writeInt64(w *bytes.Buffer, v int64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	_, err := w.Write(b[:])
	return err
}

func writeUUID(w *bytes.Buffer, u [16]byte) error {
	_, err := w.Write(u[:])
	return err
}

// writeBytes16 writes a u16 length prefix followed by b. Callers must
// have already checked len(b) fits in a uint16.
func writeBytes16(w *bytes.Buffer, b []byte) error {
	if err := writeUint16(w, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// writeBytes8 writes a u8 length prefix followed by b, used for the
// SyncSession service-id field (spec §4.1).
func writeBytes8(w *bytes.Buffer, b []byte) error {
	if err := writeUint8(w, uint8(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeString16(w *bytes.Buffer, s string) error {
	return writeBytes16(w, []byte(s))
}

func writeString8(w *bytes.Buffer, s string) error {
	return writeBytes8(w, []byte(s))
}

// cursor walks a read-only buffer left to right, reporting errShortBuffer
// rather than an io.EOF-style error so callers can distinguish "not a
// whole frame yet" from a malformed frame (spec §4.1 decode contract).
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) readByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, errShortBuffer
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) readN(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, errShortBuffer
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) readUint16() (uint16, error) {
	b, err := c.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursor) readInt32() (int32, error) {
	b, err := c.readN(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (c *cursor) readInt64() (int64, error) {
	b, err := c.readN(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (c *cursor) readUUID() ([16]byte, error) {
	var u [16]byte
	b, err := c.readN(16)
	if err != nil {
		return u, err
	}
	copy(u[:], b)
	return u, nil
}

func (c *cursor) readBytes16() ([]byte, error) {
	n, err := c.readUint16()
	if err != nil {
		return nil, err
	}
	b, err := c.readN(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (c *cursor) readBytes8() ([]byte, error) {
	n, err := c.readByte()
	if err != nil {
		return nil, err
	}
	b, err := c.readN(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// errShortBuffer signals "the buffer does not yet hold a whole frame",
// distinct from a CodecError (malformed frame).
var errShortBuffer = &shortBufferError{}

type shortBufferError struct{}

func (*shortBufferError) Error() string { return "message: short buffer" }

// IsShortBuffer reports whether err signals an incomplete (not
// malformed) buffer.
func IsShortBuffer(err error) bool {
	_, ok := err.(*shortBufferError)
	return ok
}
