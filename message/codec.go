package message

import (
	"bytes"

	"v.io/v23/verror"

	"github.com/torao/asterisque-go/value"
)

// MaxFrameSize is the largest encoded frame this codec will produce or
// accept, chosen to stay inside IPv4 payload headroom (spec §3).
const MaxFrameSize = 65507

// Encode writes msg's wire encoding to buf and returns the result.
// Encode fails with ErrCodec if msg is structurally invalid (Block
// payload too large, Block.Loss out of range) or if the resulting
// frame would exceed MaxFrameSize.
func Encode(buf []byte, msg Message) ([]byte, error) {
	w := bytes.NewBuffer(buf)
	if err := w.WriteByte(byte(msg.Kind())); err != nil {
		return nil, err
	}
	if err := encodeBody(w, msg); err != nil {
		return nil, err
	}
	if w.Len() > MaxFrameSize {
		return nil, verror.New(ErrCodec, nil, "encoded frame exceeds", MaxFrameSize, "bytes")
	}
	return w.Bytes(), nil
}

func encodeBody(w *bytes.Buffer, msg Message) error {
	switch m := msg.(type) {
	case *Open:
		return encodeOpen(w, m)
	case *Close:
		return encodeClose(w, m)
	case *Block:
		return encodeBlock(w, m)
	case *Control:
		return encodeControl(w, m)
	default:
		return verror.New(ErrCodec, nil, "unrecognized message type")
	}
}

func encodeOpen(w *bytes.Buffer, m *Open) error {
	if err := writeUint16(w, m.PipeID); err != nil {
		return err
	}
	if err := writeInt8(w, m.Priority); err != nil {
		return err
	}
	if err := writeUint16(w, m.FunctionID); err != nil {
		return err
	}
	return writeParams(w, m.Params)
}

func writeParams(w *bytes.Buffer, params []value.Value) error {
	if len(params) > value.MaxCardinality {
		return verror.New(ErrCodec, nil, "params list exceeds 65535 elements")
	}
	if err := writeUint16(w, uint16(len(params))); err != nil {
		return err
	}
	for _, p := range params {
		enc, err := value.Encode(nil, p)
		if err != nil {
			return err
		}
		if _, err := w.Write(enc); err != nil {
			return err
		}
	}
	return nil
}

func encodeClose(w *bytes.Buffer, m *Close) error {
	if err := writeUint16(w, m.PipeID); err != nil {
		return err
	}
	if m.Ok {
		if err := writeUint8(w, uint8(value.TagTrue)); err != nil {
			return err
		}
		enc, err := value.Encode(nil, m.Result)
		if err != nil {
			return err
		}
		_, err = w.Write(enc)
		return err
	}
	if err := writeUint8(w, uint8(value.TagFalse)); err != nil {
		return err
	}
	if err := writeInt32(w, m.Code); err != nil {
		return err
	}
	return writeString16(w, m.Message)
}

func encodeBlock(w *bytes.Buffer, m *Block) error {
	if len(m.Payload) > MaxBlockPayload {
		return verror.New(ErrCodec, nil, "block payload exceeds", MaxBlockPayload, "bytes")
	}
	if m.Loss > MaxLoss {
		return verror.New(ErrCodec, nil, "block loss hint exceeds", MaxLoss)
	}
	if err := writeUint16(w, m.PipeID); err != nil {
		return err
	}
	status := m.Loss & 0x7F
	if m.EOF {
		status |= 0x80
	}
	if err := writeUint8(w, status); err != nil {
		return err
	}
	return writeBytes16(w, m.Payload)
}

func encodeControl(w *bytes.Buffer, m *Control) error {
	if m.Code == endOfMessage {
		return verror.New(ErrCodec, nil, "endOfMessage is an internal sentinel, not encodable")
	}
	if err := writeUint8(w, uint8(m.Code)); err != nil {
		return err
	}
	return writeBytes16(w, m.Data)
}

// Decode reads one Message starting at buf[0]. It returns the decoded
// message and the number of bytes consumed on success. If buf does not
// yet hold a whole frame, it returns a short-buffer error recognized by
// IsShortBuffer; callers treat that as "wait for more bytes", not as a
// CodecError (spec §4.1 "returns None... if the buffer doesn't yet
// contain a whole frame").
func Decode(buf []byte) (Message, int, error) {
	c := &cursor{buf: buf}
	tagByte, err := c.readByte()
	if err != nil {
		return nil, 0, err
	}
	var msg Message
	switch Kind(tagByte) {
	case KindOpen:
		msg, err = decodeOpen(c)
	case KindClose:
		msg, err = decodeClose(c)
	case KindBlock:
		msg, err = decodeBlock(c)
	case KindControl:
		msg, err = decodeControl(c)
	default:
		return nil, 0, verror.New(ErrCodec, nil, "unknown message tag", tagByte)
	}
	if err != nil {
		return nil, 0, err
	}
	return msg, c.pos, nil
}

func decodeOpen(c *cursor) (*Open, error) {
	pipeID, err := c.readUint16()
	if err != nil {
		return nil, err
	}
	if pipeID == 0 {
		return nil, verror.New(ErrCodec, nil, "Open.pipe_id must be nonzero")
	}
	priorityByte, err := c.readByte()
	if err != nil {
		return nil, err
	}
	functionID, err := c.readUint16()
	if err != nil {
		return nil, err
	}
	params, err := readParams(c)
	if err != nil {
		return nil, err
	}
	return &Open{
		PipeID:     pipeID,
		Priority:   int8(priorityByte),
		FunctionID: functionID,
		Params:     params,
	}, nil
}

func readParams(c *cursor) ([]value.Value, error) {
	n, err := c.readUint16()
	if err != nil {
		return nil, err
	}
	params := make([]value.Value, 0, n)
	for i := 0; i < int(n); i++ {
		v, consumed, err := value.Decode(c.buf[c.pos:])
		if err != nil {
			if value.IsShortBuffer(err) {
				return nil, errShortBuffer
			}
			return nil, err
		}
		c.pos += consumed
		params = append(params, v)
	}
	return params, nil
}

func decodeClose(c *cursor) (*Close, error) {
	pipeID, err := c.readUint16()
	if err != nil {
		return nil, err
	}
	if pipeID == 0 {
		return nil, verror.New(ErrCodec, nil, "Close.pipe_id must be nonzero")
	}
	tagByte, err := c.readByte()
	if err != nil {
		return nil, err
	}
	switch value.Tag(tagByte) {
	case value.TagTrue:
		v, consumed, err := value.Decode(c.buf[c.pos:])
		if err != nil {
			if value.IsShortBuffer(err) {
				return nil, errShortBuffer
			}
			return nil, err
		}
		c.pos += consumed
		return CloseOk(pipeID, v), nil
	case value.TagFalse:
		code, err := c.readInt32()
		if err != nil {
			return nil, err
		}
		msg, err := readString16(c)
		if err != nil {
			return nil, err
		}
		return CloseErr(pipeID, code, msg), nil
	default:
		return nil, verror.New(ErrCodec, nil, "invalid boolean tag inside Close", tagByte)
	}
}

func readString16(c *cursor) (string, error) {
	b, err := c.readBytes16()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeBlock(c *cursor) (*Block, error) {
	pipeID, err := c.readUint16()
	if err != nil {
		return nil, err
	}
	if pipeID == 0 {
		return nil, verror.New(ErrCodec, nil, "Block.pipe_id must be nonzero")
	}
	status, err := c.readByte()
	if err != nil {
		return nil, err
	}
	payload, err := c.readBytes16()
	if err != nil {
		return nil, err
	}
	return &Block{
		PipeID:  pipeID,
		EOF:     status&0x80 != 0,
		Loss:    status & 0x7F,
		Payload: payload,
	}, nil
}

func decodeControl(c *cursor) (*Control, error) {
	code, err := c.readByte()
	if err != nil {
		return nil, err
	}
	data, err := c.readBytes16()
	if err != nil {
		return nil, err
	}
	return &Control{Code: ControlCode(code), Data: data}, nil
}
