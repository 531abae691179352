package value

import (
	"bytes"
	"encoding/binary"
	"math"

	"v.io/v23/verror"
)

// MaxDepth bounds the nesting depth the decoder will walk, protecting
// against stack overflow / unbounded memory on a maliciously deep
// structure (spec §9 "Cyclic or deep graphs").
const MaxDepth = 64

// MaxCardinality is the largest number of elements a List or Map may carry.
const MaxCardinality = 65535

// MaxTupleArity is the largest number of fields a Tuple may carry.
const MaxTupleArity = 255

// Encode appends the wire encoding of v to buf and returns the result. It
// fails with ErrCodec if v (or any of its children) is structurally
// out of range (list/map longer than MaxCardinality, tuple arity over
// MaxTupleArity).
func Encode(buf []byte, v Value) ([]byte, error) {
	w := bytes.NewBuffer(buf)
	if err := encodeInto(w, v, 0); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func encodeInto(w *bytes.Buffer, v Value, depth int) error {
	if depth > MaxDepth {
		return verror.New(ErrDepthExceeded, nil, depth)
	}
	w.WriteByte(byte(v.tag))
	switch v.tag {
	case TagNull, TagTrue, TagFalse:
		return nil
	case TagInt8:
		return w.WriteByte(byte(int8(v.i)))
	case TagInt16:
		return binary.Write(w, binary.BigEndian, int16(v.i))
	case TagInt32:
		return binary.Write(w, binary.BigEndian, int32(v.i))
	case TagInt64:
		return binary.Write(w, binary.BigEndian, v.i)
	case TagFloat32:
		return binary.Write(w, binary.BigEndian, math.Float32bits(float32(v.f)))
	case TagFloat64:
		return binary.Write(w, binary.BigEndian, math.Float64bits(v.f))
	case TagBinary, TagString:
		if len(v.bytes) > MaxCardinality {
			return verror.New(ErrCodec, nil, "binary/string field too long")
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(v.bytes))); err != nil {
			return err
		}
		_, err := w.Write(v.bytes)
		return err
	case TagUUID:
		if len(v.bytes) != 16 {
			return verror.New(ErrCodec, nil, "uuid must be 16 bytes")
		}
		_, err := w.Write(v.bytes)
		return err
	case TagList:
		if len(v.list) > MaxCardinality {
			return verror.New(ErrCodec, nil, "list cardinality exceeds 65535")
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(v.list))); err != nil {
			return err
		}
		for _, child := range v.list {
			if err := encodeInto(w, child, depth+1); err != nil {
				return err
			}
		}
		return nil
	case TagMap:
		if len(v.m) > MaxCardinality {
			return verror.New(ErrCodec, nil, "map cardinality exceeds 65535")
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(v.m))); err != nil {
			return err
		}
		for _, entry := range v.m {
			if err := encodeInto(w, entry.Key, depth+1); err != nil {
				return err
			}
			if err := encodeInto(w, entry.Val, depth+1); err != nil {
				return err
			}
		}
		return nil
	case TagTuple:
		if len(v.tuple) > MaxTupleArity {
			return verror.New(ErrCodec, nil, "tuple arity exceeds 255")
		}
		if err := w.WriteByte(byte(len(v.tuple))); err != nil {
			return err
		}
		if len(v.schema) > 255 {
			return verror.New(ErrCodec, nil, "tuple schema name too long")
		}
		if err := w.WriteByte(byte(len(v.schema))); err != nil {
			return err
		}
		if _, err := w.WriteString(v.schema); err != nil {
			return err
		}
		for _, field := range v.tuple {
			if err := encodeInto(w, field, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return verror.New(ErrCodec, nil, "unknown value tag", v.tag)
	}
}

// Decode reads one Value starting at buf[0], returning the value, the
// number of bytes consumed, and an error. Decode never recurses: List,
// Map and Tuple bodies are walked with an explicit frame stack kept in
// decodeIterative, each push checked against MaxDepth, so a maliciously
// deep wire structure fails with ErrDepthExceeded rather than
// overflowing the goroutine stack.
func Decode(buf []byte) (Value, int, error) {
	c := &cursor{buf: buf}
	v, err := decodeIterative(c)
	if err != nil {
		return Value{}, 0, err
	}
	return v, c.pos, nil
}

// frameKind identifies which container a stack frame is assembling.
type frameKind int

const (
	frameList frameKind = iota
	frameMap
	frameTuple
)

// frame is one container under construction on the decode stack. List
// and Tuple frames accumulate items directly; a Map frame alternates
// key and value, holding the pending key in pendingKey between the two.
type frame struct {
	kind       frameKind
	remaining  int
	items      []Value
	entries    []MapEntry
	pendingKey *Value
	schema     string
}

// decodeIterative is the stack machine behind Decode. It reads one
// value at a time: a scalar tag produces a complete Value immediately;
// a container tag pushes a frame instead of recursing into its
// children. Each completed value (scalar, or a frame that just received
// its last child) is folded into whatever frame is now on top of the
// stack; when the stack empties, that folded value is the whole result.
func decodeIterative(c *cursor) (Value, error) {
	var stack []*frame

	for {
		tagByte, err := c.readByte()
		if err != nil {
			return Value{}, err
		}

		var v Value
		switch Tag(tagByte) {
		case TagNull:
			v = Null()
		case TagTrue:
			v = Bool(true)
		case TagFalse:
			v = Bool(false)
		case TagInt8:
			b, err := c.readByte()
			if err != nil {
				return Value{}, err
			}
			v = Int8(int8(b))
		case TagInt16:
			b, err := c.readN(2)
			if err != nil {
				return Value{}, err
			}
			v = Int16(int16(binary.BigEndian.Uint16(b)))
		case TagInt32:
			b, err := c.readN(4)
			if err != nil {
				return Value{}, err
			}
			v = Int32(int32(binary.BigEndian.Uint32(b)))
		case TagInt64:
			b, err := c.readN(8)
			if err != nil {
				return Value{}, err
			}
			v = Int64(int64(binary.BigEndian.Uint64(b)))
		case TagFloat32:
			b, err := c.readN(4)
			if err != nil {
				return Value{}, err
			}
			v = Float32(math.Float32frombits(binary.BigEndian.Uint32(b)))
		case TagFloat64:
			b, err := c.readN(8)
			if err != nil {
				return Value{}, err
			}
			v = Float64(math.Float64frombits(binary.BigEndian.Uint64(b)))
		case TagBinary, TagString:
			n, err := c.readUint16()
			if err != nil {
				return Value{}, err
			}
			b, err := c.readN(int(n))
			if err != nil {
				return Value{}, err
			}
			cp := append([]byte(nil), b...)
			if Tag(tagByte) == TagBinary {
				v = Binary(cp)
			} else {
				v = Value{tag: TagString, bytes: cp}
			}
		case TagUUID:
			b, err := c.readN(16)
			if err != nil {
				return Value{}, err
			}
			var u [16]byte
			copy(u[:], b)
			v = UUID(u)

		case TagList:
			if len(stack) >= MaxDepth {
				return Value{}, verror.New(ErrDepthExceeded, nil, len(stack))
			}
			n, err := c.readUint16()
			if err != nil {
				return Value{}, err
			}
			if n == 0 {
				v = List(nil)
				break
			}
			stack = append(stack, &frame{kind: frameList, remaining: int(n), items: make([]Value, 0, n)})
			continue

		case TagMap:
			if len(stack) >= MaxDepth {
				return Value{}, verror.New(ErrDepthExceeded, nil, len(stack))
			}
			n, err := c.readUint16()
			if err != nil {
				return Value{}, err
			}
			if n == 0 {
				v = Map(nil)
				break
			}
			stack = append(stack, &frame{kind: frameMap, remaining: int(n), entries: make([]MapEntry, 0, n)})
			continue

		case TagTuple:
			if len(stack) >= MaxDepth {
				return Value{}, verror.New(ErrDepthExceeded, nil, len(stack))
			}
			arity, err := c.readByte()
			if err != nil {
				return Value{}, err
			}
			schemaLen, err := c.readByte()
			if err != nil {
				return Value{}, err
			}
			schemaBytes, err := c.readN(int(schemaLen))
			if err != nil {
				return Value{}, err
			}
			if arity == 0 {
				v = Tuple(string(schemaBytes), nil)
				break
			}
			stack = append(stack, &frame{
				kind:      frameTuple,
				remaining: int(arity),
				items:     make([]Value, 0, arity),
				schema:    string(schemaBytes),
			})
			continue

		default:
			return Value{}, verror.New(ErrCodec, nil, "unknown value tag", tagByte)
		}

		// v is a completed value (scalar, or an empty container built
		// above). Fold it into the frame stack, popping any frame that
		// v just completed, until either a frame is still waiting on
		// more children or the stack is empty and v is the final result.
		for {
			if len(stack) == 0 {
				return v, nil
			}
			top := stack[len(stack)-1]
			done := false
			switch top.kind {
			case frameList:
				top.items = append(top.items, v)
				top.remaining--
				if top.remaining == 0 {
					v = List(top.items)
					done = true
				}
			case frameTuple:
				top.items = append(top.items, v)
				top.remaining--
				if top.remaining == 0 {
					v = Tuple(top.schema, top.items)
					done = true
				}
			case frameMap:
				if top.pendingKey == nil {
					kv := v
					top.pendingKey = &kv
				} else {
					top.entries = append(top.entries, MapEntry{Key: *top.pendingKey, Val: v})
					top.pendingKey = nil
					top.remaining--
					if top.remaining == 0 {
						v = Map(top.entries)
						done = true
					}
				}
			}
			if !done {
				break
			}
			stack = stack[:len(stack)-1]
		}
	}
}

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
	if c.pos+n > len(c.buf) {
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

// errShortBuffer is a private sentinel distinguishing "need more bytes"
// from a genuine malformed-frame CodecError; callers of Decode at the
// message-codec layer translate it into the "incomplete frame" case.
var errShortBuffer = &shortBufferError{}

type shortBufferError struct{}

func (*shortBufferError) Error() string { return "value: short buffer" }

// IsShortBuffer reports whether err signals an incomplete (not malformed)
// buffer.
func IsShortBuffer(err error) bool {
	_, ok := err.(*shortBufferError)
	return ok
}
