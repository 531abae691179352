// Package value implements the closed tagged-value sum type that flows
// inside Open.Params and Close.Result, and the VariableCodec that converts
// between it and application-native Go types.
package value

import (
	"fmt"
)

// Tag identifies the wire variant of a Value. The numbering matches the
// tag byte written on the wire (see codec.go).
type Tag byte

const (
	TagNull   Tag = 0
	TagTrue   Tag = 1
	TagFalse  Tag = 2
	TagInt8   Tag = 3
	TagInt16  Tag = 4
	TagInt32  Tag = 5
	TagInt64  Tag = 6
	TagFloat32 Tag = 7
	TagFloat64 Tag = 8
	TagBinary Tag = 10
	TagString Tag = 11
	TagUUID   Tag = 12
	TagList   Tag = 32
	TagMap    Tag = 33
	TagTuple  Tag = 34
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagTrue, TagFalse:
		return "bool"
	case TagInt8:
		return "int8"
	case TagInt16:
		return "int16"
	case TagInt32:
		return "int32"
	case TagInt64:
		return "int64"
	case TagFloat32:
		return "float32"
	case TagFloat64:
		return "float64"
	case TagBinary:
		return "binary"
	case TagString:
		return "string"
	case TagUUID:
		return "uuid"
	case TagList:
		return "list"
	case TagMap:
		return "map"
	case TagTuple:
		return "tuple"
	default:
		return fmt.Sprintf("tag(%d)", byte(t))
	}
}

// MapEntry is a single key/value pair inside a Map Value.
type MapEntry struct {
	Key Value
	Val Value
}

// Value is the closed tagged sum described by spec §3. It intentionally
// carries typed fields rather than an interface{} payload: lists, maps and
// tuples hold Value children directly rather than generic object
// references, per the "avoid generic object references" design note.
type Value struct {
	tag    Tag
	i      int64  // backing store for the signed integer variants
	f      float64 // backing store for the float variants
	bytes  []byte  // Binary, String (UTF-8) or UUID (16 bytes)
	list   []Value
	m      []MapEntry
	tuple  []Value
	schema string // optional tuple schema name, empty if unset
}

// Null returns the Value representing the wire null.
func Null() Value { return Value{tag: TagNull} }

// Bool returns True or False.
func Bool(b bool) Value {
	if b {
		return Value{tag: TagTrue}
	}
	return Value{tag: TagFalse}
}

func Int8(v int8) Value   { return Value{tag: TagInt8, i: int64(v)} }
func Int16(v int16) Value { return Value{tag: TagInt16, i: int64(v)} }
func Int32(v int32) Value { return Value{tag: TagInt32, i: int64(v)} }
func Int64(v int64) Value { return Value{tag: TagInt64, i: v} }

func Float32(v float32) Value { return Value{tag: TagFloat32, f: float64(v)} }
func Float64(v float64) Value { return Value{tag: TagFloat64, f: v} }

// Binary returns a Value wrapping raw bytes. The slice is not copied.
func Binary(b []byte) Value { return Value{tag: TagBinary, bytes: b} }

// String returns a Value wrapping a UTF-8 string.
func String(s string) Value { return Value{tag: TagString, bytes: []byte(s)} }

// UUID returns a Value wrapping a 16-byte UUID.
func UUID(b [16]byte) Value { return Value{tag: TagUUID, bytes: b[:]} }

// List returns a Value wrapping a list of child Values. The slice is not
// copied.
func List(vs []Value) Value { return Value{tag: TagList, list: vs} }

// Map returns a Value wrapping key/value Value pairs. The slice is not
// copied.
func Map(entries []MapEntry) Value { return Value{tag: TagMap, m: entries} }

// Tuple returns a Value wrapping a fixed-arity vector of child Values with
// an optional schema name used by receivers that know how to reconstruct a
// specific record type (spec §4.2).
func Tuple(schema string, vs []Value) Value {
	return Value{tag: TagTuple, tuple: vs, schema: schema}
}

// Tag reports the wire variant of v.
func (v Value) Tag() Tag { return v.tag }

// IsNull reports whether v is the null Value.
func (v Value) IsNull() bool { return v.tag == TagNull }

// Bool returns the boolean value. Only valid for TagTrue/TagFalse.
func (v Value) Bool() bool { return v.tag == TagTrue }

// Int returns the integer value widened to int64. Only valid for the
// integer tags.
func (v Value) Int() int64 { return v.i }

// Float returns the float value widened to float64. Only valid for the
// float tags.
func (v Value) Float() float64 { return v.f }

// Bytes returns the raw bytes backing Binary, String or UUID values.
func (v Value) Bytes() []byte { return v.bytes }

// Text returns the human-readable form of a String value's bytes.
func (v Value) Text() string { return string(v.bytes) }

// List returns the child values of a List value.
func (v Value) List() []Value { return v.list }

// Map returns the entries of a Map value.
func (v Value) Map() []MapEntry { return v.m }

// Tuple returns the fields and schema name of a Tuple value.
func (v Value) Tuple() (schema string, fields []Value) { return v.schema, v.tuple }

// Equal reports deep structural equality between v and o.
func (v Value) Equal(o Value) bool {
	if v.tag != o.tag {
		return false
	}
	switch v.tag {
	case TagNull, TagTrue, TagFalse:
		return true
	case TagInt8, TagInt16, TagInt32, TagInt64:
		return v.i == o.i
	case TagFloat32, TagFloat64:
		return v.f == o.f
	case TagBinary, TagString, TagUUID:
		return string(v.bytes) == string(o.bytes)
	case TagList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case TagMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for i := range v.m {
			if !v.m[i].Key.Equal(o.m[i].Key) || !v.m[i].Val.Equal(o.m[i].Val) {
				return false
			}
		}
		return true
	case TagTuple:
		if v.schema != o.schema || len(v.tuple) != len(o.tuple) {
			return false
		}
		for i := range v.tuple {
			if !v.tuple[i].Equal(o.tuple[i]) {
				return false
			}
		}
		return true
	}
	return false
}
