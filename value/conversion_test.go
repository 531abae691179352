package value

import (
	"reflect"
	"testing"
)

func TestCodecDirectScalars(t *testing.T) {
	c := Codec{}

	v, err := c.NativeToTransferable(int32(7))
	if err != nil {
		t.Fatalf("NativeToTransferable(int32): %v", err)
	}
	if v.Tag() != TagInt32 || v.Int() != 7 {
		t.Fatalf("got %v, want Int32(7)", v)
	}

	native, err := c.TransferableToNative(Int32(7), reflect.TypeOf(int64(0)))
	if err != nil {
		t.Fatalf("TransferableToNative widening: %v", err)
	}
	if native.(int64) != 7 {
		t.Fatalf("got %v, want int64(7)", native)
	}
}

func TestCodecNumericNarrowingWraps(t *testing.T) {
	c := Codec{}
	native, err := c.TransferableToNative(Int32(300), reflect.TypeOf(int8(0)))
	if err != nil {
		t.Fatalf("TransferableToNative narrowing: %v", err)
	}
	// 300 is 0x12C; keeping the low byte 0x2C wraps it to 44.
	if native.(int8) != 44 {
		t.Fatalf("got %v, want two's-complement-wrapped int8(300)=44", native)
	}
}

func TestCodecBoolFromNumeric(t *testing.T) {
	c := Codec{}
	zero, err := c.TransferableToNative(Int32(0), reflect.TypeOf(false))
	if err != nil || zero.(bool) != false {
		t.Fatalf("bool from zero: got %v, %v", zero, err)
	}
	nonzero, err := c.TransferableToNative(Int32(5), reflect.TypeOf(false))
	if err != nil || nonzero.(bool) != true {
		t.Fatalf("bool from nonzero: got %v, %v", nonzero, err)
	}
}

func TestCodecNullToPrimitiveZero(t *testing.T) {
	c := Codec{}
	native, err := c.TransferableToNative(Null(), reflect.TypeOf(int32(0)))
	if err != nil {
		t.Fatalf("TransferableToNative(Null): %v", err)
	}
	if native.(int32) != 0 {
		t.Fatalf("got %v, want zero value", native)
	}
}

func TestCodecStringFromNumeric(t *testing.T) {
	c := Codec{}
	native, err := c.TransferableToNative(Int64(42), reflect.TypeOf(""))
	if err != nil {
		t.Fatalf("TransferableToNative string-from-numeric: %v", err)
	}
	if native.(string) != "42" {
		t.Fatalf("got %q, want \"42\"", native)
	}
}

func TestCodecListRoundTrip(t *testing.T) {
	c := Codec{}
	v, err := c.NativeToTransferable([]int32{1, 2, 3})
	if err != nil {
		t.Fatalf("NativeToTransferable([]int32): %v", err)
	}
	native, err := c.TransferableToNative(v, reflect.TypeOf([]int32{}))
	if err != nil {
		t.Fatalf("TransferableToNative(List, []int32): %v", err)
	}
	got := native.([]int32)
	want := []int32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// stringSetConversion is a TypeConversion extension over a custom
// struct-wrapped "set" type, used to exercise the registry/delegation
// path. The set is a struct rather than a bare map because map kinds are
// converted directly by the Codec and never reach an extension.
type stringSet struct{ m map[string]struct{} }

type stringSetConversion struct{}

func (stringSetConversion) Target() reflect.Type { return reflect.TypeOf(stringSet{}) }

func (stringSetConversion) FromNull() (interface{}, error) { return stringSet{}, nil }
func (stringSetConversion) FromBool(bool) (interface{}, error) {
	return nil, &Unsatisfied{Reason: "set from bool"}
}
func (stringSetConversion) FromInt8(int8) (interface{}, error) {
	return nil, &Unsatisfied{}
}
func (stringSetConversion) FromInt16(int16) (interface{}, error) { return nil, &Unsatisfied{} }
func (stringSetConversion) FromInt32(int32) (interface{}, error) { return nil, &Unsatisfied{} }
func (stringSetConversion) FromInt64(int64) (interface{}, error) { return nil, &Unsatisfied{} }
func (stringSetConversion) FromFloat32(float32) (interface{}, error) {
	return nil, &Unsatisfied{}
}
func (stringSetConversion) FromFloat64(float64) (interface{}, error) {
	return nil, &Unsatisfied{}
}
func (stringSetConversion) FromBytes([]byte) (interface{}, error) { return nil, &Unsatisfied{} }
func (stringSetConversion) FromString(string) (interface{}, error) {
	return nil, &Unsatisfied{}
}
func (stringSetConversion) FromUUID([16]byte) (interface{}, error) {
	return nil, &Unsatisfied{}
}
func (stringSetConversion) FromList(items []Value) (interface{}, error) {
	s := stringSet{m: make(map[string]struct{}, len(items))}
	for _, it := range items {
		if it.Tag() != TagString {
			return nil, &Unsatisfied{Reason: "set element not a string"}
		}
		s.m[it.Text()] = struct{}{}
	}
	return s, nil
}
func (stringSetConversion) FromMap([]MapEntry) (interface{}, error) { return nil, &Unsatisfied{} }
func (stringSetConversion) FromTuple(string, []Value) (interface{}, error) {
	return nil, &Unsatisfied{}
}
func (stringSetConversion) ToTransferable(native interface{}) (Value, error) {
	s, ok := native.(stringSet)
	if !ok {
		return Value{}, &Unsatisfied{Reason: "not a stringSet"}
	}
	items := make([]Value, 0, len(s.m))
	for k := range s.m {
		items = append(items, String(k))
	}
	return List(items), nil
}

// Register panics once any conversion has frozen the registry, and the
// tests above convert values first, so the extension is installed at
// package initialization.
func init() {
	Register(stringSetConversion{})
}

func TestCodecExtensionDelegation(t *testing.T) {
	c := Codec{}
	v, err := c.NativeToTransferable(stringSet{m: map[string]struct{}{"a": {}}})
	if err != nil {
		t.Fatalf("NativeToTransferable(stringSet): %v", err)
	}
	if v.Tag() != TagList {
		t.Fatalf("got tag %v, want list", v.Tag())
	}

	native, err := c.TransferableToNative(List([]Value{String("a"), String("b")}), reflect.TypeOf(stringSet{}))
	if err != nil {
		t.Fatalf("TransferableToNative(List, stringSet): %v", err)
	}
	s := native.(stringSet)
	if _, ok := s.m["a"]; !ok {
		t.Fatalf("got %v, missing \"a\"", s)
	}
	if _, ok := s.m["b"]; !ok {
		t.Fatalf("got %v, missing \"b\"", s)
	}
}

func TestRegisterPanicsAfterFreeze(t *testing.T) {
	// Force the registry frozen by performing any conversion.
	Codec{}.NativeToTransferable(int32(0))

	defer func() {
		if recover() == nil {
			t.Fatal("Register after freeze did not panic")
		}
	}()
	Register(stringSetConversion{})
}
