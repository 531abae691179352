package value

import (
	"math"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
)

// TypeConversion is a per-target-type adapter that the VariableCodec
// falls back to once a Value's wire type does not recognize the
// requested native type directly (spec §4.2). Each From* method
// receives the raw wire-typed payload; ToTransferable receives a native
// value of whatever type Target reports and must produce its Value
// encoding, or return an *Unsatisfied if it does not own that value.
type TypeConversion interface {
	// Target reports the reflect.Type this extension converts to and from.
	Target() reflect.Type

	FromNull() (interface{}, error)
	FromBool(bool) (interface{}, error)
	FromInt8(int8) (interface{}, error)
	FromInt16(int16) (interface{}, error)
	FromInt32(int32) (interface{}, error)
	FromInt64(int64) (interface{}, error)
	FromFloat32(float32) (interface{}, error)
	FromFloat64(float64) (interface{}, error)
	FromBytes([]byte) (interface{}, error)
	FromString(string) (interface{}, error)
	FromUUID([16]byte) (interface{}, error)
	FromList([]Value) (interface{}, error)
	FromMap([]MapEntry) (interface{}, error)
	FromTuple(schema string, fields []Value) (interface{}, error)

	ToTransferable(native interface{}) (Value, error)
}

var (
	registryMu  sync.Mutex
	conversions []TypeConversion
	frozen      int32
)

// Register adds a TypeConversion extension. Per the init-order contract
// (spec §9 "Global state"), Register must only be called during process
// startup, before any Codec method runs; calling it afterward panics
// rather than silently racing with in-flight conversions.
func Register(tc TypeConversion) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if atomic.LoadInt32(&frozen) != 0 {
		panic("value: Register called after the conversion registry was frozen by first use")
	}
	conversions = append(conversions, tc)
}

func freezeRegistry() {
	atomic.StoreInt32(&frozen, 1)
}

// snapshot returns the registered extensions in reverse registration
// order: spec §4.2 requires the VariableCodec try the most recently
// registered extension first ("latest wins").
func snapshot() []TypeConversion {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]TypeConversion, len(conversions))
	for i, tc := range conversions {
		out[len(conversions)-1-i] = tc
	}
	return out
}

// Codec is the VariableCodec: bidirectional conversion between Value
// and application-native Go types.
type Codec struct{}

var uuidType = reflect.TypeOf([16]byte{})

// NativeToTransferable converts a native Go value to its Value
// encoding. Wire-native Go types (bool, the sized integers, float32/64,
// []byte, string, [16]byte, slices, and maps) convert directly; any
// array or slice element type converts recursively to a List; anything
// else is delegated to registered TypeConversion extensions in reverse
// registration order. If every extension returns Unsatisfied, the final
// Unsatisfied is returned to the caller.
func (Codec) NativeToTransferable(native interface{}) (Value, error) {
	freezeRegistry()

	if native == nil {
		return Null(), nil
	}

	switch n := native.(type) {
	case Value:
		return n, nil
	case bool:
		return Bool(n), nil
	case int8:
		return Int8(n), nil
	case int16:
		return Int16(n), nil
	case int32:
		return Int32(n), nil
	case int64:
		return Int64(n), nil
	case int:
		return Int64(int64(n)), nil
	case float32:
		return Float32(n), nil
	case float64:
		return Float64(n), nil
	case []byte:
		return Binary(append([]byte(nil), n...)), nil
	case string:
		return String(n), nil
	case [16]byte:
		return UUID(n), nil
	}

	rv := reflect.ValueOf(native)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			child, err := Codec{}.NativeToTransferable(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			items[i] = child
		}
		return List(items), nil
	case reflect.Map:
		entries := make([]MapEntry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := Codec{}.NativeToTransferable(iter.Key().Interface())
			if err != nil {
				return Value{}, err
			}
			v, err := Codec{}.NativeToTransferable(iter.Value().Interface())
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: k, Val: v})
		}
		return Map(entries), nil
	}

	var last error = &Unsatisfied{Reason: "no registered TypeConversion for " + rv.Type().String()}
	for _, tc := range snapshot() {
		v, err := tc.ToTransferable(native)
		if err == nil {
			return v, nil
		}
		if !IsUnsatisfied(err) {
			return Value{}, err
		}
		last = err
	}
	return Value{}, last
}

// TransferableToNative converts v to a native Go value matching target.
// If v's wire type already matches target directly, it is converted in
// place following C-style numeric widening/narrowing, boolean-from-
// numeric (non-zero and finite), string-from-numeric (canonical decimal
// form), and null-to-primitive (the zero value); a List against a
// slice/array target reconstructs element-wise. Anything else is
// delegated to registered TypeConversion extensions in reverse
// registration order.
func (Codec) TransferableToNative(v Value, target reflect.Type) (interface{}, error) {
	freezeRegistry()

	if direct, ok, err := directConvert(v, target); ok {
		return direct, err
	}

	if target.Kind() == reflect.Slice && v.Tag() == TagList {
		src := v.List()
		out := reflect.MakeSlice(target, len(src), len(src))
		for i, child := range src {
			cv, err := Codec{}.TransferableToNative(child, target.Elem())
			if err != nil {
				return nil, err
			}
			out.Index(i).Set(reflect.ValueOf(cv))
		}
		return out.Interface(), nil
	}
	if target.Kind() == reflect.Array && v.Tag() == TagList {
		src := v.List()
		if len(src) != target.Len() {
			return nil, &Unsatisfied{Reason: "list length does not match array target"}
		}
		out := reflect.New(target).Elem()
		for i, child := range src {
			cv, err := Codec{}.TransferableToNative(child, target.Elem())
			if err != nil {
				return nil, err
			}
			out.Index(i).Set(reflect.ValueOf(cv))
		}
		return out.Interface(), nil
	}

	var last error = &Unsatisfied{Reason: "no registered TypeConversion for " + target.String()}
	for _, tc := range snapshot() {
		if tc.Target() != target {
			continue
		}
		native, err := dispatchFrom(tc, v)
		if err == nil {
			return native, nil
		}
		if !IsUnsatisfied(err) {
			return nil, err
		}
		last = err
	}
	return nil, last
}

// directConvert handles the case where v's wire tag maps onto target
// without any extension involved. ok is false when no direct rule
// applies, in which case the caller proceeds to slice/array
// reconstruction or extension delegation.
func directConvert(v Value, target reflect.Type) (interface{}, bool, error) {
	if v.IsNull() {
		switch target.Kind() {
		case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64, reflect.String:
			return reflect.Zero(target).Interface(), true, nil
		}
		return nil, false, nil
	}

	switch v.Tag() {
	case TagTrue, TagFalse:
		if target.Kind() == reflect.Bool {
			return v.Bool(), true, nil
		}
	case TagInt8, TagInt16, TagInt32, TagInt64:
		switch target.Kind() {
		case reflect.Int:
			return int(v.Int()), true, nil
		case reflect.Int8:
			return int8(v.Int()), true, nil
		case reflect.Int16:
			return int16(v.Int()), true, nil
		case reflect.Int32:
			return int32(v.Int()), true, nil
		case reflect.Int64:
			return v.Int(), true, nil
		case reflect.Float32:
			return float32(v.Int()), true, nil
		case reflect.Float64:
			return float64(v.Int()), true, nil
		case reflect.Bool:
			return v.Int() != 0, true, nil
		case reflect.String:
			return strconv.FormatInt(v.Int(), 10), true, nil
		}
	case TagFloat32, TagFloat64:
		switch target.Kind() {
		case reflect.Float32:
			return float32(v.Float()), true, nil
		case reflect.Float64:
			return v.Float(), true, nil
		case reflect.Int:
			return int(v.Float()), true, nil
		case reflect.Int64:
			return int64(v.Float()), true, nil
		case reflect.Bool:
			f := v.Float()
			return f != 0 && !isNonFinite(f), true, nil
		case reflect.String:
			return strconv.FormatFloat(v.Float(), 'g', -1, 64), true, nil
		}
	case TagBinary:
		if target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), v.Bytes()...), true, nil
		}
	case TagString:
		if target.Kind() == reflect.String {
			return v.Text(), true, nil
		}
	case TagUUID:
		if target == uuidType {
			var u [16]byte
			copy(u[:], v.Bytes())
			return u, true, nil
		}
	}
	return nil, false, nil
}

func isNonFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// dispatchFrom routes v to the From* method matching its wire tag.
func dispatchFrom(tc TypeConversion, v Value) (interface{}, error) {
	switch v.Tag() {
	case TagNull:
		return tc.FromNull()
	case TagTrue, TagFalse:
		return tc.FromBool(v.Bool())
	case TagInt8:
		return tc.FromInt8(int8(v.Int()))
	case TagInt16:
		return tc.FromInt16(int16(v.Int()))
	case TagInt32:
		return tc.FromInt32(int32(v.Int()))
	case TagInt64:
		return tc.FromInt64(v.Int())
	case TagFloat32:
		return tc.FromFloat32(float32(v.Float()))
	case TagFloat64:
		return tc.FromFloat64(v.Float())
	case TagBinary:
		return tc.FromBytes(v.Bytes())
	case TagString:
		return tc.FromString(v.Text())
	case TagUUID:
		var u [16]byte
		copy(u[:], v.Bytes())
		return tc.FromUUID(u)
	case TagList:
		return tc.FromList(v.List())
	case TagMap:
		return tc.FromMap(v.Map())
	case TagTuple:
		schema, fields := v.Tuple()
		return tc.FromTuple(schema, fields)
	default:
		return nil, &Unsatisfied{Reason: "unrecognized value tag"}
	}
}
