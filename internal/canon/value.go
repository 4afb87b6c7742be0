package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Value is a sealed interface over JSON-shaped data.
// Only Null, Bool, Int, BigInt, Float, String, Array and Object implement it.
type Value interface {
	kind() Kind
}

// Kind tags the concrete type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Null is the JSON null value.
type Null struct{}

func (Null) kind() Kind { return KindNull }

// Bool is a JSON boolean.
type Bool bool

func (Bool) kind() Kind { return KindBool }

// Int is an integral JSON number.
type Int int64

func (Int) kind() Kind { return KindNumber }

// BigInt is an integer literal outside the int64 range, held as its
// decimal digits so it is never rounded. Use NewBigInt to construct one.
type BigInt string

func (BigInt) kind() Kind { return KindNumber }

// NewBigInt returns n as an Int when it fits in int64, otherwise as a BigInt.
func NewBigInt(n *big.Int) Value {
	if n.IsInt64() {
		return Int(n.Int64())
	}
	return BigInt(n.String())
}

// Float is a JSON number with a fraction or exponent.
type Float float64

func (Float) kind() Kind { return KindNumber }

// String is a JSON string.
type String string

func (String) kind() Kind { return KindString }

// Array is an ordered list of values.
type Array []Value

func (Array) kind() Kind { return KindArray }

// Object maps string keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) kind() Kind { return KindObject }

// KindOf returns the kind of v. A nil interface is reported as null.
func KindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.kind()
}

// SortedKeys returns the object's keys in code point order.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value for key, or nil if absent.
func (o Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o[key]
	return v, ok
}

// FromAny converts plain Go data (as produced by encoding/json or yaml.v3)
// into a Value. Values that are already Values pass through.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return BigInt(strconv.FormatUint(uint64(val), 10)), nil
		}
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return BigInt(strconv.FormatUint(val, 10)), nil
		}
		return Int(val), nil
	case *big.Int:
		if val == nil {
			return Null{}, nil
		}
		return NewBigInt(val), nil
	case float32:
		return Float(float64(val)), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return numberValue(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	case map[string]string:
		obj := make(Object, len(val))
		for k, elem := range val {
			obj[k] = String(elem)
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string object key %v (%T)", k, k)
			}
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", ks, err)
			}
			obj[ks] = ev
		}
		return obj, nil
	default:
		return nil, &CanonicalizationError{Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

// ToAny converts a Value back into plain Go data.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case BigInt:
		n, _ := new(big.Int).SetString(string(val), 10)
		return n
	case Float:
		return float64(val)
	case String:
		return string(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

func numberValue(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
		if b, ok := new(big.Int).SetString(s, 10); ok {
			return NewBigInt(b), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Float(f), nil
}

// Decode parses JSON text into a Value. Integer literals become Int (or
// BigInt beyond int64), everything else Float.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return FromAny(raw)
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Array:
		if val == nil {
			return Array(nil)
		}
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		return CloneObject(val)
	default:
		return v
	}
}

// CloneObject returns a deep copy of o. A nil object stays nil.
func CloneObject(o Object) Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for k, elem := range o {
		out[k] = Clone(elem)
	}
	return out
}

// Equal reports exact structural equality. Int and Float compare by numeric
// value; a nil interface equals Null.
func Equal(a, b Value) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	switch av := a.(type) {
	case nil, Null:
		return true
	case Bool:
		return av == b.(Bool)
	case String:
		return av == b.(String)
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
	case BigInt:
		switch bv := b.(type) {
		case BigInt:
			return av == bv
		case Float:
			return bigEqualsFloat(av, bv)
		}
	case Float:
		switch bv := b.(type) {
		case Int:
			return float64(av) == float64(bv)
		case BigInt:
			return bigEqualsFloat(bv, av)
		case Float:
			return av == bv
		}
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv := b.(Object)
		if len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !Equal(ae, be) {
				return false
			}
		}
		return true
	}
	return false
}

func bigEqualsFloat(b BigInt, f Float) bool {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return false
	}
	bf, ok := new(big.Float).SetString(string(b))
	return ok && bf.Cmp(big.NewFloat(float64(f))) == 0
}

// MarshalJSON implements json.Marshaler using the deterministic encoding.
func (o Object) MarshalJSON() ([]byte, error) {
	return Marshal(o)
}

// MarshalJSON implements json.Marshaler using the deterministic encoding.
func (a Array) MarshalJSON() ([]byte, error) {
	return Marshal(a)
}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON writes the digits as a JSON number.
func (b BigInt) MarshalJSON() ([]byte, error) {
	return Marshal(b)
}

// MarshalJSON implements json.Marshaler for Float.
func (f Float) MarshalJSON() ([]byte, error) {
	return Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case Object:
		*o = val
	case Null:
		*o = nil
	default:
		return fmt.Errorf("expected JSON object, got %s", KindOf(v))
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (a *Array) UnmarshalJSON(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case Array:
		*a = val
	case Null:
		*a = nil
	default:
		return fmt.Errorf("expected JSON array, got %s", KindOf(v))
	}
	return nil
}
