// Package value implements the closed JSON-like value type that every
// adapter Observe() result, Context entry, and fingerprint input is built
// from. Keeping the type closed (rather than accepting arbitrary interface{})
// is what lets fingerprinting and canonical serialization stay deterministic.
package value

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Value is a JSON-shaped value: nil, bool, float64, string, []Value, or
// map[string]Value. It mirrors the sum type spec.md §9 describes
// ("Value = Null | Bool | Int | Float | String | List[Value] | Map[...]")
// as a single Go type rather than a tagged union, which is the idiomatic
// shape for data that round-trips through encoding/json anyway.
type Value struct {
	raw interface{}
}

// Null is the zero Value.
var Null = Value{}

// Of wraps a plain Go value (bool, int/int64/float64, string, []Value,
// map[string]Value, or nil) into a Value. Panics on unsupported types —
// callers construct Values from literals or from From, never from arbitrary
// external data without going through From.
func Of(v interface{}) Value {
	switch v.(type) {
	case nil, bool, float64, string, []Value, map[string]Value:
		return Value{raw: v}
	case int:
		return Value{raw: float64(v.(int))}
	case int64:
		return Value{raw: float64(v.(int64))}
	default:
		panic(fmt.Sprintf("value: unsupported literal type %T", v))
	}
}

// From converts an arbitrary decoded JSON value (as produced by
// encoding/json.Unmarshal into interface{}) into a Value tree.
func From(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null, nil
	case bool, float64, string:
		return Value{raw: x}, nil
	case []interface{}:
		out := make([]Value, len(x))
		for i, e := range x {
			cv, err := From(e)
			if err != nil {
				return Null, err
			}
			out[i] = cv
		}
		return Value{raw: out}, nil
	case map[string]interface{}:
		out := make(map[string]Value, len(x))
		for k, e := range x {
			cv, err := From(e)
			if err != nil {
				return Null, err
			}
			out[k] = cv
		}
		return Value{raw: out}, nil
	default:
		return Null, fmt.Errorf("value: cannot convert %T into a Value", v)
	}
}

// MustFrom is From but panics on error; useful for adapters building
// Observe() results from data they trust (already-marshaled JSON).
func MustFrom(v interface{}) Value {
	cv, err := From(v)
	if err != nil {
		panic(err)
	}
	return cv
}

// IsNull reports whether this is the null value.
func (v Value) IsNull() bool { return v.raw == nil }

// Raw returns the underlying Go value (nil, bool, float64, string,
// []Value, or map[string]Value).
func (v Value) Raw() interface{} { return v.raw }

// String returns the string value, or "" with ok=false if v is not a string.
func (v Value) String() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Float returns the numeric value, or 0 with ok=false if v is not a number.
func (v Value) Float() (float64, bool) {
	f, ok := v.raw.(float64)
	return f, ok
}

// Bool returns the boolean value, or false with ok=false if v is not a bool.
func (v Value) Bool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok
}

// List returns the list value, or nil with ok=false if v is not a list.
func (v Value) List() ([]Value, bool) {
	l, ok := v.raw.([]Value)
	return l, ok
}

// Map returns the map value, or nil with ok=false if v is not a map.
func (v Value) Map() (map[string]Value, bool) {
	m, ok := v.raw.(map[string]Value)
	return m, ok
}

// Get performs a dotted-path lookup through nested maps, e.g. Get("order.id").
// Returns Null, false if any segment is missing or not a map.
func (v Value) Get(path string) (Value, bool) {
	cur := v
	for _, seg := range splitPath(path) {
		m, ok := cur.Map()
		if !ok {
			return Null, false
		}
		cur, ok = m[seg]
		if !ok {
			return Null, false
		}
	}
	return cur, true
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}

// Canonical renders v as a canonical JSON string: object keys sorted, no
// extraneous whitespace. Two Values representing equal logical state MUST
// produce byte-identical Canonical output — this is what StateFingerprint
// relies on for congruence (spec.md §8.1 property 3).
func (v Value) Canonical() string {
	buf := make([]byte, 0, 64)
	buf = appendCanonical(buf, v.raw)
	return string(buf)
}

func appendCanonical(buf []byte, raw interface{}) []byte {
	switch x := raw.(type) {
	case nil:
		return append(buf, "null"...)
	case bool:
		if x {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case float64:
		b, _ := json.Marshal(x)
		return append(buf, b...)
	case string:
		b, _ := json.Marshal(x)
		return append(buf, b...)
	case []Value:
		buf = append(buf, '[')
		for i, e := range x {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendCanonical(buf, e.raw)
		}
		return append(buf, ']')
	case map[string]Value:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = appendCanonical(buf, x[k].raw)
		}
		return append(buf, '}')
	default:
		panic(fmt.Sprintf("value: non-canonical raw type %T", raw))
	}
}

// MarshalJSON implements json.Marshaler so Values embed naturally in
// ExplorationResult and Transition records.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.Canonical()), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	cv, err := From(raw)
	if err != nil {
		return err
	}
	*v = cv
	return nil
}
