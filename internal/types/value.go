// Package types holds the entity model shared by the storage, graph, and
// handler layers: nodes, edges, events, knowledge entries, and the dynamic
// Value abstraction that backs agent-defined properties and state.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the concrete shape held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the scalar/collection shapes agents attach to
// node properties, node state, and evidence detail maps. Handlers read
// specific keys through the typed accessors below and never leak the raw
// representation upward; the engine never interprets the contents of a
// Value beyond what a specific handler explicitly asks for (e.g.
// properties.priority, properties.auto_resolve).
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List wraps an ordered list of values.
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Map wraps a string-keyed map of values.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// IsNull reports whether the value is null (or the zero Value).
func (v Value) IsNull() bool { return v.kind == KindNull }

// Kind returns the value's shape.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean and whether the value actually held one.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt returns the integer, coercing from float when it is exact.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == float64(int64(v.f)) {
			return int64(v.f), true
		}
	}
	return 0, false
}

// AsFloat returns the float, coercing from int.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsString returns the string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsList returns the list.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// AsMap returns the map.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// StringOr returns the string form or a fallback when the value is not a string.
func (v Value) StringOr(fallback string) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	return fallback
}

// FloatOr returns the numeric form or a fallback when the value is not numeric.
func (v Value) FloatOr(fallback float64) float64 {
	if f, ok := v.AsFloat(); ok {
		return f
	}
	return fallback
}

// BoolOr returns the boolean form or a fallback when the value is not a bool.
func (v Value) BoolOr(fallback bool) bool {
	if b, ok := v.AsBool(); ok {
		return b
	}
	return fallback
}

// Equal reports deep equality between two values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, mv := range v.m {
			ov, ok := o.m[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler using the natural JSON shape for
// each kind (nulls, bools, numbers, strings, arrays, objects).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		return json.Marshal(v.list)
	case KindMap:
		// Stable key order for deterministic event diffs and logs.
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte("{")
		for idx, k := range keys {
			if idx > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(v.m[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	}
	return nil, fmt.Errorf("types: unknown value kind %v", v.kind)
}

// UnmarshalJSON implements json.Unmarshaler, inferring the kind from the
// JSON token (objects become maps, arrays become lists, numbers that round
// trip through int64 become KindInt, otherwise KindFloat).
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a decoded interface{} (as produced by encoding/json or
// database/sql scans of a JSON column) into a Value tree.
func FromAny(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case float64:
		if x == float64(int64(x)) {
			return Int(int64(x))
		}
		return Float(x)
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case []interface{}:
		list := make([]Value, len(x))
		for i, item := range x {
			list[i] = FromAny(item)
		}
		return List(list...)
	case map[string]interface{}:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			m[k] = FromAny(item)
		}
		return Map(m)
	case map[string]Value:
		return Map(x)
	case Value:
		return x
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// ToAny unwraps a Value back into plain interface{} shapes, for callers
// that need to hand the content to a generic JSON encoder directly.
func (v Value) ToAny() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, item := range v.m {
			out[k] = item.ToAny()
		}
		return out
	}
	return nil
}

// PropertyBag is the agent-defined key-value bag backing Node.Properties.
// It is a thin alias so call sites can read as map[string]Value while the
// Value type stays the single point of representation.
type PropertyBag map[string]Value

// Merge applies a partial update: keys present with a value replace, keys
// explicitly marked for deletion (via the deletions set) are removed. This
// implements the §4.2 property-merge semantics.
func (p PropertyBag) Merge(set map[string]Value, deletions []string) PropertyBag {
	out := make(PropertyBag, len(p))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range set {
		out[k] = v
	}
	for _, k := range deletions {
		delete(out, k)
	}
	return out
}

// Clone returns a shallow copy safe for independent mutation of the map.
func (p PropertyBag) Clone() PropertyBag {
	out := make(PropertyBag, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
