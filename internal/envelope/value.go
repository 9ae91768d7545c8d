package envelope

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Value is a tagged variant over JSON's dynamic shapes: null, a scalar
// (bool/number/string), a list, or a map whose values are themselves Values.
// It exists so free-form envelope sub-objects (arguments, result, error
// details, extension options/data) can be modeled as explicit sum types
// instead of bare interface{}, and so absent-vs-null can be told apart: a
// Go map simply omits an absent key, while an explicit Null Value marshals
// to JSON null.
type Value struct {
	kind   valueKind
	scalar any
	list   []Value
	object map[string]Value
	// keys holds the object's keys in sorted order for deterministic
	// re-serialization.
	keys []string
}

type valueKind int

const (
	kindNull valueKind = iota
	kindScalar
	kindList
	kindObject
)

// Null returns the explicit JSON null value.
func Null() Value { return Value{kind: kindNull} }

// Scalar wraps a bool, number, or string as a Value.
func Scalar(v any) Value { return Value{kind: kindScalar, scalar: v} }

// List wraps a slice of Values.
func List(items ...Value) Value { return Value{kind: kindList, list: items} }

// Object builds a Value from a map of key/value pairs; its keys are kept in
// sorted order.
func Object(pairs map[string]Value) Value {
	v := Value{kind: kindObject, object: make(map[string]Value, len(pairs))}
	for k, val := range pairs {
		v.object[k] = val
		v.keys = append(v.keys, k)
	}
	sort.Strings(v.keys)
	return v
}

// IsNull reports whether v is the explicit JSON null. Absence is not a
// Value state at all: optional envelope members are nil *Value pointers
// when absent and point at a Null Value when the member was a literal null.
func (v Value) IsNull() bool { return v.kind == kindNull }

// Get returns the value at key and whether it was present (object kind only).
func (v Value) Get(key string) (Value, bool) {
	if v.kind != kindObject {
		return Value{}, false
	}
	val, ok := v.object[key]
	return val, ok
}

// IsObject reports whether v is an object (map) value.
func (v Value) IsObject() bool { return v.kind == kindObject }

// IsList reports whether v is a list value.
func (v Value) IsList() bool { return v.kind == kindList }

// Keys returns an object's keys in their canonical sorted order (nil for
// non-object kinds).
func (v Value) Keys() []string {
	if v.kind != kindObject {
		return nil
	}
	return append([]string(nil), v.keys...)
}

// Len returns the number of elements for list/object kinds, else 0.
func (v Value) Len() int {
	switch v.kind {
	case kindList:
		return len(v.list)
	case kindObject:
		return len(v.object)
	default:
		return 0
	}
}

// Items returns list elements in order (nil for non-list kinds).
func (v Value) Items() []Value {
	if v.kind != kindList {
		return nil
	}
	return v.list
}

// Raw returns the underlying Go value for scalar kinds (nil otherwise).
func (v Value) Raw() any { return v.scalar }

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNull:
		return []byte("null"), nil
	case kindScalar:
		return json.Marshal(v.scalar)
	case kindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case kindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.object[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler, decoding arbitrary JSON into the
// tagged-variant shape. Object keys are stored sorted.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = fromAny(it)
		}
		return Value{kind: kindList, list: items}
	case map[string]any:
		v := Value{kind: kindObject, object: make(map[string]Value, len(t))}
		for k, val := range t {
			v.object[k] = fromAny(val)
			v.keys = append(v.keys, k)
		}
		sort.Strings(v.keys)
		return v
	default:
		return Value{kind: kindScalar, scalar: t}
	}
}
