// Package value holds the structured values that flow through merges and
// store encodings: objects, arrays, scalars and null, as one tagged type.
package value

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	// Undefined is the zero Kind. It stands for a field that is absent.
	Undefined Kind = iota
	Null
	Bool
	Number
	String
	Array
	Object
)

var kindNames = [...]string{
	Undefined: "undefined",
	Null:      "null",
	Bool:      "bool",
	Number:    "number",
	String:    "string",
	Array:     "array",
	Object:    "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is an immutable-by-convention tagged union. Arrays and objects share
// their backing storage when a Value is copied; use Clone for an independent
// copy.
type Value struct {
	kind Kind
	b    bool
	num  decimal.Decimal
	str  string
	arr  []Value
	obj  map[string]Value
}

// NullValue returns the explicit null.
func NullValue() Value { return Value{kind: Null} }

// BoolOf wraps a bool.
func BoolOf(b bool) Value { return Value{kind: Bool, b: b} }

// NumberOf wraps a decimal number.
func NumberOf(d decimal.Decimal) Value { return Value{kind: Number, num: d} }

// Int wraps an integer as a number.
func Int(n int64) Value { return NumberOf(decimal.NewFromInt(n)) }

// StringOf wraps a string.
func StringOf(s string) Value { return Value{kind: String, str: s} }

// ArrayOf builds an array holding items.
func ArrayOf(items ...Value) Value {
	arr := make([]Value, len(items))
	copy(arr, items)
	return Value{kind: Array, arr: arr}
}

// ObjectOf builds an object from fields. The map is used as-is.
func ObjectOf(fields map[string]Value) Value {
	if fields == nil {
		fields = make(map[string]Value)
	}
	return Value{kind: Object, obj: fields}
}

// NewObject returns an empty object.
func NewObject() Value { return ObjectOf(nil) }

func (v Value) Kind() Kind { return v.kind }

// IsNullish reports whether v is undefined or null.
func (v Value) IsNullish() bool { return v.kind == Undefined || v.kind == Null }

func (v Value) Bool() bool              { return v.b }
func (v Value) Number() decimal.Decimal { return v.num }
func (v Value) Str() string             { return v.str }
func (v Value) IsArray() bool           { return v.kind == Array }
func (v Value) IsObject() bool          { return v.kind == Object }

// Len returns the number of array items or object fields.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj)
	default:
		return 0
	}
}

// Items returns the array items. The returned slice is a copy; the items
// themselves are not cloned.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	items := make([]Value, len(v.arr))
	copy(items, v.arr)
	return items
}

// Keys returns the object keys in sorted order.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the field stored under key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	item, ok := v.obj[key]
	return item, ok
}

// Set stores item under key, mutating the object in place. It is a no-op
// unless v is an object.
func (v Value) Set(key string, item Value) {
	if v.kind != Object {
		return
	}
	v.obj[key] = item
}

// Lookup descends through nested objects following path.
func (v Value) Lookup(path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		next, ok := cur.Get(key)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Text renders a scalar as plain text, as used for index values. Composite
// and nullish values render as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case String:
		return v.str
	case Number:
		return v.num.String()
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Clone returns a structurally independent copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case Array:
		arr := make([]Value, len(v.arr))
		for i, item := range v.arr {
			arr[i] = item.Clone()
		}
		return Value{kind: Array, arr: arr}
	case Object:
		obj := make(map[string]Value, len(v.obj))
		for k, item := range v.obj {
			obj[k] = item.Clone()
		}
		return Value{kind: Object, obj: obj}
	default:
		return v
	}
}

// Concat returns a fresh array holding the items of a followed by those of b.
// Non-array arguments contribute nothing.
func Concat(a, b Value) Value {
	arr := make([]Value, 0, a.Len()+b.Len())
	if a.kind == Array {
		arr = append(arr, a.arr...)
	}
	if b.kind == Array {
		arr = append(arr, b.arr...)
	}
	return Value{kind: Array, arr: arr}
}

// Equal reports whether a and b hold the same structure and scalars.
// Numbers compare by decimal value, so 1.0 equals 1.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Undefined, Null:
		return true
	case Bool:
		return a.b == b.b
	case Number:
		return a.num.Equal(b.num)
	case String:
		return a.str == b.str
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, item := range a.obj {
			other, ok := b.obj[k]
			if !ok || !Equal(item, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
