package tulip

// value.go provides the Value sum type used for record fields.
//
// The API returns loosely typed JSON. Instead of passing map[string]any
// around, every field is decoded into a Value whose Kind says exactly which
// variant it holds:
//
//   - KindNull:   JSON null or a missing value
//   - KindString: text
//   - KindInt:    a JSON number without fraction or exponent
//   - KindFloat:  any other JSON number
//   - KindBool:   true/false
//   - KindObject: a nested object
//   - KindArray:  a nested array
//
// Conversion between kinds only happens explicitly, in Coerce.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindObject
	KindArray
)

var kindNames = [...]string{
	KindNull:   "null",
	KindString: "string",
	KindInt:    "integer",
	KindFloat:  "float",
	KindBool:   "boolean",
	KindObject: "object",
	KindArray:  "array",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Value is a single record field. The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	obj  map[string]Value
	arr  []Value
}

// NullValue returns the null Value.
func NullValue() Value { return Value{} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// Int64Value returns an integer Value.
func Int64Value(i int64) Value { return Value{kind: KindInt, i: i} }

// IntValue returns an integer Value.
func IntValue(i int) Value { return Int64Value(int64(i)) }

// FloatValue returns a float Value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ObjectValue returns an object Value. The map is not copied.
func ObjectValue(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

// ArrayValue returns an array Value. The slice is not copied.
func ArrayValue(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

// AnyValue converts a Go value into a Value. Supported inputs are nil,
// Value, string, bool, all integer and float types, json.Number,
// map[string]any, map[string]Value, []any and []Value. Anything else is
// rendered with fmt and stored as a string.
func AnyValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{}
	case Value:
		return x
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case int:
		return Int64Value(int64(x))
	case int8:
		return Int64Value(int64(x))
	case int16:
		return Int64Value(int64(x))
	case int32:
		return Int64Value(int64(x))
	case int64:
		return Int64Value(x)
	case uint:
		return Int64Value(int64(x))
	case uint8:
		return Int64Value(int64(x))
	case uint16:
		return Int64Value(int64(x))
	case uint32:
		return Int64Value(int64(x))
	case uint64:
		return Int64Value(int64(x))
	case float32:
		return FloatValue(float64(x))
	case float64:
		return FloatValue(x)
	case json.Number:
		return numberValue(x)
	case map[string]Value:
		return ObjectValue(x)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = AnyValue(e)
		}
		return ObjectValue(m)
	case []Value:
		return ArrayValue(x...)
	case []any:
		vs := make([]Value, len(x))
		for i, e := range x {
			vs[i] = AnyValue(e)
		}
		return ArrayValue(vs...)
	default:
		return StringValue(fmt.Sprint(x))
	}
}

func numberValue(n json.Number) Value {
	if i, err := n.Int64(); err == nil {
		return Int64Value(i)
	}
	f, err := n.Float64()
	if err != nil {
		return StringValue(n.String())
	}
	return FloatValue(f)
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string and true if v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the integer and true if v is an integer.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the number as float64 and true if v is an integer or float.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsBool returns the boolean and true if v is a boolean.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsObject returns the nested object and true if v is an object.
func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// AsArray returns the nested array and true if v is an array.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Truthy applies truthiness: null, "", 0, 0.0, false and empty
// objects/arrays are false; everything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.s != ""
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindBool:
		return v.b
	case KindObject:
		return len(v.obj) > 0
	case KindArray:
		return len(v.arr) > 0
	}
	return false
}

// Interface returns v as a plain Go value (nil, string, int64, float64,
// bool, map[string]any or []any).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindObject:
		m := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			m[k] = e.Interface()
		}
		return m
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	}
	return nil
}

// String renders v as text. Null renders as "", nested values as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindObject, KindArray:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("<%s>", v.kind)
		}
		return string(b)
	}
	return ""
}

// GoString renders v for diagnostics, quoting strings.
func (v Value) GoString() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return strconv.Quote(v.s)
	}
	return v.String()
}

// Equal reports whether v and o hold the same variant and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, e := range v.obj {
			oe, ok := o.obj[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("cannot encode %s as JSON", formatFloat(v.f))
		}
		return json.Marshal(v.f)
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			eb, err := v.obj[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(eb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler. Numbers without a fraction or
// exponent that fit in int64 decode as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = AnyValue(raw)
	return nil
}

// Record is one table row keyed by column name.
type Record map[string]Value

// ID returns the record's id field as text, or "" if it has none.
func (r Record) ID() string {
	v, ok := r["id"]
	if !ok || v.IsNull() {
		return ""
	}
	return v.String()
}

// HasID reports whether the record carries a non-null id field.
func (r Record) HasID() bool {
	v, ok := r["id"]
	return ok && !v.IsNull()
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordOf builds a Record from plain Go values using AnyValue.
func RecordOf(fields map[string]any) Record {
	r := make(Record, len(fields))
	for k, v := range fields {
		r[k] = AnyValue(v)
	}
	return r
}
