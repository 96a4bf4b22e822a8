package expect

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Type is the variant held by a Value.
type Type int

const (
	TypeNull Type = iota
	TypeBool
	TypeNumber
	TypeString
	TypeList
	TypeMap
)

// String returns the canonical type name used by A and An.
func (t Type) String() string {
	switch t {
	case TypeBool:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeList:
		return "array"
	case TypeMap:
		return "object"
	default:
		return "null"
	}
}

// Value is a tagged union over the shapes a response value can take. The
// zero Value is null. Map keys keep their insertion order.
type Value struct {
	typ  Type
	b    bool
	n    float64
	s    string
	list []Value
	keys []string
	m    map[string]Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

func Number(n float64) Value { return Value{typ: TypeNumber, n: n} }

func String(s string) Value { return Value{typ: TypeString, s: s} }

func List(items ...Value) Value {
	return Value{typ: TypeList, list: append([]Value{}, items...)}
}

// Map builds a map value. Keys are sorted since Go maps carry no order.
func Map(m map[string]Value) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	v := Value{typ: TypeMap, keys: keys, m: make(map[string]Value, len(m))}
	for k, item := range m {
		v.m[k] = item
	}
	return v
}

func (v Value) Type() Type { return v.typ }

func (v Value) IsNull() bool { return v.typ == TypeNull }

// Number returns the numeric payload and whether v is a number.
func (v Value) Number() (float64, bool) {
	return v.n, v.typ == TypeNumber
}

// Bool returns the boolean payload and whether v is a boolean.
func (v Value) Bool() (bool, bool) {
	return v.b, v.typ == TypeBool
}

// Items returns the elements of a list, nil otherwise.
func (v Value) Items() []Value {
	if v.typ != TypeList {
		return nil
	}
	return append([]Value(nil), v.list...)
}

// Keys returns the keys of a map in order, nil otherwise.
func (v Value) Keys() []string {
	if v.typ != TypeMap {
		return nil
	}
	return append([]string(nil), v.keys...)
}

// Get returns the entry stored under key when v is a map.
func (v Value) Get(key string) (Value, bool) {
	if v.typ != TypeMap {
		return Null(), false
	}
	item, ok := v.m[key]
	return item, ok
}

// Len returns the rune count of a string or the size of a list or map.
func (v Value) Len() (int, bool) {
	switch v.typ {
	case TypeString:
		return utf8.RuneCountInString(v.s), true
	case TypeList:
		return len(v.list), true
	case TypeMap:
		return len(v.keys), true
	default:
		return 0, false
	}
}

// Truthy reports whether v counts as true. Null, false, zero, NaN, the
// empty string and empty collections are falsy.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case TypeString:
		return v.s != ""
	case TypeList:
		return len(v.list) > 0
	case TypeMap:
		return len(v.keys) > 0
	default:
		return false
	}
}

// Equal is deep equality. Numbers compare by value and NaN equals NaN.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeBool:
		return v.b == o.b
	case TypeNumber:
		if math.IsNaN(v.n) && math.IsNaN(o.n) {
			return true
		}
		return v.n == o.n
	case TypeString:
		return v.s == o.s
	case TypeList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		if len(v.keys) != len(o.keys) {
			return false
		}
		for _, k := range v.keys {
			other, ok := o.m[k]
			if !ok || !v.m[k].Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// String is the plain text form used by Include and Match. Strings are
// returned as is; collections render as compact JSON.
func (v Value) String() string {
	if v.typ == TypeString {
		return v.s
	}
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

// Repr renders v for failure messages, quoting strings.
func (v Value) Repr() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.typ {
	case TypeNull:
		sb.WriteString("null")
	case TypeBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case TypeNumber:
		sb.WriteString(formatNumber(v.n))
	case TypeString:
		sb.WriteString(strconv.Quote(v.s))
	case TypeList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.write(sb)
		}
		sb.WriteByte(']')
	case TypeMap:
		sb.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			v.m[k].write(sb)
		}
		sb.WriteByte('}')
	}
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Interface converts v back to plain Go values: nil, bool, float64, string,
// []any and map[string]any.
func (v Value) Interface() any {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeNumber:
		return v.n
	case TypeString:
		return v.s
	case TypeList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case TypeMap:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[k] = v.m[k].Interface()
		}
		return out
	default:
		return nil
	}
}

// FromJSON parses a JSON document. Input that is not valid JSON becomes a
// string value.
func FromJSON(data []byte) Value {
	if !gjson.ValidBytes(data) {
		return String(string(data))
	}
	return FromResult(gjson.ParseBytes(data))
}

// FromResult converts a gjson result. A missing result is null.
func FromResult(r gjson.Result) Value {
	if !r.Exists() {
		return Null()
	}
	switch r.Type {
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Num)
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			v := Value{typ: TypeList, list: []Value{}}
			r.ForEach(func(_, item gjson.Result) bool {
				v.list = append(v.list, FromResult(item))
				return true
			})
			return v
		}
		v := Value{typ: TypeMap, m: map[string]Value{}}
		r.ForEach(func(key, item gjson.Result) bool {
			k := key.String()
			if _, dup := v.m[k]; !dup {
				v.keys = append(v.keys, k)
			}
			v.m[k] = FromResult(item)
			return true
		})
		return v
	default:
		return Null()
	}
}

// ValueOf converts a Go value. Unknown kinds fall back to a JSON round trip
// and then to their fmt representation.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case []byte:
		return String(string(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	case gjson.Result:
		return FromResult(t)
	case []any:
		if t == nil {
			return Null()
		}
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = ValueOf(item)
		}
		return Value{typ: TypeList, list: items}
	case map[string]any:
		if t == nil {
			return Null()
		}
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = ValueOf(item)
		}
		return Map(m)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null()
		}
		return ValueOf(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null()
		}
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = ValueOf(rv.Index(i).Interface())
		}
		return Value{typ: TypeList, list: items}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			if rv.IsNil() {
				return Null()
			}
			m := make(map[string]Value, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = ValueOf(iter.Value().Interface())
			}
			return Map(m)
		}
	}

	if data, err := json.Marshal(x); err == nil {
		return FromJSON(data)
	}
	return String(fmt.Sprint(x))
}
