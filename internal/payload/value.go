// Package payload provides optional, typed access to untrusted JSON
// documents returned by upstream APIs. Every getter reports absence instead
// of failing, and object iteration follows document order so traversals are
// deterministic.
package payload

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Value wraps one JSON node. The zero Value is absent.
type Value struct {
	r gjson.Result
}

// Valid reports whether raw is syntactically valid JSON.
func Valid(raw []byte) bool {
	return gjson.ValidBytes(raw)
}

// Parse wraps raw. Invalid JSON yields an absent Value.
func Parse(raw []byte) Value {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return Value{}
	}
	return Value{r: gjson.ParseBytes(raw)}
}

// Exists reports whether the node is present (null counts as present).
func (v Value) Exists() bool { return v.r.Exists() }

// IsObject reports whether the node is a JSON object.
func (v Value) IsObject() bool { return v.r.IsObject() }

// IsArray reports whether the node is a JSON array.
func (v Value) IsArray() bool { return v.r.IsArray() }

// IsNumber reports whether v is a JSON number.
func (v Value) IsNumber() bool { return v.r.Type == gjson.Number }

// Raw returns the node's JSON text.
func (v Value) Raw() string { return v.r.Raw }

// Empty reports whether the node is absent, an empty object or an empty array.
func (v Value) Empty() bool {
	if !v.Exists() {
		return true
	}
	if !v.IsObject() && !v.IsArray() {
		return false
	}
	empty := true
	v.r.ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	return empty
}

// Get returns the member named key. Keys are matched literally; when a key
// repeats, the last occurrence wins.
func (v Value) Get(key string) Value {
	if !v.IsObject() {
		return Value{}
	}
	var found gjson.Result
	v.r.ForEach(func(k, val gjson.Result) bool {
		if k.Str == key {
			found = val
		}
		return true
	})
	return Value{r: found}
}

// Path walks nested objects by key.
func (v Value) Path(keys ...string) Value {
	cur := v
	for _, k := range keys {
		cur = cur.Get(k)
		if !cur.Exists() {
			return Value{}
		}
	}
	return cur
}

// Items returns the elements of an array node, or nil.
func (v Value) Items() []Value {
	if !v.IsArray() {
		return nil
	}
	var out []Value
	v.r.ForEach(func(_, val gjson.Result) bool {
		out = append(out, Value{r: val})
		return true
	})
	return out
}

// FirstObject returns the first object element of an array node.
func (v Value) FirstObject() Value {
	for _, item := range v.Items() {
		if item.IsObject() {
			return item
		}
	}
	return Value{}
}

// Each visits object members or array elements in document order. Array
// elements are visited with an empty key. Returning false stops iteration.
func (v Value) Each(fn func(key string, val Value) bool) {
	if !v.IsObject() && !v.IsArray() {
		return
	}
	v.r.ForEach(func(k, val gjson.Result) bool {
		return fn(k.Str, Value{r: val})
	})
}

// String returns a trimmed, non-blank JSON string.
func (v Value) String() (string, bool) {
	if v.r.Type != gjson.String {
		return "", false
	}
	s := strings.TrimSpace(v.r.Str)
	if s == "" {
		return "", false
	}
	return s, true
}

// Text is like String but also renders numbers using their JSON text.
func (v Value) Text() (string, bool) {
	if v.r.Type == gjson.Number {
		return strings.TrimSpace(v.r.Raw), true
	}
	return v.String()
}

// Int coerces numbers (truncated toward zero) and integer strings.
func (v Value) Int() (int64, bool) {
	switch v.r.Type {
	case gjson.Number:
		return numberToInt(v.r.Raw)
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.r.Str), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// LenientInt is like Int but also accepts decimal strings such as "1200.50".
func (v Value) LenientInt() (int64, bool) {
	switch v.r.Type {
	case gjson.Number:
		return numberToInt(v.r.Raw)
	case gjson.String:
		return numberToInt(strings.TrimSpace(v.r.Str))
	default:
		return 0, false
	}
}

// Float coerces numbers and numeric strings. NaN and infinities are absent.
func (v Value) Float() (float64, bool) {
	var text string
	switch v.r.Type {
	case gjson.Number:
		text = v.r.Raw
	case gjson.String:
		text = strings.TrimSpace(v.r.Str)
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FindString searches depth first for the first non-blank string stored
// under one of keys. At each object the keys are checked in the given order
// before descending into member values in document order.
func (v Value) FindString(keys ...string) (string, bool) {
	switch {
	case v.IsObject():
		for _, k := range keys {
			if s, ok := v.Get(k).String(); ok {
				return s, true
			}
		}
		var (
			out   string
			found bool
		)
		v.Each(func(_ string, child Value) bool {
			out, found = child.FindString(keys...)
			return !found
		})
		return out, found
	case v.IsArray():
		for _, item := range v.Items() {
			if s, ok := item.FindString(keys...); ok {
				return s, true
			}
		}
	}
	return "", false
}

func numberToInt(text string) (int64, bool) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
