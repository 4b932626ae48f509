package bitwire

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Tree is a decoded value tree. Values are uint64 (unsigned and bit
// fields), int64, float64, string, []any or Tree, unless a formatter
// produced something else.
type Tree map[string]any

// Uint returns the named value as an unsigned integer.
func (t Tree) Uint(name string) (uint64, bool) {
	v, ok := t[name]
	if !ok {
		return 0, false
	}
	n, err := toUint64(v)
	return n, err == nil
}

// Int returns the named value as a signed integer.
func (t Tree) Int(name string) (int64, bool) {
	v, ok := t[name]
	if !ok {
		return 0, false
	}
	n, err := toInt64(v)
	return n, err == nil
}

// Str returns the named value if it is a string.
func (t Tree) Str(name string) (string, bool) {
	s, ok := t[name].(string)
	return s, ok
}

// Sub returns the named nested tree.
func (t Tree) Sub(name string) (Tree, bool) {
	return asTree(t[name])
}

func asTree(v any) (Tree, bool) {
	switch m := v.(type) {
	case Tree:
		return m, true
	case map[string]any:
		return Tree(m), true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	s := make([]any, rv.Len())
	for i := range s {
		s[i] = rv.Index(i).Interface()
	}
	return s, true
}

// Assertion checks a decoded or encoded value.
type Assertion func(v any) bool

// Transform converts a field value. A formatter maps the raw decoded value
// to the stored one; an encoder maps it back.
type Transform func(v any) (any, error)

// Hooks are the optional per-field callbacks. Only primitives, bit entries
// and strings carry them.
type Hooks struct {
	Assert    Assertion
	Formatter Transform
	Encoder   Transform
}

// decoded applies the assertion then the formatter to a raw value.
func (h *Hooks) decoded(raw any) (any, error) {
	if h.Assert != nil && !h.Assert(raw) {
		return nil, fmt.Errorf("%w: got %v", ErrAssertion, raw)
	}
	if h.Formatter != nil {
		return h.Formatter(raw)
	}
	return raw, nil
}

// encoded applies the encoder then the assertion to a stored value.
func (h *Hooks) encoded(v any) (any, error) {
	raw := v
	if h.Encoder != nil {
		var err error
		if raw, err = h.Encoder(v); err != nil {
			return nil, err
		}
	}
	if h.Assert != nil && !h.Assert(raw) {
		return nil, fmt.Errorf("%w: got %v", ErrAssertion, raw)
	}
	return raw, nil
}

// Equals returns an Assertion comparing against a literal. Numbers compare
// by value regardless of Go type; strings compare exactly.
func Equals(want any) Assertion {
	return func(got any) bool {
		return ValuesEqual(got, want)
	}
}

// ValuesEqual reports whether a and b hold the same number or string.
// Other values are compared with reflect.DeepEqual.
func ValuesEqual(a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	na, nb := normalizeNumber(a), normalizeNumber(b)
	if na == nil || nb == nil {
		return reflect.DeepEqual(a, b)
	}
	switch x := na.(type) {
	case float64:
		y, err := toFloat64(nb)
		return err == nil && x == y
	case int64:
		if y, ok := nb.(float64); ok {
			return float64(x) == y
		}
		y, err := toInt64(nb)
		return err == nil && x == y
	case uint64:
		if y, ok := nb.(float64); ok {
			return float64(x) == y
		}
		y, err := toUint64(nb)
		return err == nil && x == y
	}
	return false
}

// normalizeNumber returns v as int64, uint64 or float64, or nil when v is
// not a number.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return uint64(n)
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	case float32:
		return float64(n)
	case float64:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return u
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return nil
}

// AsUint converts a number of any Go numeric type, or a json.Number, to
// uint64. It fails with ErrType for non-numbers and ErrRange for negative or
// fractional values.
func AsUint(v any) (uint64, error) {
	return toUint64(v)
}

// AsInt is like AsUint for signed values.
func AsInt(v any) (int64, error) {
	return toInt64(v)
}

func toUint64(v any) (uint64, error) {
	switch n := normalizeNumber(v).(type) {
	case uint64:
		return n, nil
	case int64:
		if n >= 0 {
			return uint64(n), nil
		}
	case float64:
		if n >= 0 && n < math.MaxUint64 && n == math.Trunc(n) {
			return uint64(n), nil
		}
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrType, v)
	}
	return 0, fmt.Errorf("%w: %v is not an unsigned integer", ErrRange, v)
}

func toInt64(v any) (int64, error) {
	switch n := normalizeNumber(v).(type) {
	case int64:
		return n, nil
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), nil
		}
	case float64:
		if n >= math.MinInt64 && n < math.MaxInt64 && n == math.Trunc(n) {
			return int64(n), nil
		}
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrType, v)
	}
	return 0, fmt.Errorf("%w: %v is not an integer", ErrRange, v)
}

func toFloat64(v any) (float64, error) {
	switch n := normalizeNumber(v).(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %T is not a number", ErrType, v)
}

func toInt(v any) (int, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: length %d", ErrRange, n)
	}
	return int(n), nil
}
