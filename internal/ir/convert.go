package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"
)

// FromAny converts a Go value, typically decoded from YAML or JSON, into a
// Value. Values that are already a Value are returned unchanged.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return fromString(val)
	case bool:
		return Bool(val), nil
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
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number %s is not an integer", val)
		}
		return Int(n), nil
	case []string:
		list := make(List, len(val))
		for i, s := range val {
			iv, err := fromString(s)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = iv
		}
		return list, nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			iv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = iv
		}
		return list, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, elem := range val {
			if !utf8.ValidString(k) {
				return nil, fmt.Errorf("key %q: invalid UTF-8", k)
			}
			iv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			m[k] = iv
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value type: %T", v)
	}
}

// fromString rejects invalid UTF-8, which JSON cannot carry unchanged.
func fromString(s string) (Value, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("string %q: invalid UTF-8", s)
	}
	return String(s), nil
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

func fromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("floats are forbidden: %v", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("number %v overflows int64", f)
	}
	return Int(int64(f)), nil
}

// ToAny converts a Value back to plain Go types (string, int64, bool, nil,
// []any, map[string]any) for encoding with other libraries.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Map:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}
