package classes

import "math"

// Normalize converts v into the Go representation of primitive p:
// string, float64 for number, bool, and the sized Go types for the
// fixed-width kinds. Integral values are accepted for any numeric kind
// as long as they fit.
func Normalize(p Primitive, v any) (any, bool) {
	switch p {
	case String:
		s, ok := v.(string)
		return s, ok
	case Boolean:
		b, ok := v.(bool)
		return b, ok
	case Number, Float64:
		f, ok := toFloat(v)
		return f, ok
	case Float32:
		f, ok := toFloat(v)
		return float32(f), ok
	case Int8:
		i, ok := toInt(v, math.MinInt8, math.MaxInt8)
		return int8(i), ok
	case Int16:
		i, ok := toInt(v, math.MinInt16, math.MaxInt16)
		return int16(i), ok
	case Int32:
		i, ok := toInt(v, math.MinInt32, math.MaxInt32)
		return int32(i), ok
	case Int64:
		i, ok := toInt(v, math.MinInt64, math.MaxInt64)
		return i, ok
	case Uint8:
		u, ok := toUint(v, math.MaxUint8)
		return uint8(u), ok
	case Uint16:
		u, ok := toUint(v, math.MaxUint16)
		return uint16(u), ok
	case Uint32:
		u, ok := toUint(v, math.MaxUint32)
		return uint32(u), ok
	case Uint64:
		u, ok := toUint(v, math.MaxUint64)
		return u, ok
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any, lo, hi int64) (int64, bool) {
	var i int64
	switch n := v.(type) {
	case int:
		i = int64(n)
	case int8:
		i = int64(n)
	case int16:
		i = int64(n)
	case int32:
		i = int64(n)
	case int64:
		i = n
	case uint8:
		i = int64(n)
	case uint16:
		i = int64(n)
	case uint32:
		i = int64(n)
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		i = int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		i = int64(n)
	case float64:
		if n != math.Trunc(n) || n < -(1<<63) || n >= 1<<63 {
			return 0, false
		}
		i = int64(n)
	case float32:
		return toInt(float64(n), lo, hi)
	default:
		return 0, false
	}
	return i, i >= lo && i <= hi
}

func toUint(v any, hi uint64) (uint64, bool) {
	var u uint64
	switch n := v.(type) {
	case uint:
		u = uint64(n)
	case uint8:
		u = uint64(n)
	case uint16:
		u = uint64(n)
	case uint32:
		u = uint64(n)
	case uint64:
		u = n
	case float64:
		if n != math.Trunc(n) || n < 0 || n >= 1<<64 {
			return 0, false
		}
		u = uint64(n)
	case float32:
		return toUint(float64(n), hi)
	default:
		i, ok := toInt(v, 0, math.MaxInt64)
		if !ok {
			return 0, false
		}
		u = uint64(i)
	}
	return u, u <= hi
}
