package wire

import (
	"math"

	"golang.org/x/exp/constraints"
)

const MaxSafeInteger = 1<<53 - 1

const (
	prefixFloat32 = 0xca
	prefixFloat64 = 0xcb
	prefixUint8   = 0xcc
	prefixUint16  = 0xcd
	prefixUint32  = 0xce
	prefixUint64  = 0xcf
	prefixInt8    = 0xd0
	prefixInt16   = 0xd1
	prefixInt32   = 0xd2
	prefixInt64   = 0xd3
	negFixint     = 0xe0
)

// PutNumber writes v in the smallest self-describing form.
// NaN is written as 0, infinities as +/-MaxSafeInteger.
func PutNumber(c *Cursor, v float64) int {
	switch {
	case math.IsNaN(v):
		v = 0
	case math.IsInf(v, 1):
		v = MaxSafeInteger
	case math.IsInf(v, -1):
		v = -MaxSafeInteger
	}
	if v != math.Trunc(v) || v >= 1<<63 || v < -(1<<63) {
		if float64(float32(v)) == v {
			c.Put(prefixFloat32)
			PutFloat32(c, float32(v))
			return 5
		}
		c.Put(prefixFloat64)
		PutFloat64(c, v)
		return 9
	}
	if v == 0 && math.Signbit(v) {
		// keep the sign of negative zero
		c.Put(prefixFloat64)
		PutFloat64(c, v)
		return 9
	}
	return PutInt(c, int64(v))
}

// PutInt writes an integer as a number.
func PutInt(c *Cursor, v int64) int {
	if v >= 0 {
		return PutUint(c, uint64(v))
	}
	switch {
	case v >= -0x20:
		c.Put(byte(negFixint | (v + 0x20)))
		return 1
	case v >= math.MinInt8:
		c.Put(prefixInt8)
		putFixed(c, v, 1)
		return 2
	case v >= math.MinInt16:
		c.Put(prefixInt16)
		putFixed(c, v, 2)
		return 3
	case v >= math.MinInt32:
		c.Put(prefixInt32)
		putFixed(c, v, 4)
		return 5
	}
	c.Put(prefixInt64)
	putFixed(c, v, 8)
	return 9
}

// PutUint writes a non-negative integer as a number; refIds and slot
// indexes use it.
func PutUint(c *Cursor, v uint64) int {
	switch {
	case v < 0x80:
		c.Put(byte(v))
		return 1
	case v <= math.MaxUint8:
		c.Put(prefixUint8)
		c.Put(byte(v))
		return 2
	case v <= math.MaxUint16:
		c.Put(prefixUint16)
		putFixed(c, v, 2)
		return 3
	case v <= math.MaxUint32:
		c.Put(prefixUint32)
		putFixed(c, v, 4)
		return 5
	}
	c.Put(prefixUint64)
	putFixed(c, v, 8)
	return 9
}

// Number reads a self-describing number.
func (r *Reader) Number() float64 {
	prefix := r.Byte()
	if r.err != nil {
		return 0
	}
	switch {
	case prefix < 0x80:
		return float64(prefix)
	case prefix >= negFixint:
		return float64(int8(prefix))
	}
	switch prefix {
	case prefixFloat32:
		return float64(r.Float32())
	case prefixFloat64:
		return r.Float64()
	case prefixUint8:
		return float64(fixed[uint8](r, 1))
	case prefixUint16:
		return float64(fixed[uint16](r, 2))
	case prefixUint32:
		return float64(fixed[uint32](r, 4))
	case prefixUint64:
		return float64(fixed[uint64](r, 8))
	case prefixInt8:
		return float64(fixed[int8](r, 1))
	case prefixInt16:
		return float64(fixed[int16](r, 2))
	case prefixInt32:
		return float64(fixed[int32](r, 4))
	case prefixInt64:
		return float64(fixed[int64](r, 8))
	}
	r.fail(ErrBadPrefix)
	return 0
}

// Int reads a number that is expected to be integral (refIds, indexes)
// without a float round trip for the integer encodings.
func (r *Reader) Int() int64 {
	prefix, ok := r.Peek()
	if !ok {
		r.fail(ErrIncomplete)
		return 0
	}
	switch {
	case prefix < 0x80:
		r.Offset++
		return int64(prefix)
	case prefix >= negFixint:
		r.Offset++
		return int64(int8(prefix))
	}
	switch prefix {
	case prefixUint8, prefixUint16, prefixUint32, prefixUint64:
		r.Offset++
		size := 1 << (prefix - prefixUint8)
		return int64(fixed[uint64](r, size))
	case prefixInt8:
		r.Offset++
		return int64(fixed[int8](r, 1))
	case prefixInt16:
		r.Offset++
		return int64(fixed[int16](r, 2))
	case prefixInt32:
		r.Offset++
		return int64(fixed[int32](r, 4))
	case prefixInt64:
		r.Offset++
		return fixed[int64](r, 8)
	}
	return int64(r.Number())
}

func putFixed[T constraints.Integer](c *Cursor, v T, size int) {
	u := uint64(v)
	for i := 0; i < size; i++ {
		c.Put(byte(u))
		u >>= 8
	}
}

func fixed[T constraints.Integer](r *Reader, size int) T {
	p := r.next(size)
	if p == nil {
		return 0
	}
	var u uint64
	for i := size - 1; i >= 0; i-- {
		u = u<<8 | uint64(p[i])
	}
	return T(u)
}

func PutInt8(c *Cursor, v int8)     { putFixed(c, v, 1) }
func PutUint8(c *Cursor, v uint8)   { putFixed(c, v, 1) }
func PutInt16(c *Cursor, v int16)   { putFixed(c, v, 2) }
func PutUint16(c *Cursor, v uint16) { putFixed(c, v, 2) }
func PutInt32(c *Cursor, v int32)   { putFixed(c, v, 4) }
func PutUint32(c *Cursor, v uint32) { putFixed(c, v, 4) }
func PutInt64(c *Cursor, v int64)   { putFixed(c, v, 8) }
func PutUint64(c *Cursor, v uint64) { putFixed(c, v, 8) }

func PutFloat32(c *Cursor, v float32) { putFixed(c, math.Float32bits(v), 4) }
func PutFloat64(c *Cursor, v float64) { putFixed(c, math.Float64bits(v), 8) }

func PutBool(c *Cursor, v bool) {
	if v {
		c.Put(1)
	} else {
		c.Put(0)
	}
}

func (r *Reader) Int8() int8     { return fixed[int8](r, 1) }
func (r *Reader) Uint8() uint8   { return fixed[uint8](r, 1) }
func (r *Reader) Int16() int16   { return fixed[int16](r, 2) }
func (r *Reader) Uint16() uint16 { return fixed[uint16](r, 2) }
func (r *Reader) Int32() int32   { return fixed[int32](r, 4) }
func (r *Reader) Uint32() uint32 { return fixed[uint32](r, 4) }
func (r *Reader) Int64() int64   { return fixed[int64](r, 8) }
func (r *Reader) Uint64() uint64 { return fixed[uint64](r, 8) }

func (r *Reader) Float32() float32 { return math.Float32frombits(fixed[uint32](r, 4)) }
func (r *Reader) Float64() float64 { return math.Float64frombits(fixed[uint64](r, 8)) }

func (r *Reader) Bool() bool { return r.Uint8() != 0 }
