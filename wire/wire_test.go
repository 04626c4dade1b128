package wire

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumber_Sizes(t *testing.T) {
	cases := []struct {
		v    float64
		size int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{-32, 1},
		{-33, 2},
		{65535, 3},
		{1 << 20, 5},
		{1 << 40, 9},
		{0.5, 5},
		{0.1, 9},
		{math.Copysign(0, -1), 9},
	}
	for _, c := range cases {
		cur := NewCursor(16)
		assert.Equal(t, c.size, PutNumber(cur, c.v), "%v", c.v)
		assert.Equal(t, c.size, cur.Offset)
		r := NewReader(cur.Bytes())
		assert.Equal(t, c.v, r.Number())
		assert.NoError(t, r.Err())
		assert.Zero(t, r.Len())
	}
}

func TestNumber_Special(t *testing.T) {
	cur := NewCursor(32)
	PutNumber(cur, math.NaN())
	PutNumber(cur, math.Inf(1))
	PutNumber(cur, math.Inf(-1))
	r := NewReader(cur.Bytes())
	assert.Equal(t, 0.0, r.Number())
	assert.Equal(t, float64(MaxSafeInteger), r.Number())
	assert.Equal(t, float64(-MaxSafeInteger), r.Number())
}

func TestInt(t *testing.T) {
	cur := NewCursor(32)
	PutUint(cur, 300)
	PutInt(cur, -1000)
	PutNumber(cur, 7)
	r := NewReader(cur.Bytes())
	assert.Equal(t, int64(300), r.Int())
	assert.Equal(t, int64(-1000), r.Int())
	assert.Equal(t, int64(7), r.Int())
	assert.NoError(t, r.Err())
}

func TestString(t *testing.T) {
	long := strings.Repeat("x", 300)
	cur := NewCursor(512)
	assert.Equal(t, 3, PutString(cur, "ab"))
	assert.Equal(t, 303, PutString(cur, long))
	PutString(cur, "")
	r := NewReader(cur.Bytes())
	assert.Equal(t, "ab", r.String())
	assert.Equal(t, long, r.String())
	assert.Equal(t, "", r.String())
	assert.NoError(t, r.Err())
}

func TestCursor_Overflow(t *testing.T) {
	cur := NewCursor(2)
	PutString(cur, "hello")
	assert.True(t, cur.Overflow())
	assert.Equal(t, 6, cur.Offset)

	r := NewReader([]byte{0xa5, 'h', 'e'})
	assert.Equal(t, "", r.String())
	assert.ErrorIs(t, r.Err(), ErrIncomplete)
	assert.Zero(t, r.Len())
}

func TestFixed(t *testing.T) {
	cur := NewCursor(32)
	PutInt16(cur, -2)
	PutUint32(cur, 1<<31)
	PutFloat32(cur, 1.5)
	PutBool(cur, true)
	r := NewReader(cur.Bytes())
	assert.Equal(t, int16(-2), r.Int16())
	assert.Equal(t, uint32(1<<31), r.Uint32())
	assert.Equal(t, float32(1.5), r.Float32())
	assert.True(t, r.Bool())
}

func TestOperation_Field(t *testing.T) {
	b := PackField(5, DeleteAndAdd)
	index, op := UnpackField(b)
	assert.Equal(t, 5, index)
	assert.Equal(t, DeleteAndAdd, op)
	assert.True(t, DeleteAndAdd.IsAdd())
	assert.True(t, DeleteAndAdd.IsDelete())
	assert.False(t, Replace.IsDelete())
	assert.True(t, AddByRefID.Known())
	assert.False(t, Operation(77).Known())
	assert.Equal(t, "DELETE_AND_ADD", DeleteAndAdd.String())
}
