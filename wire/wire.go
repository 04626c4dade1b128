// Package wire holds the binary primitives of the stree protocol:
// msgpack-derived self-describing numbers and strings, fixed-width
// little-endian scalars, operation codes and structure markers.
//
// Encoding writes through a Cursor over a fixed-capacity buffer. A write
// past the capacity is counted but not stored, so an encoder can finish a
// pass, notice Overflow() and redo the pass into a bigger buffer.
// Decoding reads through a Reader with a sticky error: once the input is
// exhausted every read returns a zero value and Err() reports it.
package wire

import "errors"

var (
	ErrIncomplete = errors.New("wire: incomplete data")
	ErrBadPrefix  = errors.New("wire: bad value prefix")
)

// Cursor is an encoding position over a fixed-capacity buffer.
type Cursor struct {
	Buf    []byte
	Offset int
}

func NewCursor(size int) *Cursor {
	return &Cursor{Buf: make([]byte, size)}
}

func (c *Cursor) Put(b byte) {
	if c.Offset < len(c.Buf) {
		c.Buf[c.Offset] = b
	}
	c.Offset++
}

func (c *Cursor) PutBytes(p []byte) {
	if c.Offset < len(c.Buf) {
		copy(c.Buf[c.Offset:], p)
	}
	c.Offset += len(p)
}

// Overflow reports whether some writes did not fit into Buf.
func (c *Cursor) Overflow() bool {
	return c.Offset > len(c.Buf)
}

// Bytes returns the written prefix; meaningless after an overflow.
func (c *Cursor) Bytes() []byte {
	if c.Overflow() {
		return c.Buf
	}
	return c.Buf[:c.Offset]
}

// Reader is a decoding position with a sticky error.
type Reader struct {
	Buf    []byte
	Offset int
	err    error
}

func NewReader(data []byte) *Reader {
	return &Reader{Buf: data}
}

func (r *Reader) Err() error {
	return r.err
}

// Len is the number of unread bytes.
func (r *Reader) Len() int {
	if r.Offset >= len(r.Buf) {
		return 0
	}
	return len(r.Buf) - r.Offset
}

// Peek returns the next byte without consuming it.
func (r *Reader) Peek() (b byte, ok bool) {
	if r.err != nil || r.Offset >= len(r.Buf) {
		return 0, false
	}
	return r.Buf[r.Offset], true
}

func (r *Reader) Byte() byte {
	p := r.next(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// Skip advances by n bytes, clamped to the end of input.
func (r *Reader) Skip(n int) {
	r.Offset += n
	if r.Offset > len(r.Buf) {
		r.Offset = len(r.Buf)
	}
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.Offset+n > len(r.Buf) {
		r.fail(ErrIncomplete)
		r.Offset = len(r.Buf)
		return nil
	}
	p := r.Buf[r.Offset : r.Offset+n]
	r.Offset += n
	return p
}
