package wire

const (
	fixstr      = 0xa0
	fixstrMask  = 0xe0
	prefixStr8  = 0xd9
	prefixStr16 = 0xda
	prefixStr32 = 0xdb
)

func PutString(c *Cursor, s string) int {
	n := len(s)
	hdr := 1
	switch {
	case n < 0x20:
		c.Put(byte(fixstr | n))
	case n <= 0xff:
		c.Put(prefixStr8)
		c.Put(byte(n))
		hdr = 2
	case n <= 0xffff:
		c.Put(prefixStr16)
		putFixed(c, uint16(n), 2)
		hdr = 3
	default:
		c.Put(prefixStr32)
		putFixed(c, uint32(n), 4)
		hdr = 5
	}
	c.PutBytes([]byte(s))
	return hdr + n
}

func (r *Reader) String() string {
	prefix := r.Byte()
	if r.err != nil {
		return ""
	}
	var n int
	switch {
	case prefix&fixstrMask == fixstr:
		n = int(prefix & 0x1f)
	case prefix == prefixStr8:
		n = int(r.Uint8())
	case prefix == prefixStr16:
		n = int(r.Uint16())
	case prefix == prefixStr32:
		n = int(r.Uint32())
	default:
		r.fail(ErrBadPrefix)
		return ""
	}
	p := r.next(n)
	if p == nil {
		return ""
	}
	return string(p)
}
