// Framing is based on ToyTLV (MIT licence) written by Victor Grishchenko in 2024
// Original project: https://github.com/learn-decentralized-systems/toytlv

/*
Package protocol frames encoded state messages for a byte stream.

# TLV records

Every message travels as a Type-Length-Value record; the header form
depends on the body size:

 1. Tiny (1 byte) for bodies of 0-9 bytes with a lowercase type:
    ['0' + body_length]. The type is lost, readers see '0'.
 2. Short (2 bytes) for bodies up to 255 bytes:
    [lowercase_type, body_length]
 3. Long (5 bytes) for bodies up to 2GB:
    [uppercase_type, length as 4 byte little-endian]

Record types are letters A-Z. Passing an uppercase type disables the tiny
form, which state frames always do: a frame must keep its kind.

# Frames

A frame is a record of kind FullFrame ('F', a complete snapshot a fresh
mirror starts from) or PatchFrame ('P', a delta over the previous
frames). See Frame and ParseFrame.
*/
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const CaseBit uint8 = 'a' - 'A'

var (
	ErrIncomplete = errors.New("protocol: incomplete data")
	ErrBadRecord  = errors.New("protocol: bad TLV record format")
)

// ProbeHeader reads a record header: lit is the record type ('A'-'Z',
// '0' for tiny, '-' for a bad header, 0 for an incomplete one).
func ProbeHeader(data []byte) (lit byte, hdrlen, bodylen int) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	dlit := data[0]
	switch {
	case dlit >= '0' && dlit <= '9':
		return '0', 1, int(dlit - '0')
	case dlit >= 'a' && dlit <= 'z':
		if len(data) < 2 {
			return 0, 0, 0
		}
		return dlit - CaseBit, 2, int(data[1])
	case dlit >= 'A' && dlit <= 'Z':
		if len(data) < 5 {
			return 0, 0, 0
		}
		bl := binary.LittleEndian.Uint32(data[1:5])
		if bl > 0x7fffffff {
			return '-', 0, 0
		}
		return dlit, 5, int(bl)
	}
	return '-', 0, 0
}

// Split consumes the complete records at the front of data. A partial
// record at the end stays in the buffer for the next call.
func Split(data *bytes.Buffer) (recs Records, err error) {
	for data.Len() > 0 {
		lit, hlen, blen := ProbeHeader(data.Bytes())
		if lit == '-' {
			if len(recs) == 0 {
				err = ErrBadRecord
			}
			return
		}
		if lit == 0 || hlen+blen > data.Len() {
			return
		}
		record := make([]byte, hlen+blen)
		_, _ = data.Read(record)
		recs = append(recs, record)
	}
	return
}

// AppendHeader appends a record header for a body of bodylen bytes.
// A lowercase lit allows the tiny form.
func AppendHeader(into []byte, lit byte, bodylen int) []byte {
	biglit := lit &^ CaseBit
	if biglit < 'A' || biglit > 'Z' {
		panic("TLV record type is A..Z")
	}
	switch {
	case bodylen < 10 && (lit&CaseBit) != 0:
		return append(into, byte('0'+bodylen))
	case bodylen > 0xff:
		if bodylen > 0x7fffffff {
			panic("oversized TLV record")
		}
		into = append(into, biglit)
		return binary.LittleEndian.AppendUint32(into, uint32(bodylen))
	}
	return append(into, biglit|CaseBit, byte(bodylen))
}

// Take extracts a record of type lit. An incomplete record returns
// (nil, data, ErrIncomplete), a record of another type ErrBadRecord.
func Take(lit byte, data []byte) (body, rest []byte, err error) {
	flit, hdrlen, bodylen := ProbeHeader(data)
	if flit == 0 || hdrlen+bodylen > len(data) {
		return nil, data, ErrIncomplete
	}
	if flit != lit && flit != '0' {
		return nil, nil, ErrBadRecord
	}
	return data[hdrlen : hdrlen+bodylen], data[hdrlen+bodylen:], nil
}

// TakeAny extracts the next record whatever its type.
func TakeAny(data []byte) (lit byte, body, rest []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil, ErrIncomplete
	}
	lit, _, _ = ProbeHeader(data)
	if lit == '-' {
		return 0, nil, nil, ErrBadRecord
	}
	body, rest, err = Take(lit, data)
	return
}

// Append appends a complete record made of the body pieces.
func Append(into []byte, lit byte, body ...[]byte) []byte {
	into = AppendHeader(into, lit, Records(body).TotalLen())
	for _, b := range body {
		into = append(into, b...)
	}
	return into
}

// Record builds a record in a buffer of its own.
func Record(lit byte, body ...[]byte) []byte {
	total := Records(body).TotalLen()
	return Append(make([]byte, 0, total+5), lit, body...)
}

// OpenHeader starts a record whose length is not known yet; the body
// is appended to the returned buffer and CloseHeader fills the length.
// It always uses the long form.
func OpenHeader(buf []byte, lit byte) (bookmark int, res []byte) {
	lit &= ^CaseBit
	if lit < 'A' || lit > 'Z' {
		panic("TLV record type is A..Z")
	}
	res = append(buf, lit, 0, 0, 0, 0)
	return len(res), res
}

func CloseHeader(buf []byte, bookmark int) {
	if bookmark < 5 || len(buf) < bookmark {
		panic("CloseHeader needs the bookmark of OpenHeader")
	}
	binary.LittleEndian.PutUint32(buf[bookmark-4:bookmark], uint32(len(buf)-bookmark))
}
