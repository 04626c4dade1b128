package protocol

import (
	"github.com/pkg/errors"
)

const (
	// FullFrame carries a complete state; a mirror applies it to a
	// fresh tree.
	FullFrame byte = 'F'
	// PatchFrame carries the changes since the previous frame.
	PatchFrame byte = 'P'
)

var ErrUnknownFrame = errors.New("protocol: unknown frame kind")

// Frame wraps an encoded message into a record of the given kind.
func Frame(kind byte, msg []byte) []byte {
	return Record(kind, msg)
}

// ParseFrame splits a record produced by Frame.
func ParseFrame(rec []byte) (kind byte, msg []byte, err error) {
	kind, msg, rest, err := TakeAny(rec)
	if err != nil {
		return 0, nil, err
	}
	if len(rest) > 0 {
		return 0, nil, errors.Wrapf(ErrBadRecord, "%d trailing bytes", len(rest))
	}
	if kind != FullFrame && kind != PatchFrame {
		return 0, nil, errors.Wrapf(ErrUnknownFrame, "%q", kind)
	}
	return kind, msg, nil
}
