package stree

import "errors"

var (
	ErrRefNotFound   = errors.New("stree: structure refId not found")
	ErrTypeMismatch  = errors.New("stree: value does not match the declared type")
	ErrDetached      = errors.New("stree: node is not attached to an encoder root")
	ErrIndexRange    = errors.New("stree: index out of range")
	ErrUnknownField  = errors.New("stree: unknown field")
	ErrNotCollection = errors.New("stree: type is not a collection")
)
