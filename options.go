package stree

import (
	"log/slog"

	"github.com/drpcorg/stree/utils"
)

type Options struct {
	// BufferSize is the initial encode buffer capacity; it doubles on
	// overflow and keeps the grown size for later calls.
	BufferSize int
	// MaxSequence caps the number of positional operations an array
	// records within one flush window before it falls back to a
	// CLEAR-and-rewrite.
	MaxSequence int
	// SkipUnknownRefs makes the decoder skip over structures whose
	// refId it does not know instead of failing with ErrRefNotFound.
	SkipUnknownRefs bool
	Logger          utils.Logger
}

func (o *Options) SetDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 8 * 1024
	}
	if o.MaxSequence <= 0 {
		o.MaxSequence = 64
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
}
