package hub

import (
	"time"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/snapshots"
)

type Options struct {
	stree.Options

	// QueueLimit bounds the bytes queued for one client; a client that
	// stays over it for QueueTimeout is dropped.
	QueueLimit   int
	QueueTimeout time.Duration
	// BatchSize is the most bytes a client Feed returns at once.
	BatchSize int

	// Store and Name are where Checkpoint writes the state.
	Store *snapshots.Store
	Name  string
}

func (o *Options) SetDefaults() {
	o.Options.SetDefaults()
	if o.QueueLimit <= 0 {
		o.QueueLimit = 1 << 20
	}
	if o.QueueTimeout <= 0 {
		o.QueueTimeout = 100 * time.Millisecond
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64 << 10
	}
	if o.Name == "" {
		o.Name = "state"
	}
}
