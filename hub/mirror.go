package hub

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/protocol"
)

var ErrNoState = errors.New("hub: patch before the full state")

// Mirror is the receiving side: it applies the frames drained into it
// to a local copy of the state. A full frame starts over from a fresh
// tree.
type Mirror struct {
	lock     sync.Mutex
	class    *classes.Class
	registry *classes.Registry
	opts     stree.Options
	state    *stree.Struct
	dec      *stree.Decoder

	// OnReset is called with the new decoder before a full frame is
	// applied; register callbacks there.
	OnReset func(dec *stree.Decoder)
}

func NewMirror(class *classes.Class, registry *classes.Registry, opts stree.Options) *Mirror {
	opts.SetDefaults()
	return &Mirror{class: class, registry: registry, opts: opts}
}

func (m *Mirror) Drain(ctx context.Context, recs protocol.Records) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, rec := range recs {
		kind, msg, err := protocol.ParseFrame(rec)
		if err != nil {
			return err
		}
		if kind == protocol.FullFrame {
			m.state = stree.NewStruct(m.class)
			m.dec = stree.NewDecoder(m.state, m.registry, m.opts)
			if m.OnReset != nil {
				m.OnReset(m.dec)
			}
		} else if m.dec == nil {
			return ErrNoState
		}
		if _, err := m.dec.Decode(msg); err != nil {
			return errors.Wrapf(err, "frame %q", kind)
		}
	}
	return nil
}

// Read runs fn on the mirrored state; state is nil before the first
// full frame.
func (m *Mirror) Read(fn func(state *stree.Struct)) {
	m.lock.Lock()
	defer m.lock.Unlock()
	fn(m.state)
}
