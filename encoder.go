package stree

import (
	"slices"

	"github.com/drpcorg/stree/utils"
	"github.com/drpcorg/stree/wire"
)

// Encoder turns the pending changes of one state tree into patches.
//
// A broadcast cycle is: Encode once for the changes everyone sees,
// EncodeView per observer with the shared bytes as prefix, then
// DiscardChanges. Without views Encode alone is enough.
type Encoder struct {
	state Ref
	root  *Root
	opts  Options
	log   utils.Logger
	buf   []byte
}

func NewEncoder(state Ref, opts Options) *Encoder {
	opts.SetDefaults()
	e := &Encoder{
		state: state,
		root:  newRoot(opts.MaxSequence),
		opts:  opts,
		log:   opts.Logger,
		buf:   make([]byte, opts.BufferSize),
	}
	e.root.add(state.Tree())
	return e
}

func (e *Encoder) State() Ref {
	return e.state
}

func (e *Encoder) Root() *Root {
	return e.root
}

func (e *Encoder) HasChanges() bool {
	return e.root.changes.len() > 0 || e.root.filteredChanges.len() > 0
}

// Encode writes the pending changes every observer sees and clears
// them. Changes of view-scoped fields are kept for EncodeView.
func (e *Encoder) Encode() ([]byte, error) {
	out, err := e.run(modeDelta, nil, func(p *pass) error {
		p.skipRoot = true
		for _, t := range e.root.changes.items() {
			if t == nil {
				continue
			}
			if err := p.pending(t, &t.changes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, t := range e.root.changes.items() {
		if t != nil {
			t.discard(false)
		}
	}
	e.root.changes.clear()
	return out, nil
}

// EncodeAll writes the full shared state, e.g. for a joining observer.
func (e *Encoder) EncodeAll() ([]byte, error) {
	return e.run(modeFull, nil, func(p *pass) error {
		p.skipRoot = true
		for _, t := range e.root.attached.items() {
			if t == nil || t.isFiltered {
				continue
			}
			if err := p.whole(t); err != nil {
				return err
			}
		}
		return nil
	})
}

// EncodeView appends to shared what view alone may see: its pending
// visibility changes, then the filtered changes visible to it.
func (e *Encoder) EncodeView(view *StateView, shared []byte) ([]byte, error) {
	out, err := e.run(modeView, shared, func(p *pass) error {
		p.view = view
		p.filtered = true
		p.emitted = make(map[[2]int]struct{})
		if err := p.viewChanges(e.root); err != nil {
			return err
		}
		for _, t := range e.root.filteredChanges.items() {
			if t == nil {
				continue
			}
			if !view.isVisible(t) {
				view.invisible[t.refID] = struct{}{}
				continue
			}
			if err := p.pending(t, &t.filteredChanges); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	view.clearChanges()
	return out, nil
}

// EncodeAllView appends to sharedAll (an EncodeAll result) the full
// view-scoped state visible to view.
func (e *Encoder) EncodeAllView(view *StateView, sharedAll []byte) ([]byte, error) {
	out, err := e.run(modeFullView, sharedAll, func(p *pass) error {
		p.view = view
		p.filtered = true
		for _, t := range e.root.attached.items() {
			if t == nil || !(t.isFiltered || t.isPartiallyFiltered) {
				continue
			}
			if !view.isVisible(t) {
				view.invisible[t.refID] = struct{}{}
				continue
			}
			if err := p.whole(t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	view.clearChanges()
	return out, nil
}

// DiscardChanges drops every pending change, shared and view-scoped;
// call it once all views got their EncodeView.
func (e *Encoder) DiscardChanges() {
	for _, t := range e.root.changes.items() {
		if t != nil {
			t.discard(false)
		}
	}
	for _, t := range e.root.filteredChanges.items() {
		if t != nil {
			t.discard(true)
		}
	}
	e.root.changes.clear()
	e.root.filteredChanges.clear()
}

// run executes fill over the encode buffer, doubling the buffer and
// starting over until the output fits.
func (e *Encoder) run(mode string, prefix []byte, fill func(p *pass) error) ([]byte, error) {
	for {
		c := &wire.Cursor{Buf: e.buf}
		c.PutBytes(prefix)
		p := &pass{c: c, first: true}
		if err := fill(p); err != nil {
			return nil, err
		}
		EncodePasses.WithLabelValues(mode).Inc()
		if !c.Overflow() {
			out := slices.Clone(c.Bytes())
			EncodedBytes.WithLabelValues(mode).Add(float64(len(out) - len(prefix)))
			return out, nil
		}
		size := max(len(e.buf)*2, 64)
		for size < c.Offset {
			size *= 2
		}
		e.log.Debug("encode buffer grown", "mode", mode, "from", len(e.buf), "to", size)
		EncodeBufferGrowths.Inc()
		e.buf = make([]byte, size)
	}
}
