package stree

import (
	"slices"

	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/utils"
	"github.com/drpcorg/stree/wire"
	"github.com/pkg/errors"
)

// DataChange is one applied change of a decoded patch. Field names the
// record field; DynamicIndex is the array index, map key or slot of a
// collection item.
type DataChange struct {
	Ref           Ref
	RefID         int
	Op            wire.Operation
	Field         string
	DynamicIndex  any
	Value         any
	PreviousValue any
}

// Decoder applies patches to a mirror tree.
type Decoder struct {
	state     Ref
	registry  *classes.Registry
	tracker   *ReferenceTracker
	callbacks *Callbacks
	opts      Options
	log       utils.Logger
}

func NewDecoder(state Ref, registry *classes.Registry, opts Options) *Decoder {
	opts.SetDefaults()
	d := &Decoder{
		state:     state,
		registry:  registry,
		tracker:   newReferenceTracker(opts.Logger),
		callbacks: newCallbacks(),
		opts:      opts,
		log:       opts.Logger,
	}
	d.tracker.onCollect = d.callbacks.collected
	d.tracker.add(0, state, true)
	return d
}

func (d *Decoder) State() Ref {
	return d.state
}

func (d *Decoder) Tracker() *ReferenceTracker {
	return d.tracker
}

func (d *Decoder) Callbacks() *Callbacks {
	return d.callbacks
}

// Decode applies one patch. Definition mismatches are logged and
// skipped up to the next known structure; a truncated patch is applied
// up to its last complete operation. An unknown structure aborts with
// an error, after which the changes applied so far are returned but no
// callbacks fire.
func (d *Decoder) Decode(data []byte) ([]DataChange, error) {
	st := &decodeState{
		d:       d,
		r:       wire.NewReader(data),
		cur:     d.state,
		touched: make(map[*Array]struct{}),
	}
	err := st.run()
	st.compact()
	DecodedChanges.Add(float64(len(st.changes)))
	if err == nil {
		d.callbacks.dispatch(st.changes)
	}
	CollectedRefs.Add(float64(d.tracker.collect()))
	return st.changes, err
}

type decodeState struct {
	d       *Decoder
	r       *wire.Reader
	cur     Ref
	changes []DataChange
	touched map[*Array]struct{}
}

func (st *decodeState) run() error {
	r := st.r
	for r.Len() > 0 {
		if b, _ := r.Peek(); b == wire.SwitchToStructure {
			r.Byte()
			refID := int(r.Int())
			if r.Err() != nil {
				st.truncated()
				return nil
			}
			ref, ok := st.d.tracker.Get(refID)
			if !ok {
				if !st.d.opts.SkipUnknownRefs {
					return errors.Wrapf(ErrRefNotFound, "refId %d", refID)
				}
				st.d.log.Warn("skipping unknown structure", "refId", refID)
				DecodeMismatches.WithLabelValues("structure").Inc()
				st.resync()
				continue
			}
			st.cur = ref
			continue
		}
		var ok bool
		switch n := st.cur.(type) {
		case *Struct:
			ok = st.field(n)
		case *Array:
			st.touched[n] = struct{}{}
			ok = st.arrayOp(n)
		case *Map:
			ok = st.mapOp(n)
		case *Set:
			ok = st.slotOp(n, &n.slotted)
		case *Collection:
			ok = st.slotOp(n, &n.slotted)
		}
		if r.Err() != nil {
			st.truncated()
			return nil
		}
		if !ok {
			DecodeMismatches.WithLabelValues("definition").Inc()
			st.resync()
		}
	}
	return nil
}

// truncated drops the incomplete tail of the patch; operations before
// it stay applied.
func (st *decodeState) truncated() {
	st.d.log.Warn("truncated patch", "refId", st.cur.Tree().refID, "offset", st.r.Offset, "len", len(st.r.Buf))
	DecodeMismatches.WithLabelValues("truncated").Inc()
}

// resync moves to the next structure switch that names a known refId.
func (st *decodeState) resync() {
	buf := st.r.Buf
	for i := st.r.Offset; i < len(buf); i++ {
		if buf[i] != wire.SwitchToStructure {
			continue
		}
		next := wire.NewReader(buf[i+1:])
		refID := int(next.Int())
		if next.Err() != nil {
			continue
		}
		if _, ok := st.d.tracker.Get(refID); ok {
			st.r.Offset = i
			return
		}
	}
	st.r.Offset = len(buf)
}

// compact closes the holes DELETE left in arrays.
func (st *decodeState) compact() {
	for a := range st.touched {
		a.items = slices.DeleteFunc(a.items, func(v any) bool { return v == nil })
	}
}

func (st *decodeState) record(ref Ref, op wire.Operation, field string, index, value, prev any) {
	st.changes = append(st.changes, DataChange{
		Ref:           ref,
		RefID:         ref.Tree().refID,
		Op:            op,
		Field:         field,
		DynamicIndex:  index,
		Value:         value,
		PreviousValue: prev,
	})
}

func (st *decodeState) release(v any) {
	if r, ok := v.(Ref); ok {
		st.d.tracker.removeRef(r.Tree().refID)
	}
}
