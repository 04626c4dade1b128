package stree

import (
	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
	"github.com/pkg/errors"
)

// pass is one walk over the dirty trees writing into a cursor.
type pass struct {
	c        *wire.Cursor
	view     *StateView
	filtered bool
	skipRoot bool
	first    bool

	cur       *ChangeTree
	opened    bool
	rewriting bool
	// viewing disables filters for the explicit changes of a view
	viewing bool
	emitted map[[2]int]struct{}
}

func (p *pass) begin(t *ChangeTree) {
	p.cur = t
	p.opened = false
}

// open writes the structure switch before the first byte of a tree.
// The leading root of a message needs none, the decoder starts there.
func (p *pass) open() {
	if p.opened {
		return
	}
	p.opened = true
	if p.first && p.skipRoot && p.cur.refID == 0 {
		p.first = false
		return
	}
	p.first = false
	p.c.Put(wire.SwitchToStructure)
	wire.PutUint(p.c, uint64(p.cur.refID))
}

func (p *pass) pending(t *ChangeTree, cs *changeSet) error {
	p.begin(t)
	if t.rewrite {
		return p.rewrite(t)
	}
	for _, c := range cs.list {
		if p.emitted != nil && !c.seq && c.index >= 0 {
			if _, ok := p.emitted[[2]int{t.refID, c.index}]; ok {
				continue
			}
		}
		if err := p.entry(t, c); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) rewrite(t *ChangeTree) error {
	p.rewriting = true
	defer func() { p.rewriting = false }()
	p.open()
	p.c.Put(byte(wire.Clear))
	var err error
	t.ref.forEachIndex(func(index int) {
		if err == nil {
			err = p.entry(t, change{index: index, op: wire.Add})
		}
	})
	return err
}

// whole writes every present value of t's partition as ADD.
func (p *pass) whole(t *ChangeTree) error {
	p.begin(t)
	p.rewriting = true
	defer func() { p.rewriting = false }()
	var err error
	t.ref.forEachIndex(func(index int) {
		if err != nil {
			return
		}
		if _, filtered := t.pendingFor(index); filtered != p.filtered {
			return
		}
		err = p.entry(t, change{index: index, op: wire.Add})
	})
	if err != nil {
		return err
	}
	// a fresh receiver starts from the class defaults
	if s, ok := t.ref.(*Struct); ok {
		for i, v := range s.values {
			if v != nil || s.class.Fields[i].Default == nil {
				continue
			}
			if _, filtered := t.pendingFor(i); filtered != p.filtered {
				continue
			}
			if err := p.entry(t, change{index: i, op: wire.Delete}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *pass) viewChanges(root *Root) error {
	p.viewing = true
	defer func() { p.viewing = false }()
	for _, id := range p.view.order {
		t := root.trees[id]
		cs := p.view.changes[id]
		if t == nil || cs == nil {
			continue
		}
		p.begin(t)
		for _, c := range cs.list {
			if err := p.entry(t, c); err != nil {
				return err
			}
			p.emitted[[2]int{id, c.index}] = struct{}{}
		}
	}
	return nil
}

func (p *pass) entry(t *ChangeTree, c change) error {
	if s, ok := t.ref.(*Struct); ok {
		return p.field(t, s, c)
	}
	return p.item(t, c)
}

func (p *pass) field(t *ChangeTree, s *Struct, c change) error {
	v := s.values[c.index]
	if p.filtered && p.view != nil && !p.viewing && !p.view.fieldVisible(t, c.index, v, c.prev) {
		return nil
	}
	op := c.op
	if v == nil {
		op = wire.Delete
	}
	p.open()
	if op == wire.Delete {
		p.c.Put(wire.PackField(c.index, wire.Delete))
		return nil
	}
	if op == wire.DeleteAndAdd && c.index == wire.MaxFieldIndex {
		// 0xFF is the structure switch marker
		p.c.Put(wire.PackField(c.index, wire.Delete))
		op = wire.Add
	}
	p.c.Put(wire.PackField(c.index, op))
	return p.value(s.typeAt(c.index), v)
}

func isPureDelete(op wire.Operation) bool {
	return op == wire.Delete || op == wire.DeleteAndMove
}

func (p *pass) item(t *ChangeTree, c change) error {
	op := c.op
	switch op {
	case wire.Clear, wire.Reverse:
		p.open()
		p.c.Put(byte(op))
		return nil
	case wire.Move:
		p.open()
		p.c.Put(byte(op))
		wire.PutUint(p.c, uint64(c.index))
		wire.PutUint(p.c, uint64(c.to))
		return nil
	}
	child := t.ref.typeAt(c.index)
	v := c.value
	if !c.seq && !isPureDelete(op) {
		v = t.ref.valueAt(c.index)
		if v == nil {
			op = wire.Delete
		}
	}
	if p.view != nil && child.IsRef() {
		newVis := v != nil && !isPureDelete(op) && p.view.itemVisible(t, v)
		prevVis := c.prev != nil && p.view.itemVisible(t, c.prev)
		if p.filtered && !p.viewing {
			switch {
			case isPureDelete(op):
				if !prevVis {
					return nil
				}
			case op == wire.DeleteAndAdd || op == wire.Replace:
				if !newVis && !prevVis {
					return nil
				}
				if !newVis {
					op = wire.Delete
				} else if !prevVis && !c.seq {
					op = wire.Add
				}
			default:
				if !newVis {
					return nil
				}
			}
		}
		if _, ok := t.ref.(*Array); ok && t.isFiltered && !c.seq && !p.rewriting {
			return p.byRefID(t, op, v, c.prev, child)
		}
	}
	p.open()
	p.c.Put(byte(op))
	wire.PutUint(p.c, uint64(c.index))
	if isPureDelete(op) {
		return nil
	}
	if m, ok := t.ref.(*Map); ok && (op == wire.Add || op == wire.DeleteAndAdd) {
		wire.PutString(p.c, m.keyAt(c.index))
	}
	return p.value(child, v)
}

// byRefID addresses elements of a view-scoped array by their refId,
// the receiver holds only the visible subset so positions differ.
func (p *pass) byRefID(t *ChangeTree, op wire.Operation, v, prev any, child *classes.Type) error {
	if (op.IsDelete() || op == wire.Replace) && prev != nil {
		if r, ok := prev.(Ref); ok && (op != wire.Replace || p.view.itemVisible(t, prev)) {
			p.open()
			p.c.Put(byte(wire.DeleteByRefID))
			wire.PutUint(p.c, uint64(r.Tree().refID))
		}
	}
	if isPureDelete(op) || v == nil {
		return nil
	}
	p.open()
	p.c.Put(byte(wire.AddByRefID))
	return p.value(child, v)
}

func (p *pass) value(t *classes.Type, v any) error {
	if t == nil {
		return ErrTypeMismatch
	}
	if t.Kind == classes.KindPrimitive {
		return putPrimitive(p.c, t.Primitive, v)
	}
	r, ok := v.(Ref)
	if !ok {
		return errors.Wrapf(ErrTypeMismatch, "%T for %s", v, t)
	}
	wire.PutUint(p.c, uint64(r.Tree().refID))
	if polymorphic(t) {
		s, ok := r.(*Struct)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "%T for %s", v, t)
		}
		p.c.Put(wire.TypeID)
		wire.PutUint(p.c, uint64(s.class.ID))
	}
	return nil
}

func putPrimitive(c *wire.Cursor, p classes.Primitive, v any) error {
	ok := true
	switch p {
	case classes.String:
		var s string
		if s, ok = v.(string); ok {
			wire.PutString(c, s)
		}
	case classes.Number:
		var f float64
		if f, ok = v.(float64); ok {
			wire.PutNumber(c, f)
		}
	case classes.Boolean:
		var b bool
		if b, ok = v.(bool); ok {
			wire.PutBool(c, b)
		}
	case classes.Int8:
		var n int8
		if n, ok = v.(int8); ok {
			wire.PutInt8(c, n)
		}
	case classes.Uint8:
		var n uint8
		if n, ok = v.(uint8); ok {
			wire.PutUint8(c, n)
		}
	case classes.Int16:
		var n int16
		if n, ok = v.(int16); ok {
			wire.PutInt16(c, n)
		}
	case classes.Uint16:
		var n uint16
		if n, ok = v.(uint16); ok {
			wire.PutUint16(c, n)
		}
	case classes.Int32:
		var n int32
		if n, ok = v.(int32); ok {
			wire.PutInt32(c, n)
		}
	case classes.Uint32:
		var n uint32
		if n, ok = v.(uint32); ok {
			wire.PutUint32(c, n)
		}
	case classes.Int64:
		var n int64
		if n, ok = v.(int64); ok {
			wire.PutInt64(c, n)
		}
	case classes.Uint64:
		var n uint64
		if n, ok = v.(uint64); ok {
			wire.PutUint64(c, n)
		}
	case classes.Float32:
		var f float32
		if f, ok = v.(float32); ok {
			wire.PutFloat32(c, f)
		}
	case classes.Float64:
		var f float64
		if f, ok = v.(float64); ok {
			wire.PutFloat64(c, f)
		}
	default:
		ok = false
	}
	if !ok {
		return errors.Wrapf(ErrTypeMismatch, "%T for %s", v, p)
	}
	return nil
}
