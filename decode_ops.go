package stree

import (
	"slices"

	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
)

func (st *decodeState) field(s *Struct) bool {
	b := st.r.Byte()
	index, op := wire.UnpackField(b)
	f := s.class.Field(index)
	if f == nil {
		st.d.log.Warn("definition mismatch: unknown field",
			"class", s.class.Name, "index", index, "refId", s.tree.refID)
		return false
	}
	prev := s.values[index]
	var value any
	if op == wire.Delete {
		st.release(prev)
	} else {
		var ok bool
		if value, ok = st.value(f.Type, op, prev); !ok {
			return false
		}
	}
	s.values[index] = value
	if value == nil && prev == nil {
		return true
	}
	st.record(s, op, f.Name, nil, value, prev)
	return true
}

// value reads a value of type t written for op over prev and keeps the
// link counts of nodes in sync.
func (st *decodeState) value(t *classes.Type, op wire.Operation, prev any) (any, bool) {
	if t.Kind == classes.KindPrimitive {
		v := readPrimitive(st.r, t.Primitive)
		return v, st.r.Err() == nil
	}
	return st.refValue(t, int(st.r.Int()), op, prev)
}

func (st *decodeState) refValue(t *classes.Type, refID int, op wire.Operation, prev any) (any, bool) {
	class := t.Class
	if polymorphic(t) {
		if b, ok := st.r.Peek(); ok && b == wire.TypeID {
			st.r.Byte()
			classID := int(st.r.Int())
			if st.r.Err() != nil {
				return nil, false
			}
			c := st.d.registry.ByID(classID)
			if c == nil || !c.Is(t.Class) {
				st.d.log.Warn("definition mismatch: unknown class", "classId", classID, "declared", t.Class.Name)
				return nil, false
			}
			class = c
		}
	}
	if st.r.Err() != nil {
		return nil, false
	}
	if op == wire.DeleteAndAdd {
		st.release(prev)
	}
	ref, ok := st.d.tracker.Get(refID)
	if !ok {
		ref = newNode(t, class)
		st.d.tracker.add(refID, ref, true)
	} else {
		if !assignable(t, ref.Type()) {
			st.d.log.Warn("definition mismatch: ref type", "refId", refID, "declared", t.String(), "actual", ref.Type().String())
			return nil, false
		}
		if prev != ref || op == wire.DeleteAndAdd {
			st.d.tracker.add(refID, ref, true)
		}
	}
	if op != wire.DeleteAndAdd && prev != nil && prev != ref {
		st.release(prev)
	}
	return ref, true
}

func readPrimitive(r *wire.Reader, p classes.Primitive) any {
	switch p {
	case classes.String:
		return r.String()
	case classes.Number:
		return r.Number()
	case classes.Boolean:
		return r.Bool()
	case classes.Int8:
		return r.Int8()
	case classes.Uint8:
		return r.Uint8()
	case classes.Int16:
		return r.Int16()
	case classes.Uint16:
		return r.Uint16()
	case classes.Int32:
		return r.Int32()
	case classes.Uint32:
		return r.Uint32()
	case classes.Int64:
		return r.Int64()
	case classes.Uint64:
		return r.Uint64()
	case classes.Float32:
		return r.Float32()
	case classes.Float64:
		return r.Float64()
	}
	return nil
}

func (st *decodeState) clearItems(ref Ref, items func(fn func(key, v any))) {
	items(func(key, v any) {
		st.release(v)
		st.record(ref, wire.Delete, "", key, nil, v)
	})
}

func (st *decodeState) arrayOp(a *Array) bool {
	r := st.r
	op := wire.Operation(r.Byte())
	child := a.typ.Child
	switch op {
	case wire.Clear:
		st.clearItems(a, func(fn func(key, v any)) {
			for i, v := range a.items {
				if v != nil {
					fn(i, v)
				}
			}
		})
		a.items = nil
		return true
	case wire.Reverse:
		a.compactHoles()
		slices.Reverse(a.items)
		st.record(a, op, "", nil, nil, nil)
		return true
	case wire.Move:
		from, to := int(r.Int()), int(r.Int())
		if r.Err() != nil {
			return false
		}
		a.compactHoles()
		if from < 0 || from >= len(a.items) || to < 0 || to >= len(a.items) {
			st.d.log.Warn("array move out of range", "refId", a.tree.refID, "from", from, "to", to)
			return true
		}
		moveItem(a.items, from, to)
		st.record(a, op, "", to, a.items[to], nil)
		return true
	case wire.DeleteByRefID:
		refID := int(r.Int())
		if r.Err() != nil {
			return false
		}
		i := slices.IndexFunc(a.items, func(v any) bool {
			ref, ok := v.(Ref)
			return ok && ref.Tree().refID == refID
		})
		if i < 0 {
			return true
		}
		prev := a.items[i]
		a.items = slices.Delete(a.items, i, i+1)
		st.release(prev)
		st.record(a, op, "", i, nil, prev)
		return true
	case wire.AddByRefID:
		refID := int(r.Int())
		if r.Err() != nil {
			return false
		}
		if ref, ok := st.d.tracker.Get(refID); ok && slices.Contains(a.items, any(ref)) {
			// the class marker still has to be consumed
			if polymorphic(child) {
				if b, ok := r.Peek(); ok && b == wire.TypeID {
					r.Byte()
					r.Int()
				}
			}
			return true
		}
		v, ok := st.refValue(child, refID, wire.Add, nil)
		if !ok {
			return false
		}
		a.items = append(a.items, v)
		st.record(a, op, "", len(a.items)-1, v, nil)
		return true
	}
	if !op.Known() {
		st.d.log.Warn("definition mismatch: unknown array operation", "op", byte(op), "refId", a.tree.refID)
		return false
	}
	index := int(r.Int())
	if r.Err() != nil || index < 0 {
		return false
	}
	switch op {
	case wire.Delete:
		if index >= len(a.items) {
			return true
		}
		prev := a.items[index]
		a.items[index] = nil
		st.release(prev)
		if prev != nil {
			st.record(a, op, "", index, nil, prev)
		}
	case wire.DeleteAndMove:
		a.compactHoles()
		if index >= len(a.items) {
			return true
		}
		prev := a.items[index]
		a.items = slices.Delete(a.items, index, index+1)
		st.release(prev)
		st.record(a, op, "", index, nil, prev)
	case wire.Add, wire.Replace, wire.DeleteAndAdd:
		// an encoder only writes an index every lower one was written for
		if index > len(a.items) {
			st.d.log.Warn("definition mismatch: array index out of range", "refId", a.tree.refID, "index", index, "len", len(a.items))
			return false
		}
		var prev any
		if index < len(a.items) {
			prev = a.items[index]
		}
		v, ok := st.value(child, op, prev)
		if !ok {
			return false
		}
		if index >= len(a.items) {
			a.items = append(a.items, make([]any, index+1-len(a.items))...)
		}
		a.items[index] = v
		st.record(a, op, "", index, v, prev)
	case wire.MoveAndAdd, wire.Unshift, wire.Push:
		v, ok := st.value(child, op, nil)
		if !ok {
			return false
		}
		a.compactHoles()
		switch {
		case op == wire.Unshift:
			index = 0
		case op == wire.Push || index > len(a.items):
			index = len(a.items)
		}
		a.items = slices.Insert(a.items, index, v)
		st.record(a, op, "", index, v, nil)
	default:
		st.d.log.Warn("definition mismatch: operation not valid for arrays", "op", op.String(), "refId", a.tree.refID)
		return false
	}
	return true
}

func (a *Array) compactHoles() {
	if slices.Contains(a.items, nil) {
		a.items = slices.DeleteFunc(a.items, func(v any) bool { return v == nil })
	}
}

func (st *decodeState) mapOp(m *Map) bool {
	r := st.r
	op := wire.Operation(r.Byte())
	if op == wire.Clear {
		st.clearItems(m, func(fn func(key, v any)) {
			for _, slot := range m.order() {
				fn(m.keys[slot], m.values[slot])
			}
		})
		m.values = make(map[int]any)
		m.slots = make(map[string]int)
		m.keys = make(map[int]string)
		return true
	}
	switch op {
	case wire.Add, wire.Replace, wire.Delete, wire.DeleteAndAdd:
	default:
		st.d.log.Warn("definition mismatch: unknown map operation", "op", byte(op), "refId", m.tree.refID)
		return false
	}
	slot := int(r.Int())
	key, known := m.keys[slot]
	if op == wire.Add || op == wire.DeleteAndAdd {
		key, known = r.String(), true
	}
	if r.Err() != nil {
		return false
	}
	if op == wire.Add || op == wire.DeleteAndAdd {
		if old, ok := m.slots[key]; ok && old != slot {
			delete(m.keys, old)
		}
		m.slots[key] = slot
		m.keys[slot] = key
	}
	prev := m.values[slot]
	if op == wire.Delete {
		if !known {
			return true
		}
		delete(m.values, slot)
		delete(m.keys, slot)
		delete(m.slots, key)
		st.release(prev)
		if prev != nil {
			st.record(m, op, "", key, nil, prev)
		}
		return true
	}
	v, ok := st.value(m.typ.Child, op, prev)
	if !ok {
		return false
	}
	if !known {
		st.d.log.Warn("map replace of an unknown slot", "slot", slot, "refId", m.tree.refID)
		st.release(v)
		return true
	}
	m.values[slot] = v
	m.next = max(m.next, slot+1)
	st.record(m, op, "", key, v, prev)
	return true
}

func (st *decodeState) slotOp(ref Ref, s *slotted) bool {
	r := st.r
	op := wire.Operation(r.Byte())
	if op == wire.Clear {
		st.clearItems(ref, func(fn func(key, v any)) {
			for _, slot := range s.order() {
				fn(slot, s.values[slot])
			}
		})
		s.values = make(map[int]any)
		return true
	}
	switch op {
	case wire.Add, wire.Replace, wire.Delete, wire.DeleteAndAdd:
	default:
		st.d.log.Warn("definition mismatch: unknown collection operation", "op", byte(op), "refId", s.tree.refID)
		return false
	}
	slot := int(r.Int())
	if r.Err() != nil {
		return false
	}
	prev := s.values[slot]
	if op == wire.Delete {
		delete(s.values, slot)
		st.release(prev)
		if prev != nil {
			st.record(ref, op, "", slot, nil, prev)
		}
		return true
	}
	v, ok := st.value(s.typ.Child, op, prev)
	if !ok {
		return false
	}
	s.values[slot] = v
	s.next = max(s.next, slot+1)
	st.record(ref, op, "", slot, v, prev)
	return true
}
