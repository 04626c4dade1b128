package stree

import (
	"slices"

	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
)

// Map is a string-keyed map. Every key gets a numeric slot on first
// insertion; the slot travels on the wire, the key only with the
// operations that introduce it.
type Map struct {
	tree   *ChangeTree
	typ    *classes.Type
	slots  map[string]int
	keys   map[int]string
	values map[int]any
	next   int
}

func NewMap(child *classes.Type) *Map {
	m := &Map{
		typ:    classes.MapOf(child),
		slots:  make(map[string]int),
		keys:   make(map[int]string),
		values: make(map[int]any),
	}
	m.tree = newChangeTree(m)
	return m
}

func (m *Map) Tree() *ChangeTree { return m.tree }

func (m *Map) Type() *classes.Type { return m.typ }

func (m *Map) typeAt(int) *classes.Type { return m.typ.Child }

func (m *Map) tagAt(int) classes.ViewTag { return classes.Untagged }

func (m *Map) valueAt(slot int) any { return m.values[slot] }

func (m *Map) indexOf(child *ChangeTree) int {
	for _, slot := range m.order() {
		if r, ok := m.values[slot].(Ref); ok && r.Tree() == child {
			return slot
		}
	}
	return -1
}

func (m *Map) order() []int {
	order := make([]int, 0, len(m.values))
	for slot := range m.values {
		order = append(order, slot)
	}
	slices.Sort(order)
	return order
}

func (m *Map) forEachChild(fn func(index int, child Ref)) {
	for _, slot := range m.order() {
		if r, ok := m.values[slot].(Ref); ok {
			fn(slot, r)
		}
	}
}

func (m *Map) forEachIndex(fn func(index int)) {
	for _, slot := range m.order() {
		fn(slot)
	}
}

// keyAt is the key of a slot, used as the alias of introducing ops.
func (m *Map) keyAt(slot int) string {
	return m.keys[slot]
}

func (m *Map) Len() int {
	return len(m.values)
}

func (m *Map) Get(key string) any {
	slot, ok := m.slots[key]
	if !ok {
		return nil
	}
	return m.values[slot]
}

func (m *Map) Has(key string) bool {
	return m.Get(key) != nil
}

// Keys lists the present keys in slot order: a key keeps the slot it
// was first set in, also across a delete and a later set.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for _, slot := range m.order() {
		keys = append(keys, m.keys[slot])
	}
	return keys
}

func (m *Map) Each(fn func(key string, v any)) {
	for _, slot := range m.order() {
		fn(m.keys[slot], m.values[slot])
	}
}

// Set stores v under key; nil deletes the key.
func (m *Map) Set(key string, v any) error {
	if v == nil {
		m.Delete(key)
		return nil
	}
	v, err := checkValue(m.typ.Child, v)
	if err != nil {
		return err
	}
	slot, known := m.slots[key]
	if !known {
		slot = m.next
		m.next++
		m.slots[key] = slot
		m.keys[slot] = key
	}
	prev := m.values[slot]
	if prev == v {
		return nil
	}
	m.values[slot] = v
	op := wire.Add
	if prev != nil {
		op = wire.Replace
	}
	if p, ok := prev.(Ref); ok {
		m.tree.detach(p)
		op = wire.DeleteAndAdd
	}
	m.tree.change(slot, op, prev)
	if r, ok := v.(Ref); ok {
		m.tree.attach(r)
	}
	return nil
}

func (m *Map) Delete(key string) bool {
	slot, ok := m.slots[key]
	if !ok {
		return false
	}
	prev, ok := m.values[slot]
	if !ok {
		return false
	}
	delete(m.values, slot)
	m.tree.delete(slot, prev)
	if p, ok := prev.(Ref); ok {
		m.tree.detach(p)
	}
	return true
}

func (m *Map) Clear() {
	old := m.values
	m.values = make(map[int]any)
	m.slots = make(map[string]int)
	m.keys = make(map[int]string)
	m.next = 0
	m.tree.enterRewrite()
	for _, v := range old {
		if p, ok := v.(Ref); ok {
			m.tree.detach(p)
		}
	}
}
