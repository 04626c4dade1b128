package stree

import (
	"slices"

	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
)

// slotted holds the values of Set and Collection under numeric slots
// assigned in insertion order.
type slotted struct {
	tree   *ChangeTree
	typ    *classes.Type
	values map[int]any
	next   int
}

func (s *slotted) Tree() *ChangeTree { return s.tree }

func (s *slotted) Type() *classes.Type { return s.typ }

func (s *slotted) typeAt(int) *classes.Type { return s.typ.Child }

func (s *slotted) tagAt(int) classes.ViewTag { return classes.Untagged }

func (s *slotted) valueAt(slot int) any { return s.values[slot] }

func (s *slotted) order() []int {
	order := make([]int, 0, len(s.values))
	for slot := range s.values {
		order = append(order, slot)
	}
	slices.Sort(order)
	return order
}

func (s *slotted) indexOf(child *ChangeTree) int {
	for _, slot := range s.order() {
		if r, ok := s.values[slot].(Ref); ok && r.Tree() == child {
			return slot
		}
	}
	return -1
}

func (s *slotted) forEachChild(fn func(index int, child Ref)) {
	for _, slot := range s.order() {
		if r, ok := s.values[slot].(Ref); ok {
			fn(slot, r)
		}
	}
}

func (s *slotted) forEachIndex(fn func(index int)) {
	for _, slot := range s.order() {
		fn(slot)
	}
}

func (s *slotted) slotOf(v any) int {
	for _, slot := range s.order() {
		if s.values[slot] == v {
			return slot
		}
	}
	return -1
}

func (s *slotted) Len() int {
	return len(s.values)
}

func (s *slotted) Has(v any) bool {
	if n, err := checkValue(s.typ.Child, v); err == nil {
		v = n
	}
	return s.slotOf(v) >= 0
}

// Values lists the items in insertion order.
func (s *slotted) Values() []any {
	values := make([]any, 0, len(s.values))
	for _, slot := range s.order() {
		values = append(values, s.values[slot])
	}
	return values
}

func (s *slotted) add(v any) {
	slot := s.next
	s.next++
	s.values[slot] = v
	s.tree.change(slot, wire.Add, nil)
	if r, ok := v.(Ref); ok {
		s.tree.attach(r)
	}
}

// Delete removes the first item equal to v.
func (s *slotted) Delete(v any) bool {
	if n, err := checkValue(s.typ.Child, v); err == nil {
		v = n
	}
	slot := s.slotOf(v)
	if slot < 0 {
		return false
	}
	delete(s.values, slot)
	s.tree.delete(slot, v)
	if r, ok := v.(Ref); ok {
		s.tree.detach(r)
	}
	return true
}

func (s *slotted) Clear() {
	old := s.values
	s.values = make(map[int]any)
	s.next = 0
	s.tree.enterRewrite()
	for _, v := range old {
		if r, ok := v.(Ref); ok {
			s.tree.detach(r)
		}
	}
}

// Set holds distinct values.
type Set struct {
	slotted
}

func NewSet(child *classes.Type) *Set {
	s := &Set{slotted{typ: classes.SetOf(child), values: make(map[int]any)}}
	s.tree = newChangeTree(s)
	return s
}

// Add inserts v unless an equal value is present.
func (s *Set) Add(v any) (bool, error) {
	v, err := checkValue(s.typ.Child, v)
	if err != nil {
		return false, err
	}
	if s.slotOf(v) >= 0 {
		return false, nil
	}
	s.add(v)
	return true, nil
}

// Collection is an unordered bag; equal values may repeat.
type Collection struct {
	slotted
}

func NewCollection(child *classes.Type) *Collection {
	c := &Collection{slotted{typ: classes.CollectionOf(child), values: make(map[int]any)}}
	c.tree = newChangeTree(c)
	return c
}

func (c *Collection) Add(v any) error {
	v, err := checkValue(c.typ.Child, v)
	if err != nil {
		return err
	}
	c.add(v)
	return nil
}

// At returns the item at position i in insertion order.
func (c *Collection) At(i int) any {
	order := c.order()
	if i < 0 || i >= len(order) {
		return nil
	}
	return c.values[order[i]]
}
