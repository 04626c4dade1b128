package stree

import (
	"slices"

	"github.com/drpcorg/stree/wire"
)

type handler[F any] struct {
	fn F
}

type itemFn = func(item, key any)

type listeners struct {
	change  []*handler[func()]
	fields  map[string][]*handler[func(value, previous any)]
	add     []*handler[itemFn]
	remove  []*handler[itemFn]
	replace []*handler[itemFn]
}

// Callbacks dispatches the changes of a decoded patch to listeners
// registered on mirror nodes. Every registration returns a function
// that detaches it.
type Callbacks struct {
	listeners map[*ChangeTree]*listeners
}

func newCallbacks() *Callbacks {
	return &Callbacks{listeners: make(map[*ChangeTree]*listeners)}
}

func (c *Callbacks) of(ref Ref) *listeners {
	l := c.listeners[ref.Tree()]
	if l == nil {
		l = &listeners{fields: make(map[string][]*handler[func(value, previous any)])}
		c.listeners[ref.Tree()] = l
	}
	return l
}

func detach[F any](list *[]*handler[F], h *handler[F]) func() {
	return func() {
		if i := slices.Index(*list, h); i >= 0 {
			*list = slices.Delete(*list, i, i+1)
		}
	}
}

// OnChange fires once per decoded patch that touched ref.
func (c *Callbacks) OnChange(ref Ref, fn func()) func() {
	l := c.of(ref)
	h := &handler[func()]{fn}
	l.change = append(l.change, h)
	return detach(&l.change, h)
}

// Listen fires when field of a record changes.
func (c *Callbacks) Listen(ref *Struct, field string, fn func(value, previous any)) func() {
	l := c.of(ref)
	h := &handler[func(value, previous any)]{fn}
	list := l.fields[field]
	l.fields[field] = append(list, h)
	return func() {
		list := l.fields[field]
		if i := slices.Index(list, h); i >= 0 {
			l.fields[field] = slices.Delete(list, i, i+1)
		}
	}
}

// OnAdd fires for every item introduced into a collection; key is the
// index, map key or slot.
func (c *Callbacks) OnAdd(coll Ref, fn func(item, key any)) func() {
	l := c.of(coll)
	h := &handler[itemFn]{fn}
	l.add = append(l.add, h)
	return detach(&l.add, h)
}

// OnRemove fires for every item removed from a collection. On a
// record it fires once the record itself is reclaimed.
func (c *Callbacks) OnRemove(ref Ref, fn func(item, key any)) func() {
	l := c.of(ref)
	h := &handler[itemFn]{fn}
	l.remove = append(l.remove, h)
	return detach(&l.remove, h)
}

// OnItemChange fires when an item of a collection is replaced in place.
func (c *Callbacks) OnItemChange(coll Ref, fn func(item, key any)) func() {
	l := c.of(coll)
	h := &handler[itemFn]{fn}
	l.replace = append(l.replace, h)
	return detach(&l.replace, h)
}

func removesItem(op wire.Operation) bool {
	switch op {
	case wire.Delete, wire.DeleteAndMove, wire.DeleteAndAdd, wire.DeleteByRefID:
		return true
	}
	return false
}

func addsItem(op wire.Operation) bool {
	switch op {
	case wire.Add, wire.DeleteAndAdd, wire.MoveAndAdd, wire.Unshift, wire.Push, wire.AddByRefID:
		return true
	}
	return false
}

func (c *Callbacks) dispatch(changes []DataChange) {
	if len(c.listeners) == 0 {
		return
	}
	var touched []*listeners
	seen := make(map[*ChangeTree]struct{})
	for _, ch := range changes {
		t := ch.Ref.Tree()
		l := c.listeners[t]
		if l == nil {
			continue
		}
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			touched = append(touched, l)
		}
		if _, ok := ch.Ref.(*Struct); ok {
			for _, h := range slices.Clone(l.fields[ch.Field]) {
				h.fn(ch.Value, ch.PreviousValue)
			}
			continue
		}
		if ch.Op == wire.Replace {
			for _, h := range slices.Clone(l.replace) {
				h.fn(ch.Value, ch.DynamicIndex)
			}
			continue
		}
		if ch.PreviousValue != nil && removesItem(ch.Op) {
			for _, h := range slices.Clone(l.remove) {
				h.fn(ch.PreviousValue, ch.DynamicIndex)
			}
		}
		if ch.Value != nil && addsItem(ch.Op) {
			for _, h := range slices.Clone(l.add) {
				h.fn(ch.Value, ch.DynamicIndex)
			}
		}
	}
	for _, l := range touched {
		for _, h := range slices.Clone(l.change) {
			h.fn()
		}
	}
}

func (c *Callbacks) collected(ref Ref) {
	t := ref.Tree()
	l := c.listeners[t]
	if l == nil {
		return
	}
	if _, ok := ref.(*Struct); ok {
		for _, h := range slices.Clone(l.remove) {
			h.fn(ref, nil)
		}
	}
	delete(c.listeners, t)
}
