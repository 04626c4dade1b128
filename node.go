package stree

import (
	"github.com/drpcorg/stree/classes"
	"github.com/pkg/errors"
)

// Ref is a structure node: a Struct or one of the collections.
// Every Ref owns exactly one ChangeTree for its whole life.
type Ref interface {
	Tree() *ChangeTree
	Type() *classes.Type

	// valueAt is the live value at a wire index, nil when absent.
	valueAt(index int) any
	// typeAt is the declared type of the value at a wire index.
	typeAt(index int) *classes.Type
	tagAt(index int) classes.ViewTag
	indexOf(child *ChangeTree) int
	forEachChild(fn func(index int, child Ref))
	// forEachIndex visits every present wire index in ascending order.
	forEachIndex(fn func(index int))
}

// Polymorphic values carry their concrete class id on the wire.
func polymorphic(t *classes.Type) bool {
	return t != nil && t.Kind == classes.KindStruct && t.Class != nil && t.Class.Polymorphic()
}

func sameType(a, b *classes.Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case classes.KindPrimitive:
		return a.Primitive == b.Primitive
	case classes.KindStruct:
		return a.Class == b.Class
	}
	return sameType(a.Child, b.Child)
}

// assignable tells whether a node of type got may be stored where want
// is declared; a subclass instance fits a base class field.
func assignable(want, got *classes.Type) bool {
	if want == nil || got == nil || want.Kind != got.Kind {
		return false
	}
	if want.Kind == classes.KindStruct {
		return got.Class != nil && got.Class.Is(want.Class)
	}
	return sameType(want, got)
}

// checkValue validates v against t and brings primitives to their
// canonical Go representation.
func checkValue(t *classes.Type, v any) (any, error) {
	if t == nil {
		return nil, ErrTypeMismatch
	}
	if t.Kind == classes.KindPrimitive {
		n, ok := classes.Normalize(t.Primitive, v)
		if !ok {
			return nil, errors.Wrapf(ErrTypeMismatch, "%T for %s", v, t)
		}
		return n, nil
	}
	ref, ok := v.(Ref)
	if !ok || !assignable(t, ref.Type()) {
		return nil, errors.Wrapf(ErrTypeMismatch, "%T for %s", v, t)
	}
	return ref, nil
}

// newNode builds an empty node of type t; class overrides the declared
// class of a polymorphic struct type.
func newNode(t *classes.Type, class *classes.Class) Ref {
	switch t.Kind {
	case classes.KindStruct:
		if class == nil {
			class = t.Class
		}
		return NewStruct(class)
	case classes.KindArray:
		return NewArray(t.Child)
	case classes.KindMap:
		return NewMap(t.Child)
	case classes.KindSet:
		return NewSet(t.Child)
	case classes.KindCollection:
		return NewCollection(t.Child)
	}
	return nil
}

func asRef(v any) (Ref, bool) {
	r, ok := v.(Ref)
	return r, ok && r != nil
}
