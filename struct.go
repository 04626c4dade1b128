package stree

import (
	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
	"github.com/pkg/errors"
)

// Struct is a record node: a value per field of its class.
type Struct struct {
	tree   *ChangeTree
	class  *classes.Class
	typ    *classes.Type
	values []any
}

// NewStruct builds a record with the class defaults filled in.
func NewStruct(class *classes.Class) *Struct {
	s := &Struct{
		class:  class,
		typ:    classes.Ref(class),
		values: make([]any, len(class.Fields)),
	}
	s.tree = newChangeTree(s)
	for i, f := range class.Fields {
		s.values[i] = f.Default
	}
	return s
}

func (s *Struct) Tree() *ChangeTree { return s.tree }

func (s *Struct) Type() *classes.Type { return s.typ }

func (s *Struct) Class() *classes.Class { return s.class }

func (s *Struct) valueAt(index int) any { return s.Get(index) }

func (s *Struct) tagAt(index int) classes.ViewTag { return s.class.TagAt(index) }

func (s *Struct) typeAt(index int) *classes.Type {
	if f := s.class.Field(index); f != nil {
		return f.Type
	}
	return nil
}

func (s *Struct) indexOf(child *ChangeTree) int {
	for i, v := range s.values {
		if r, ok := v.(Ref); ok && r.Tree() == child {
			return i
		}
	}
	return -1
}

func (s *Struct) forEachChild(fn func(index int, child Ref)) {
	for i, v := range s.values {
		if r, ok := v.(Ref); ok {
			fn(i, r)
		}
	}
}

func (s *Struct) forEachIndex(fn func(index int)) {
	for i, v := range s.values {
		if v != nil {
			fn(i)
		}
	}
}

// Set assigns field index; nil deletes the value.
func (s *Struct) Set(index int, v any) error {
	f := s.class.Field(index)
	if f == nil {
		return errors.Wrapf(classes.ErrFieldIndex, "%s has no field %d", s.class.Name, index)
	}
	prev := s.values[index]
	if v == nil {
		if prev == nil {
			return nil
		}
		s.values[index] = nil
		if r, ok := prev.(Ref); ok {
			s.tree.detach(r)
		}
		s.tree.delete(index, prev)
		return nil
	}
	v, err := checkValue(f.Type, v)
	if err != nil {
		return errors.Wrapf(err, "%s.%s", s.class.Name, f.Name)
	}
	if prev == v {
		return nil
	}
	op := wire.Add
	if prev != nil {
		op = wire.Replace
	}
	s.values[index] = v
	if p, ok := prev.(Ref); ok {
		s.tree.detach(p)
		op = wire.DeleteAndAdd
	}
	// the owner is queued before the child so the child is introduced first
	s.tree.change(index, op, prev)
	if r, ok := v.(Ref); ok {
		s.tree.attach(r)
	}
	return nil
}

func (s *Struct) SetByName(name string, v any) error {
	i := s.class.FindName(name)
	if i < 0 {
		return errors.Wrapf(ErrUnknownField, "%s.%s", s.class.Name, name)
	}
	return s.Set(i, v)
}

// Delete clears field index.
func (s *Struct) Delete(index int) error {
	return s.Set(index, nil)
}

func (s *Struct) Get(index int) any {
	if index < 0 || index >= len(s.values) {
		return nil
	}
	return s.values[index]
}

func (s *Struct) GetByName(name string) any {
	return s.Get(s.class.FindName(name))
}

func (s *Struct) StringAt(index int) string {
	v, _ := s.Get(index).(string)
	return v
}

func (s *Struct) NumberAt(index int) float64 {
	v, _ := s.Get(index).(float64)
	return v
}

func (s *Struct) BoolAt(index int) bool {
	v, _ := s.Get(index).(bool)
	return v
}

func (s *Struct) ChildStruct(index int) *Struct {
	v, _ := s.Get(index).(*Struct)
	return v
}

func (s *Struct) ChildArray(index int) *Array {
	v, _ := s.Get(index).(*Array)
	return v
}

func (s *Struct) ChildMap(index int) *Map {
	v, _ := s.Get(index).(*Map)
	return v
}

func (s *Struct) ChildSet(index int) *Set {
	v, _ := s.Get(index).(*Set)
	return v
}

func (s *Struct) ChildCollection(index int) *Collection {
	v, _ := s.Get(index).(*Collection)
	return v
}
