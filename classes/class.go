// Package classes is the metadata layer: a class is an ordered table of
// fields, each with a stable small index, a wire type and an optional
// view tag. A class can extend another class; the subclass appends its
// own fields after the inherited ones, so the indexes of a base class are
// valid for every subclass. Fields can be appended, never removed or
// reordered, which keeps old and new peers compatible.
package classes

import (
	"unicode/utf8"

	"github.com/drpcorg/stree/wire"
	"github.com/pkg/errors"
)

var (
	ErrBadField       = errors.New("classes: bad field description")
	ErrBadType        = errors.New("classes: bad type description")
	ErrFieldIndex     = errors.New("classes: field index out of range")
	ErrDuplicateField = errors.New("classes: duplicate field name")
	ErrDuplicateClass = errors.New("classes: duplicate class name")
	ErrUnknownClass   = errors.New("classes: unknown class")
)

// ViewTag partitions fields between observers. Untagged fields are
// shared by everyone; DefaultTag fields are visible to views that hold
// the node itself; positive tags are visible to views holding the tag.
type ViewTag int

const (
	Untagged   ViewTag = 0
	DefaultTag ViewTag = -1
)

type Field struct {
	Index   int
	Name    string
	Type    *Type
	Tag     ViewTag
	Default any
}

func (f Field) Valid() bool {
	for _, l := range f.Name {
		if l < ' ' {
			return false
		}
	}
	return len(f.Name) > 0 && utf8.ValidString(f.Name) && f.Type != nil &&
		(f.Type.Kind != KindPrimitive || f.Type.Primitive != None) &&
		(f.Type.Kind != KindStruct || f.Type.Class != nil) &&
		(!f.Type.Kind.IsCollection() || f.Type.Child != nil)
}

func (f Field) Tagged() bool {
	return f.Tag != Untagged
}

type Fields []Field

func (fs Fields) FindName(name string) int {
	for i := 0; i < len(fs); i++ {
		if fs[i].Name == name {
			return i
		}
	}
	return -1
}

type Class struct {
	ID     int
	Name   string
	Parent *Class
	Fields Fields

	subclasses []*Class
	tagged     []int
	byTag      map[ViewTag][]int
}

// Field returns the field at index or nil.
func (c *Class) Field(index int) *Field {
	if index < 0 || index >= len(c.Fields) {
		return nil
	}
	return &c.Fields[index]
}

func (c *Class) FindName(name string) int {
	return c.Fields.FindName(name)
}

// HasViewTags is true when some field is tagged; nodes of such classes
// are partially filtered.
func (c *Class) HasViewTags() bool {
	return len(c.tagged) > 0
}

func (c *Class) TaggedIndexes() []int {
	return c.tagged
}

func (c *Class) IndexesByTag(tag ViewTag) []int {
	return c.byTag[tag]
}

// TagAt returns the view tag of the field at index.
func (c *Class) TagAt(index int) ViewTag {
	if f := c.Field(index); f != nil {
		return f.Tag
	}
	return Untagged
}

// Polymorphic is true when some registered class extends c; values of
// fields declared as c then carry their concrete class id on the wire.
func (c *Class) Polymorphic() bool {
	return len(c.subclasses) > 0
}

// Is reports whether c is base or extends it.
func (c *Class) Is(base *Class) bool {
	for k := c; k != nil; k = k.Parent {
		if k == base {
			return true
		}
	}
	return false
}

func (c *Class) String() string {
	return c.Name
}

func (c *Class) setFields(own Fields) error {
	var fields Fields
	if c.Parent != nil {
		fields = append(fields, c.Parent.Fields...)
	}
	for _, f := range own {
		if !f.Valid() {
			return errors.Wrapf(ErrBadField, "%s.%s", c.Name, f.Name)
		}
		if fields.FindName(f.Name) >= 0 {
			return errors.Wrapf(ErrDuplicateField, "%s.%s", c.Name, f.Name)
		}
		f.Index = len(fields)
		if f.Index > wire.MaxFieldIndex {
			return errors.Wrapf(ErrFieldIndex, "%s.%s at %d", c.Name, f.Name, f.Index)
		}
		if f.Default != nil {
			if f.Type.Kind != KindPrimitive {
				return errors.Wrapf(ErrBadField, "default for %s.%s", c.Name, f.Name)
			}
			v, ok := Normalize(f.Type.Primitive, f.Default)
			if !ok {
				return errors.Wrapf(ErrBadType, "default for %s.%s", c.Name, f.Name)
			}
			f.Default = v
		}
		fields = append(fields, f)
	}
	c.Fields = fields
	c.tagged = nil
	c.byTag = make(map[ViewTag][]int)
	for _, f := range fields {
		if f.Tagged() {
			c.tagged = append(c.tagged, f.Index)
			c.byTag[f.Tag] = append(c.byTag[f.Tag], f.Index)
		}
	}
	return nil
}

// Registry is the set of classes known to an encoder/decoder pair.
// Both peers must build it identically: class ids are assigned in
// definition order and travel on the wire for polymorphic fields.
type Registry struct {
	classes []*Class
	byName  map[string]*Class
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Class)}
}

func (r *Registry) Define(name string, fields ...Field) (*Class, error) {
	return r.Extend(nil, name, fields...)
}

// Extend defines a subclass of parent.
func (r *Registry) Extend(parent *Class, name string, fields ...Field) (*Class, error) {
	c, err := r.declare(name, parent)
	if err != nil {
		return nil, err
	}
	if err = c.setFields(fields); err != nil {
		r.undeclare(c)
		return nil, err
	}
	return c, nil
}

// MustDefine is Define for static schemas; it panics on error.
func (r *Registry) MustDefine(name string, fields ...Field) *Class {
	c, err := r.Define(name, fields...)
	if err != nil {
		panic(err)
	}
	return c
}

func (r *Registry) declare(name string, parent *Class) (*Class, error) {
	if name == "" {
		return nil, ErrBadType
	}
	if _, ok := r.byName[name]; ok {
		return nil, errors.Wrap(ErrDuplicateClass, name)
	}
	c := &Class{ID: len(r.classes), Name: name, Parent: parent}
	r.classes = append(r.classes, c)
	r.byName[name] = c
	if parent != nil {
		parent.subclasses = append(parent.subclasses, c)
	}
	return c, nil
}

func (r *Registry) undeclare(c *Class) {
	if len(r.classes) > 0 && r.classes[len(r.classes)-1] == c {
		r.classes = r.classes[:len(r.classes)-1]
	}
	delete(r.byName, c.Name)
	if p := c.Parent; p != nil && len(p.subclasses) > 0 && p.subclasses[len(p.subclasses)-1] == c {
		p.subclasses = p.subclasses[:len(p.subclasses)-1]
	}
}

func (r *Registry) ByID(id int) *Class {
	if id < 0 || id >= len(r.classes) {
		return nil
	}
	return r.classes[id]
}

func (r *Registry) ByName(name string) *Class {
	return r.byName[name]
}

func (r *Registry) Classes() []*Class {
	return r.classes
}
