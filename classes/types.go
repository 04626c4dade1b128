package classes

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type Kind byte

const (
	KindPrimitive Kind = iota
	KindStruct
	KindArray
	KindMap
	KindSet
	KindCollection
)

var kindNames = [...]string{"primitive", "struct", "array", "map", "set", "collection"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// IsCollection is true for the container kinds.
func (k Kind) IsCollection() bool {
	return k >= KindArray
}

type Primitive byte

const (
	None Primitive = iota
	String
	Number
	Boolean
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var primitiveNames = [...]string{
	"none", "string", "number", "boolean",
	"int8", "uint8", "int16", "uint16", "int32", "uint32", "int64", "uint64",
	"float32", "float64",
}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("primitive(%d)", byte(p))
}

func PrimitiveByName(name string) Primitive {
	for i, n := range primitiveNames {
		if n == name && i > 0 {
			return Primitive(i)
		}
	}
	return None
}

// Type is the wire type of a field or a collection element.
// Types are immutable once built; collections keep the element
// type they were constructed with.
type Type struct {
	Kind      Kind
	Primitive Primitive
	Class     *Class
	Child     *Type
}

var (
	StringType  = &Type{Kind: KindPrimitive, Primitive: String}
	NumberType  = &Type{Kind: KindPrimitive, Primitive: Number}
	BooleanType = &Type{Kind: KindPrimitive, Primitive: Boolean}
	Int8Type    = &Type{Kind: KindPrimitive, Primitive: Int8}
	Uint8Type   = &Type{Kind: KindPrimitive, Primitive: Uint8}
	Int16Type   = &Type{Kind: KindPrimitive, Primitive: Int16}
	Uint16Type  = &Type{Kind: KindPrimitive, Primitive: Uint16}
	Int32Type   = &Type{Kind: KindPrimitive, Primitive: Int32}
	Uint32Type  = &Type{Kind: KindPrimitive, Primitive: Uint32}
	Int64Type   = &Type{Kind: KindPrimitive, Primitive: Int64}
	Uint64Type  = &Type{Kind: KindPrimitive, Primitive: Uint64}
	Float32Type = &Type{Kind: KindPrimitive, Primitive: Float32}
	Float64Type = &Type{Kind: KindPrimitive, Primitive: Float64}
)

func PrimitiveType(p Primitive) *Type {
	return &Type{Kind: KindPrimitive, Primitive: p}
}

func Ref(c *Class) *Type {
	return &Type{Kind: KindStruct, Class: c}
}

func ArrayOf(t *Type) *Type      { return &Type{Kind: KindArray, Child: t} }
func MapOf(t *Type) *Type        { return &Type{Kind: KindMap, Child: t} }
func SetOf(t *Type) *Type        { return &Type{Kind: KindSet, Child: t} }
func CollectionOf(t *Type) *Type { return &Type{Kind: KindCollection, Child: t} }

// IsRef is true when values of this type are tracked nodes.
func (t *Type) IsRef() bool {
	return t != nil && t.Kind != KindPrimitive
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive.String()
	case KindStruct:
		if t.Class == nil {
			return "<struct>"
		}
		return t.Class.Name
	}
	return t.Kind.String() + "<" + t.Child.String() + ">"
}

// ParseType parses "number", "Player", "array<Card>", "map<array<number>>".
// Class names are resolved through lookup.
func ParseType(text string, lookup func(name string) *Class) (*Type, error) {
	text = strings.TrimSpace(text)
	if open := strings.IndexByte(text, '<'); open > 0 {
		if !strings.HasSuffix(text, ">") {
			return nil, errors.Wrapf(ErrBadType, "%q", text)
		}
		child, err := ParseType(text[open+1:len(text)-1], lookup)
		if err != nil {
			return nil, err
		}
		switch text[:open] {
		case "array":
			return ArrayOf(child), nil
		case "map":
			return MapOf(child), nil
		case "set":
			return SetOf(child), nil
		case "collection":
			return CollectionOf(child), nil
		}
		return nil, errors.Wrapf(ErrBadType, "unknown container %q", text[:open])
	}
	if p := PrimitiveByName(text); p != None {
		return PrimitiveType(p), nil
	}
	if lookup != nil {
		if c := lookup(text); c != nil {
			return Ref(c), nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownClass, "%q", text)
}
