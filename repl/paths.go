package repl

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/classes"
)

// splitPath turns "players.a.cards.0" into its segments; "" and "."
// are the root.
func splitPath(path string) []string {
	path = strings.Trim(path, ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func index(seg string, n int) (int, error) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= n {
		return 0, errors.Wrapf(ErrBadPath, "index %s", seg)
	}
	return i, nil
}

func child(node any, seg string) (any, error) {
	switch n := node.(type) {
	case *stree.Struct:
		i := n.Class().FindName(seg)
		if i < 0 {
			return nil, errors.Wrapf(stree.ErrUnknownField, "%s.%s", n.Class().Name, seg)
		}
		return n.Get(i), nil
	case *stree.Map:
		if !n.Has(seg) {
			return nil, errors.Wrapf(ErrBadPath, "no key %q", seg)
		}
		return n.Get(seg), nil
	case *stree.Array:
		i, err := index(seg, n.Len())
		if err != nil {
			return nil, err
		}
		return n.At(i), nil
	case *stree.Collection:
		i, err := index(seg, n.Len())
		if err != nil {
			return nil, err
		}
		return n.At(i), nil
	}
	return nil, errors.Wrapf(ErrBadPath, "%s is not a container", seg)
}

func lookup(node any, path []string) (any, error) {
	for _, seg := range path {
		next, err := child(node, seg)
		if err != nil {
			return nil, err
		}
		node = next
	}
	if node == nil {
		return nil, errors.Wrap(ErrBadPath, "nothing there")
	}
	return node, nil
}

// parent resolves all but the last segment.
func (repl *REPL) parent(path string) (any, string, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, "", errors.Wrap(ErrBadPath, "the root has no parent")
	}
	p, err := lookup(repl.state, segs[:len(segs)-1])
	return p, segs[len(segs)-1], err
}

// childType is the declared type of seg within node.
func childType(node any, seg string) (*classes.Type, error) {
	switch n := node.(type) {
	case *stree.Struct:
		f := n.Class().Field(n.Class().FindName(seg))
		if f == nil {
			return nil, errors.Wrapf(stree.ErrUnknownField, "%s.%s", n.Class().Name, seg)
		}
		return f.Type, nil
	case stree.Ref:
		if n.Type().Child == nil {
			return nil, ErrBadPath
		}
		return n.Type().Child, nil
	}
	return nil, ErrBadPath
}

// parseValue reads text as a value of type t: JSON for primitives
// (bare words are strings), a class name or "new" for records and
// anything for an empty collection.
func (repl *REPL) parseValue(t *classes.Type, text string) (any, error) {
	switch t.Kind {
	case classes.KindPrimitive:
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			if t.Primitive != classes.String {
				return nil, errors.Wrapf(err, "%s value", t)
			}
			v = text
		}
		return v, nil
	case classes.KindStruct:
		class := t.Class
		if text != "" && text != "new" && text != "{}" {
			if class = repl.registry.ByName(text); class == nil {
				return nil, errors.Wrapf(classes.ErrUnknownClass, "%s", text)
			}
		}
		return stree.NewStruct(class), nil
	case classes.KindArray:
		return stree.NewArray(t.Child), nil
	case classes.KindMap:
		return stree.NewMap(t.Child), nil
	case classes.KindSet:
		return stree.NewSet(t.Child), nil
	case classes.KindCollection:
		return stree.NewCollection(t.Child), nil
	}
	return nil, errors.Wrapf(ErrNotSupported, "%s", t)
}

// plain turns a subtree into maps and slices for printing.
func plain(v any) any {
	switch n := v.(type) {
	case *stree.Struct:
		out := make(map[string]any)
		for i, f := range n.Class().Fields {
			if fv := n.Get(i); fv != nil {
				out[f.Name] = plain(fv)
			}
		}
		return out
	case *stree.Map:
		out := make(map[string]any, n.Len())
		n.Each(func(key string, v any) { out[key] = plain(v) })
		return out
	case *stree.Array:
		return plainList(n.Values())
	case *stree.Set:
		return plainList(n.Values())
	case *stree.Collection:
		return plainList(n.Values())
	}
	return v
}

func plainList(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, plain(v))
	}
	return out
}
