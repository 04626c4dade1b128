package repl

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/protocol"
)

var (
	HelpSet   = errors.New("set players.a.name \"Alice\"; set players.a Player")
	HelpPut   = errors.New("put players b Player; put numbers 0 42")
	HelpPush  = errors.New("push numbers 7")
	HelpDel   = errors.New("del players.a")
	HelpClear = errors.New("clear numbers")
)

const help = `set <path> <value>        assign a field, map key or array slot
put <path> <key> <value>  set a map key or insert into an array
push <path> <value>       append to an array, add to a set or collection
del <path>                delete a field, key or item
clear <path>              empty a collection
show [path]               print the source tree
mirror [path]             print the mirror tree
encode                    encode the pending changes and apply them to the mirror
encodeall                 encode the full state into a fresh mirror
hex                       dump the last encoded message
exit                      leave
`

func (repl *REPL) CommandHelp(args []string) error {
	_, err := fmt.Fprint(repl.out, help)
	return err
}

func (repl *REPL) CommandSet(args []string) error {
	if len(args) < 2 {
		return HelpSet
	}
	p, seg, err := repl.parent(args[0])
	if err != nil {
		return err
	}
	t, err := childType(p, seg)
	if err != nil {
		return err
	}
	v, err := repl.parseValue(t, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	switch n := p.(type) {
	case *stree.Struct:
		return n.SetByName(seg, v)
	case *stree.Map:
		return n.Set(seg, v)
	case *stree.Array:
		i, err := index(seg, n.Len()+1)
		if err != nil {
			return err
		}
		return n.SetAt(i, v)
	}
	return errors.Wrapf(ErrNotSupported, "set in %T", p)
}

func (repl *REPL) CommandPut(args []string) error {
	if len(args) < 3 {
		return HelpPut
	}
	node, err := lookup(repl.state, splitPath(args[0]))
	if err != nil {
		return err
	}
	t, err := childType(node, args[1])
	if err != nil {
		return err
	}
	v, err := repl.parseValue(t, strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	switch n := node.(type) {
	case *stree.Map:
		return n.Set(args[1], v)
	case *stree.Array:
		i, err := index(args[1], n.Len()+1)
		if err != nil {
			return err
		}
		return n.InsertAt(i, v)
	}
	return errors.Wrapf(ErrNotSupported, "put into %T", node)
}

func (repl *REPL) CommandPush(args []string) error {
	if len(args) < 2 {
		return HelpPush
	}
	node, err := lookup(repl.state, splitPath(args[0]))
	if err != nil {
		return err
	}
	t, err := childType(node, "")
	if err != nil {
		return err
	}
	v, err := repl.parseValue(t, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	switch n := node.(type) {
	case *stree.Array:
		return n.Push(v)
	case *stree.Set:
		_, err = n.Add(v)
		return err
	case *stree.Collection:
		return n.Add(v)
	}
	return errors.Wrapf(ErrNotSupported, "push into %T", node)
}

func (repl *REPL) CommandDel(args []string) error {
	if len(args) != 1 {
		return HelpDel
	}
	p, seg, err := repl.parent(args[0])
	if err != nil {
		return err
	}
	switch n := p.(type) {
	case *stree.Struct:
		i := n.Class().FindName(seg)
		if i < 0 {
			return errors.Wrapf(stree.ErrUnknownField, "%s.%s", n.Class().Name, seg)
		}
		return n.Delete(i)
	case *stree.Map:
		if !n.Delete(seg) {
			return errors.Wrapf(ErrBadPath, "no key %q", seg)
		}
		return nil
	case *stree.Array:
		i, err := index(seg, n.Len())
		if err != nil {
			return err
		}
		n.RemoveAt(i)
		return nil
	case *stree.Collection:
		i, err := index(seg, n.Len())
		if err != nil {
			return err
		}
		n.Delete(n.At(i))
		return nil
	case *stree.Set:
		v, err := repl.parseValue(n.Type().Child, seg)
		if err != nil {
			return err
		}
		if !n.Delete(v) {
			return errors.Wrapf(ErrBadPath, "no item %s", seg)
		}
		return nil
	}
	return errors.Wrapf(ErrNotSupported, "del in %T", p)
}

func (repl *REPL) CommandClear(args []string) error {
	if len(args) != 1 {
		return HelpClear
	}
	node, err := lookup(repl.state, splitPath(args[0]))
	if err != nil {
		return err
	}
	switch n := node.(type) {
	case *stree.Array:
		n.Clear()
	case *stree.Map:
		n.Clear()
	case *stree.Set:
		n.Clear()
	case *stree.Collection:
		n.Clear()
	default:
		return errors.Wrapf(ErrNotSupported, "clear %T", node)
	}
	return nil
}

func (repl *REPL) CommandShow(state *stree.Struct, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	node, err := lookup(state, splitPath(path))
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(plain(node))
	if err != nil {
		return err
	}
	_, err = repl.out.Write(out)
	return err
}

func (repl *REPL) CommandEncode(args []string) error {
	msg, err := repl.enc.Encode()
	if err != nil {
		return err
	}
	repl.enc.DiscardChanges()
	if err := repl.apply(protocol.PatchFrame, msg); err != nil {
		return err
	}
	_, err = fmt.Fprintf(repl.out, "%d bytes\n", len(msg))
	return err
}

func (repl *REPL) encodeAll() (int, error) {
	msg, err := repl.enc.EncodeAll()
	if err != nil {
		return 0, err
	}
	return len(msg), repl.apply(protocol.FullFrame, msg)
}

func (repl *REPL) CommandEncodeAll(args []string) error {
	n, err := repl.encodeAll()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(repl.out, "%d bytes\n", n)
	return err
}

func (repl *REPL) CommandHex(args []string) error {
	_, err := fmt.Fprint(repl.out, hex.Dump(repl.last))
	return err
}
