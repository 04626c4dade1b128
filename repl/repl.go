// Package repl is an interactive shell over a state tree and a mirror
// of it: edit the tree, encode its changes, apply them to the mirror
// and inspect the bytes.
package repl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ergochat/readline"
	"github.com/pkg/errors"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/hub"
	"github.com/drpcorg/stree/protocol"
)

var (
	ErrBadPath        = errors.New("bad path")
	ErrNotSupported   = errors.New("operation not supported")
	ErrUnknownCommand = errors.New("command unknown")
)

type REPL struct {
	rl  *readline.Instance
	out io.Writer

	registry *classes.Registry
	class    *classes.Class
	state    *stree.Struct
	enc      *stree.Encoder
	mirror   *hub.Mirror
	last     []byte
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("set"),
	readline.PcItem("put"),
	readline.PcItem("push"),
	readline.PcItem("del"),
	readline.PcItem("clear"),

	readline.PcItem("show"),
	readline.PcItem("mirror"),

	readline.PcItem("encode"),
	readline.PcItem("encodeall"),
	readline.PcItem("hex"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

// New starts an empty tree of class; the mirror gets its full state
// right away.
func New(registry *classes.Registry, class *classes.Class, opts stree.Options, out io.Writer) (*REPL, error) {
	r := &REPL{
		out:      out,
		registry: registry,
		class:    class,
		state:    stree.NewStruct(class),
		mirror:   hub.NewMirror(class, registry, opts),
	}
	r.enc = stree.NewEncoder(r.state, opts)
	if _, err := r.encodeAll(); err != nil {
		return nil, err
	}
	r.enc.DiscardChanges()
	return r, nil
}

func (repl *REPL) Open(history string) (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     history,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return nil
}

// Run reads and executes lines until exit or end of input.
func (repl *REPL) Run() error {
	for {
		line, err := repl.rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		err = repl.Execute(line)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			_, _ = fmt.Fprintln(repl.out, err.Error())
		}
	}
}

// Execute runs one command line; exit returns io.EOF.
func (repl *REPL) Execute(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "set":
		return repl.CommandSet(args)
	case "put":
		return repl.CommandPut(args)
	case "push":
		return repl.CommandPush(args)
	case "del":
		return repl.CommandDel(args)
	case "clear":
		return repl.CommandClear(args)
	case "show", "ls":
		return repl.CommandShow(repl.state, args)
	case "mirror":
		var state *stree.Struct
		repl.mirror.Read(func(s *stree.Struct) { state = s })
		return repl.CommandShow(state, args)
	case "encode":
		return repl.CommandEncode(args)
	case "encodeall":
		return repl.CommandEncodeAll(args)
	case "hex":
		return repl.CommandHex(args)
	case "help":
		return repl.CommandHelp(args)
	case "exit", "quit":
		return io.EOF
	}
	return errors.Wrap(ErrUnknownCommand, cmd)
}

// apply feeds one frame to the mirror.
func (repl *REPL) apply(kind byte, msg []byte) error {
	repl.last = msg
	return repl.mirror.Drain(context.Background(), protocol.Records{protocol.Frame(kind, msg)})
}
