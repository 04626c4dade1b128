package repl

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/classes"
)

const schema = `
classes:
  - name: Item
    fields:
      - {name: name, type: string}
      - {name: count, type: number}
  - name: State
    fields:
      - {name: title, type: string}
      - {name: items, type: "map<Item>"}
      - {name: numbers, type: "array<number>"}
      - {name: tags, type: "set<string>"}
`

func newREPL(t *testing.T) (*REPL, *bytes.Buffer) {
	reg := classes.NewRegistry()
	_, err := classes.LoadYAML(reg, strings.NewReader(schema))
	require.NoError(t, err)
	out := &bytes.Buffer{}
	r, err := New(reg, reg.ByName("State"), stree.Options{}, out)
	require.NoError(t, err)
	return r, out
}

func run(t *testing.T, r *REPL, lines ...string) {
	for _, line := range lines {
		require.NoError(t, r.Execute(line), line)
	}
}

func TestREPL_EditAndEncode(t *testing.T) {
	r, out := newREPL(t)
	run(t, r,
		"set title hello world",
		"set items {}",
		"put items a Item",
		"set items.a.name \"sword\"",
		"set items.a.count 2",
		"set numbers []",
		"push numbers 1",
		"push numbers 3",
		"put numbers 1 2",
		"set tags {}",
		"push tags red",
	)
	out.Reset()
	run(t, r, "mirror")
	assert.Equal(t, "{}\n", out.String())

	run(t, r, "encode")
	assert.Contains(t, out.String(), "bytes")
	out.Reset()
	run(t, r, "mirror numbers")
	assert.Equal(t, "- 1\n- 2\n- 3\n", out.String())
	out.Reset()
	run(t, r, "mirror items.a")
	assert.Equal(t, "count: 2\nname: sword\n", out.String())
	out.Reset()
	run(t, r, "mirror title")
	assert.Equal(t, "hello world\n", out.String())

	run(t, r, "del numbers.0", "del tags.red", "clear numbers", "push numbers 9", "del items.a.count", "encode")
	out.Reset()
	run(t, r, "mirror")
	var shown bytes.Buffer
	shown.Write(out.Bytes())
	out.Reset()
	run(t, r, "show")
	assert.Equal(t, out.String(), shown.String())
	assert.Contains(t, shown.String(), "- 9")
	assert.NotContains(t, shown.String(), "red")

	out.Reset()
	run(t, r, "hex")
	assert.NotEmpty(t, out.String())
	run(t, r, "encodeall")
}

func TestREPL_Errors(t *testing.T) {
	r, _ := newREPL(t)
	assert.ErrorIs(t, r.Execute("bogus"), ErrUnknownCommand)
	assert.ErrorIs(t, r.Execute("set"), HelpSet)
	assert.ErrorIs(t, r.Execute("set nope 1"), stree.ErrUnknownField)
	assert.ErrorIs(t, r.Execute("set items.x.name 1"), ErrBadPath)
	assert.ErrorIs(t, r.Execute("del items.a"), ErrBadPath)
	run(t, r, "set items {}")
	assert.ErrorIs(t, r.Execute("put items a Nope"), classes.ErrUnknownClass)
	assert.ErrorIs(t, r.Execute("push title 1"), ErrBadPath)
	assert.Equal(t, io.EOF, r.Execute("exit"))
	assert.NoError(t, r.Execute("   "))
}
