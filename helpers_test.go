package stree

import (
	"testing"

	"github.com/drpcorg/stree/classes"
	"github.com/stretchr/testify/require"
)

type schema struct {
	reg     *classes.Registry
	Point   *classes.Class
	Item    *classes.Class
	Player  *classes.Class
	Entity  *classes.Class
	Monster *classes.Class
	State   *classes.Class
}

// Field indexes of the test classes.
const (
	pointX = 0
	pointY = 1

	itemName  = 0
	itemCount = 1

	playerName   = 0
	playerX      = 1
	playerSecret = 2
	playerCards  = 3
	playerItems  = 4

	stPlayers = 0
	stNumbers = 1
	stTags    = 2
	stBag     = 3
	stCurrent = 4
	stOther   = 5
	stBoss    = 6
	stItems   = 7
	stHidden  = 8
	stPoint   = 9
)

func newSchema(t *testing.T) *schema {
	s := &schema{reg: classes.NewRegistry()}
	var err error
	s.Point, err = s.reg.Define("Point",
		classes.Field{Name: "x", Type: classes.NumberType, Default: 0},
		classes.Field{Name: "y", Type: classes.NumberType, Default: 0},
	)
	require.NoError(t, err)
	s.Item, err = s.reg.Define("Item",
		classes.Field{Name: "name", Type: classes.StringType},
		classes.Field{Name: "count", Type: classes.NumberType},
	)
	require.NoError(t, err)
	s.Player, err = s.reg.Define("Player",
		classes.Field{Name: "name", Type: classes.StringType},
		classes.Field{Name: "x", Type: classes.NumberType},
		classes.Field{Name: "secret", Type: classes.StringType, Tag: classes.DefaultTag},
		classes.Field{Name: "cards", Type: classes.ArrayOf(classes.Ref(s.Item)), Tag: 1},
		classes.Field{Name: "items", Type: classes.ArrayOf(classes.Ref(s.Item))},
	)
	require.NoError(t, err)
	s.Entity, err = s.reg.Define("Entity",
		classes.Field{Name: "hp", Type: classes.NumberType},
	)
	require.NoError(t, err)
	s.Monster, err = s.reg.Extend(s.Entity, "Monster",
		classes.Field{Name: "kind", Type: classes.StringType},
	)
	require.NoError(t, err)
	s.State, err = s.reg.Define("State",
		classes.Field{Name: "players", Type: classes.MapOf(classes.Ref(s.Player))},
		classes.Field{Name: "numbers", Type: classes.ArrayOf(classes.NumberType)},
		classes.Field{Name: "tags", Type: classes.SetOf(classes.StringType)},
		classes.Field{Name: "bag", Type: classes.CollectionOf(classes.Ref(s.Item))},
		classes.Field{Name: "current", Type: classes.Ref(s.Item)},
		classes.Field{Name: "other", Type: classes.Ref(s.Item)},
		classes.Field{Name: "boss", Type: classes.Ref(s.Entity)},
		classes.Field{Name: "items", Type: classes.ArrayOf(classes.Ref(s.Item))},
		classes.Field{Name: "hidden", Type: classes.Ref(s.Item), Tag: classes.DefaultTag},
		classes.Field{Name: "point", Type: classes.Ref(s.Point)},
	)
	require.NoError(t, err)
	return s
}

func (s *schema) item(t *testing.T, name string, count float64) *Struct {
	it := NewStruct(s.Item)
	require.NoError(t, it.Set(itemName, name))
	require.NoError(t, it.Set(itemCount, count))
	return it
}

// pair is an encoder over a fresh state and a decoder over its mirror.
type pair struct {
	enc *Encoder
	dec *Decoder
}

func (s *schema) pair(t *testing.T, opts Options) (*Struct, *Struct, *pair) {
	state := NewStruct(s.State)
	mirror := NewStruct(s.State)
	return state, mirror, &pair{
		enc: NewEncoder(state, opts),
		dec: NewDecoder(mirror, s.reg, opts),
	}
}

// flush encodes the pending shared changes and applies them.
func (p *pair) flush(t *testing.T) []DataChange {
	data, err := p.enc.Encode()
	require.NoError(t, err)
	p.enc.DiscardChanges()
	changes, err := p.dec.Decode(data)
	require.NoError(t, err)
	return changes
}

// full applies a full encode to a fresh decoder over a new mirror.
func (s *schema) full(t *testing.T, enc *Encoder) (*Struct, *Decoder) {
	data, err := enc.EncodeAll()
	require.NoError(t, err)
	mirror := NewStruct(s.State)
	dec := NewDecoder(mirror, s.reg, Options{})
	_, err = dec.Decode(data)
	require.NoError(t, err)
	return mirror, dec
}

func itemNames(values []any) []string {
	names := make([]string, 0, len(values))
	for _, v := range values {
		names = append(names, v.(*Struct).StringAt(itemName))
	}
	return names
}
