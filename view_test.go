package stree

import (
	"testing"

	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observer struct {
	view   *StateView
	mirror *Struct
	dec    *Decoder
}

func (s *schema) observer(t *testing.T) *observer {
	mirror := NewStruct(s.State)
	return &observer{
		view:   NewStateView(),
		mirror: mirror,
		dec:    NewDecoder(mirror, s.reg, Options{}),
	}
}

// broadcast runs one encode cycle for every observer and returns their
// patches.
func broadcast(t *testing.T, enc *Encoder, observers ...*observer) [][]byte {
	shared, err := enc.Encode()
	require.NoError(t, err)
	out := make([][]byte, 0, len(observers))
	for _, o := range observers {
		patch, err := enc.EncodeView(o.view, shared)
		require.NoError(t, err)
		_, err = o.dec.Decode(patch)
		require.NoError(t, err)
		out = append(out, patch)
	}
	enc.DiscardChanges()
	return out
}

func newPlayer(t *testing.T, s *schema, name, secret string) *Struct {
	pl := NewStruct(s.Player)
	require.NoError(t, pl.Set(playerName, name))
	require.NoError(t, pl.Set(playerSecret, secret))
	return pl
}

func (o *observer) player(key string) *Struct {
	return o.mirror.ChildMap(stPlayers).Get(key).(*Struct)
}

func TestView_TaggedFields(t *testing.T) {
	s := newSchema(t)
	state := NewStruct(s.State)
	enc := NewEncoder(state, Options{})
	players := NewMap(classes.Ref(s.Player))
	assert.NoError(t, state.Set(stPlayers, players))
	a := newPlayer(t, s, "a", "sa")
	b := newPlayer(t, s, "b", "sb")
	assert.NoError(t, players.Set("a", a))
	assert.NoError(t, players.Set("b", b))

	x, y := s.observer(t), s.observer(t)
	assert.NoError(t, x.view.Add(a))
	assert.NoError(t, y.view.Add(b))
	patches := broadcast(t, enc, x, y)
	assert.Contains(t, string(patches[0]), "sa")
	assert.NotContains(t, string(patches[0]), "sb")
	assert.Contains(t, string(patches[1]), "sb")
	assert.NotContains(t, string(patches[1]), "sa")

	assert.Equal(t, "sa", x.player("a").StringAt(playerSecret))
	assert.Nil(t, x.player("b").Get(playerSecret))
	assert.Equal(t, "sb", y.player("b").StringAt(playerSecret))
	assert.Nil(t, y.player("a").Get(playerSecret))
	assert.Equal(t, "b", x.player("b").StringAt(playerName))

	// a change of a tagged field reaches the granted view only
	assert.NoError(t, a.Set(playerSecret, "sa2"))
	patches = broadcast(t, enc, x, y)
	assert.Empty(t, patches[1])
	assert.Equal(t, "sa2", x.player("a").StringAt(playerSecret))

	assert.NoError(t, x.view.Remove(a))
	assert.False(t, x.view.Has(a))
	patches = broadcast(t, enc, x, y)
	aid := byte(a.Tree().RefID())
	assert.Equal(t, []byte{
		wire.SwitchToStructure, aid,
		wire.PackField(playerSecret, wire.Delete),
		wire.PackField(playerCards, wire.Delete),
	}, patches[0])
	assert.Empty(t, patches[1])
	assert.Nil(t, x.player("a").Get(playerSecret))
	assert.Equal(t, "sb", y.player("b").StringAt(playerSecret))
}

func TestView_FullStateAndRemove(t *testing.T) {
	s := newSchema(t)
	state := NewStruct(s.State)
	enc := NewEncoder(state, Options{})
	hidden := s.item(t, "treasure", 9)
	assert.NoError(t, state.Set(stHidden, hidden))
	assert.NoError(t, state.Set(stCurrent, s.item(t, "public", 1)))
	assert.True(t, hidden.Tree().IsFiltered())
	assert.True(t, state.Tree().IsPartiallyFiltered())
	_, err := enc.Encode()
	assert.NoError(t, err)
	enc.DiscardChanges()

	all, err := enc.EncodeAll()
	assert.NoError(t, err)
	assert.NotContains(t, string(all), "treasure")

	x, y := s.observer(t), s.observer(t)
	assert.NoError(t, x.view.Add(hidden))
	fullX, err := enc.EncodeAllView(x.view, all)
	assert.NoError(t, err)
	fullY, err := enc.EncodeAllView(y.view, all)
	assert.NoError(t, err)
	assert.Equal(t, all, fullY)

	_, err = x.dec.Decode(fullX)
	assert.NoError(t, err)
	_, err = y.dec.Decode(fullY)
	assert.NoError(t, err)
	assert.Equal(t, "treasure", x.mirror.ChildStruct(stHidden).StringAt(itemName))
	assert.Equal(t, "public", x.mirror.ChildStruct(stCurrent).StringAt(itemName))
	assert.Nil(t, y.mirror.ChildStruct(stHidden))
	assert.Equal(t, "public", y.mirror.ChildStruct(stCurrent).StringAt(itemName))

	hid := hidden.Tree().RefID()
	assert.NoError(t, x.view.Remove(hidden))
	patches := broadcast(t, enc, x, y)
	assert.Equal(t, []byte{wire.SwitchToStructure, 0, wire.PackField(stHidden, wire.Delete)}, patches[0])
	assert.Empty(t, patches[1])
	assert.Nil(t, x.mirror.ChildStruct(stHidden))
	_, ok := x.dec.Tracker().Get(hid)
	assert.False(t, ok)
}

func TestView_TaggedCollection(t *testing.T) {
	s := newSchema(t)
	state := NewStruct(s.State)
	enc := NewEncoder(state, Options{})
	players := NewMap(classes.Ref(s.Player))
	assert.NoError(t, state.Set(stPlayers, players))
	a := newPlayer(t, s, "a", "sa")
	cards := NewArray(classes.Ref(s.Item))
	assert.NoError(t, cards.Push(s.item(t, "ace", 1), s.item(t, "king", 2)))
	assert.NoError(t, a.Set(playerCards, cards))
	assert.NoError(t, players.Set("a", a))
	assert.True(t, cards.Tree().IsFiltered())

	x, y := s.observer(t), s.observer(t)
	patches := broadcast(t, enc, x, y)
	assert.NotContains(t, string(patches[0]), "ace")

	// x is granted the cards after they were first flushed
	assert.NoError(t, x.view.Add(a, 1))
	assert.NoError(t, y.view.Add(a))
	assert.True(t, x.view.HasTag(a, 1))
	patches = broadcast(t, enc, x, y)
	assert.NotContains(t, string(patches[1]), "ace")
	xcards := x.player("a").ChildArray(playerCards)
	if assert.NotNil(t, xcards) {
		assert.Equal(t, []string{"ace", "king"}, itemNames(xcards.Values()))
	}
	assert.Nil(t, y.player("a").Get(playerCards))
	assert.Equal(t, "sa", y.player("a").StringAt(playerSecret))
	assert.Nil(t, x.player("a").Get(playerSecret))

	queen := s.item(t, "queen", 3)
	assert.NoError(t, cards.Push(queen))
	patches = broadcast(t, enc, x, y)
	assert.Empty(t, patches[1])
	assert.Equal(t, []string{"ace", "king", "queen"}, itemNames(xcards.Values()))

	assert.Equal(t, queen, cards.Pop())
	patches = broadcast(t, enc, x, y)
	assert.Contains(t, patches[0], byte(wire.DeleteByRefID))
	assert.Empty(t, patches[1])
	assert.Equal(t, []string{"ace", "king"}, itemNames(xcards.Values()))
	_, ok := x.dec.Tracker().Get(queen.Tree().RefID())
	assert.False(t, ok)
}

func TestView_Detached(t *testing.T) {
	s := newSchema(t)
	v := NewStateView()
	assert.ErrorIs(t, v.Add(NewStruct(s.Item)), ErrDetached)
	assert.ErrorIs(t, v.Remove(NewStruct(s.Item)), ErrDetached)
}

func TestView_SharedAndTaggedLinks(t *testing.T) {
	s := newSchema(t)
	state := NewStruct(s.State)
	enc := NewEncoder(state, Options{})
	gem := s.item(t, "gem", 1)
	assert.NoError(t, state.Set(stHidden, gem))
	assert.True(t, gem.Tree().IsFiltered())
	assert.NoError(t, state.Set(stCurrent, gem))
	assert.False(t, gem.Tree().IsFiltered())

	x, y := s.observer(t), s.observer(t)
	assert.NoError(t, x.view.Add(gem))
	broadcast(t, enc, x, y)
	assert.Equal(t, "gem", y.mirror.ChildStruct(stCurrent).StringAt(itemName))
	assert.Equal(t, 1.0, y.mirror.ChildStruct(stCurrent).NumberAt(itemCount))
	assert.Nil(t, y.mirror.ChildStruct(stHidden))
	assert.Equal(t, "gem", x.mirror.ChildStruct(stCurrent).StringAt(itemName))
	assert.Same(t, x.mirror.ChildStruct(stCurrent), x.mirror.ChildStruct(stHidden))

	// with the shared link gone the item is view scoped again
	assert.NoError(t, state.Delete(stCurrent))
	assert.True(t, gem.Tree().IsFiltered())
	assert.NoError(t, gem.Set(itemName, "gem2"))
	patches := broadcast(t, enc, x, y)
	assert.NotContains(t, string(patches[1]), "gem2")
	assert.Nil(t, y.mirror.ChildStruct(stCurrent))
	assert.Nil(t, x.mirror.ChildStruct(stCurrent))
	assert.Equal(t, "gem2", x.mirror.ChildStruct(stHidden).StringAt(itemName))

	// a tagged link does not hide an item that is also shared
	coin := s.item(t, "coin", 2)
	assert.NoError(t, state.Set(stOther, coin))
	assert.NoError(t, state.Set(stHidden, coin))
	assert.False(t, coin.Tree().IsFiltered())
	broadcast(t, enc, x, y)
	assert.Equal(t, "coin", y.mirror.ChildStruct(stOther).StringAt(itemName))
}

func TestView_SharedCollection(t *testing.T) {
	s := newSchema(t)
	state := NewStruct(s.State)
	enc := NewEncoder(state, Options{})
	pl := newPlayer(t, s, "a", "sa")
	cards := NewArray(classes.Ref(s.Item))
	assert.NoError(t, cards.Push(s.item(t, "ace", 1)))
	assert.NoError(t, pl.Set(playerCards, cards))
	players := NewMap(classes.Ref(s.Player))
	assert.NoError(t, players.Set("a", pl))
	assert.NoError(t, state.Set(stPlayers, players))
	assert.True(t, cards.Tree().IsFiltered())

	y := s.observer(t)
	broadcast(t, enc, y)
	assert.Nil(t, y.player("a").Get(playerCards))

	// the same array linked from an untagged field reaches everyone
	assert.NoError(t, pl.Set(playerItems, cards))
	assert.False(t, cards.Tree().IsFiltered())
	assert.False(t, cards.At(0).(*Struct).Tree().IsFiltered())
	broadcast(t, enc, y)
	items := y.player("a").ChildArray(playerItems)
	if assert.NotNil(t, items) {
		assert.Equal(t, []string{"ace"}, itemNames(items.Values()))
	}
	assert.Nil(t, y.player("a").Get(playerCards))
}
