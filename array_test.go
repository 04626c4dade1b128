package stree

import (
	"cmp"
	"testing"

	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
	"github.com/stretchr/testify/assert"
)

func numbers(t *testing.T, s *schema, opts Options, values ...any) (*Array, *Struct, *pair) {
	state, mirror, p := s.pair(t, opts)
	nums := NewArray(classes.NumberType)
	assert.NoError(t, nums.Push(values...))
	assert.NoError(t, state.Set(stNumbers, nums))
	p.flush(t)
	return nums, mirror, p
}

func TestArray_Sequential(t *testing.T) {
	s := newSchema(t)
	nums, mirror, p := numbers(t, s, Options{}, 1, 2, 3, 4)

	assert.Equal(t, 1.0, nums.Shift())
	assert.NoError(t, nums.Unshift(9))
	assert.NoError(t, nums.Push(7))
	assert.NoError(t, nums.Move(0, 3))
	nums.Reverse()
	assert.NoError(t, nums.SetAt(1, 8))
	assert.Equal(t, 2.0, nums.Pop())
	assert.NoError(t, nums.InsertAt(2, 5))
	assert.Equal(t, []any{7.0, 8.0, 5.0, 4.0, 3.0}, nums.Values())

	data, err := p.enc.Encode()
	assert.NoError(t, err)
	assert.NotContains(t, data, byte(wire.Clear))
	_, err = p.dec.Decode(data)
	assert.NoError(t, err)
	assert.Equal(t, nums.Values(), mirror.ChildArray(stNumbers).Values())
}

func TestArray_SequenceLimit(t *testing.T) {
	s := newSchema(t)
	nums, mirror, p := numbers(t, s, Options{MaxSequence: 2}, 1, 2, 3, 4)
	nums.Shift()
	nums.Shift()
	nums.Shift()

	data, err := p.enc.Encode()
	assert.NoError(t, err)
	id := byte(nums.Tree().RefID())
	assert.Equal(t, []byte{wire.SwitchToStructure, id, byte(wire.Clear)}, data[:3])
	_, err = p.dec.Decode(data)
	assert.NoError(t, err)
	assert.Equal(t, []any{4.0}, mirror.ChildArray(stNumbers).Values())
}

func TestArray_IndexedThenShift(t *testing.T) {
	s := newSchema(t)
	nums, mirror, p := numbers(t, s, Options{}, 1, 2, 3)
	assert.NoError(t, nums.SetAt(0, 10))
	assert.NoError(t, nums.Push(4))
	assert.NoError(t, nums.Unshift(0))

	data, err := p.enc.Encode()
	assert.NoError(t, err)
	assert.Contains(t, data, byte(wire.Clear))
	_, err = p.dec.Decode(data)
	assert.NoError(t, err)
	assert.Equal(t, []any{0.0, 10.0, 2.0, 3.0, 4.0}, mirror.ChildArray(stNumbers).Values())
}

func TestArray_Indexed(t *testing.T) {
	s := newSchema(t)
	nums, mirror, p := numbers(t, s, Options{}, 1, 2, 3)
	assert.NoError(t, nums.SetAt(1, 20))
	nums.Pop()
	assert.NoError(t, nums.Push(30))
	assert.NoError(t, nums.Push(40))

	mirrorNums := mirror.ChildArray(stNumbers)
	var added, changed []any
	p.dec.Callbacks().OnAdd(mirrorNums, func(item, key any) {
		added = append(added, key)
	})
	p.dec.Callbacks().OnItemChange(mirrorNums, func(item, key any) {
		changed = append(changed, item)
	})
	p.flush(t)
	assert.Equal(t, []any{1.0, 20.0, 30.0, 40.0}, mirrorNums.Values())
	assert.Equal(t, []any{20.0}, changed)
	assert.Equal(t, []any{2, 3}, added)
}

func TestArray_RemoveTail(t *testing.T) {
	s := newSchema(t)
	nums, mirror, p := numbers(t, s, Options{}, 1, 2, 3, 4)
	nums.Pop()
	nums.Pop()
	p.flush(t)
	assert.Equal(t, []any{1.0, 2.0}, mirror.ChildArray(stNumbers).Values())
}

func TestArray_Sort(t *testing.T) {
	s := newSchema(t)
	nums, mirror, p := numbers(t, s, Options{}, 3, 1, 2)
	nums.Sort(func(x, y any) int {
		return cmp.Compare(x.(float64), y.(float64))
	})
	p.flush(t)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, mirror.ChildArray(stNumbers).Values())
}

func TestArray_Splice(t *testing.T) {
	s := newSchema(t)
	nums, mirror, p := numbers(t, s, Options{}, 1, 2, 3, 4, 5)
	removed, err := nums.Splice(1, 2, 8, 9, 10)
	assert.NoError(t, err)
	assert.Equal(t, []any{2.0, 3.0}, removed)
	p.flush(t)
	assert.Equal(t, []any{1.0, 8.0, 9.0, 10.0, 4.0, 5.0}, mirror.ChildArray(stNumbers).Values())
}

func TestArray_Refs(t *testing.T) {
	s := newSchema(t)
	state, mirror, p := s.pair(t, Options{})
	items := NewArray(classes.Ref(s.Item))
	a, b, c := s.item(t, "a", 1), s.item(t, "b", 2), s.item(t, "c", 3)
	assert.NoError(t, items.Push(a, b, c))
	assert.NoError(t, state.Set(stItems, items))
	p.flush(t)

	assert.NoError(t, items.Move(2, 0))
	assert.Equal(t, a, items.RemoveAt(1))
	p.flush(t)
	mirrorItems := mirror.ChildArray(stItems)
	assert.Equal(t, []string{"c", "b"}, itemNames(mirrorItems.Values()))
	_, ok := p.dec.Tracker().Get(a.Tree().RefID())
	assert.False(t, ok)

	// a moved item keeps its identity on the receiver
	mb := mirrorItems.At(1)
	assert.NoError(t, items.Move(1, 0))
	p.flush(t)
	assert.Same(t, mb, mirrorItems.At(0))
}

func TestMap_DeleteAndClear(t *testing.T) {
	s := newSchema(t)
	state, mirror, p := s.pair(t, Options{})
	players := NewMap(classes.Ref(s.Player))
	assert.NoError(t, state.Set(stPlayers, players))
	for _, name := range []string{"a", "b", "c"} {
		pl := NewStruct(s.Player)
		assert.NoError(t, pl.Set(playerName, name))
		assert.NoError(t, players.Set(name, pl))
	}
	p.flush(t)
	mp := mirror.ChildMap(stPlayers)
	assert.Equal(t, []string{"a", "b", "c"}, mp.Keys())

	assert.True(t, players.Delete("b"))
	assert.False(t, players.Delete("b"))
	p.flush(t)
	assert.Equal(t, []string{"a", "c"}, mp.Keys())
	assert.False(t, mp.Has("b"))

	again := NewStruct(s.Player)
	assert.NoError(t, again.Set(playerName, "b2"))
	assert.NoError(t, players.Set("b", again))
	// b keeps its first slot on both sides
	assert.Equal(t, []string{"a", "b", "c"}, players.Keys())
	p.flush(t)
	assert.Equal(t, []string{"a", "b", "c"}, mp.Keys())
	assert.Equal(t, "b2", mp.Get("b").(*Struct).StringAt(playerName))

	players.Clear()
	fresh := NewStruct(s.Player)
	assert.NoError(t, players.Set("z", fresh))
	p.flush(t)
	assert.Equal(t, []string{"z"}, mp.Keys())
	// state, map, z
	assert.Equal(t, 3, p.dec.Tracker().Len())
}

func TestSet_Collection(t *testing.T) {
	s := newSchema(t)
	state, mirror, p := s.pair(t, Options{})
	tags := NewSet(classes.StringType)
	bag := NewCollection(classes.Ref(s.Item))
	assert.NoError(t, state.Set(stTags, tags))
	assert.NoError(t, state.Set(stBag, bag))

	for _, tag := range []string{"x", "y", "x"} {
		_, err := tags.Add(tag)
		assert.NoError(t, err)
	}
	one := s.item(t, "one", 1)
	assert.NoError(t, bag.Add(one))
	assert.NoError(t, bag.Add(one))
	assert.NoError(t, bag.Add(s.item(t, "two", 2)))
	p.flush(t)
	assert.Equal(t, []any{"x", "y"}, mirror.ChildSet(stTags).Values())
	mbag := mirror.ChildCollection(stBag)
	assert.Equal(t, []string{"one", "one", "two"}, itemNames(mbag.Values()))
	assert.Same(t, mbag.At(0), mbag.At(1))

	assert.True(t, tags.Delete("x"))
	assert.True(t, bag.Delete(one))
	p.flush(t)
	assert.Equal(t, []any{"y"}, mirror.ChildSet(stTags).Values())
	assert.Equal(t, []string{"one", "two"}, itemNames(mbag.Values()))

	tags.Clear()
	_, err := tags.Add("z")
	assert.NoError(t, err)
	p.flush(t)
	assert.Equal(t, []any{"z"}, mirror.ChildSet(stTags).Values())
}
