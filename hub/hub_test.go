package hub

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/protocol"
	"github.com/drpcorg/stree/snapshots"
	"github.com/drpcorg/stree/utils"
)

const (
	playerName   = 0
	playerSecret = 1

	statePlayers = 0
	stateTitle   = 1
)

type schema struct {
	reg    *classes.Registry
	Player *classes.Class
	State  *classes.Class
}

func newSchema(t *testing.T) *schema {
	s := &schema{reg: classes.NewRegistry()}
	var err error
	s.Player, err = s.reg.Define("Player",
		classes.Field{Name: "name", Type: classes.StringType},
		classes.Field{Name: "secret", Type: classes.StringType, Tag: classes.DefaultTag},
	)
	require.NoError(t, err)
	s.State, err = s.reg.Define("State",
		classes.Field{Name: "players", Type: classes.MapOf(classes.Ref(s.Player))},
		classes.Field{Name: "title", Type: classes.StringType},
	)
	require.NoError(t, err)
	return s
}

func (s *schema) hub(t *testing.T, opts Options) *Hub {
	state := stree.NewStruct(s.State)
	require.NoError(t, state.Set(statePlayers, stree.NewMap(classes.Ref(s.Player))))
	require.NoError(t, state.Set(stateTitle, "lobby"))
	return New(state, s.reg, opts)
}

func addPlayer(name, secret string, class *classes.Class) func(state *stree.Struct) error {
	return func(state *stree.Struct) error {
		pl := stree.NewStruct(class)
		if err := pl.Set(playerName, name); err != nil {
			return err
		}
		if err := pl.Set(playerSecret, secret); err != nil {
			return err
		}
		return state.ChildMap(statePlayers).Set(name, pl)
	}
}

// deliver moves everything queued for c into m.
func deliver(t *testing.T, c *Client, m *Mirror) {
	ctx := context.Background()
	for c.Queued() > 0 {
		recs, err := c.Feed(ctx)
		require.NoError(t, err)
		require.NoError(t, m.Drain(ctx, recs))
	}
}

func player(m *Mirror, name string) (pl *stree.Struct) {
	m.Read(func(state *stree.Struct) {
		if v, ok := state.ChildMap(statePlayers).Get(name).(*stree.Struct); ok {
			pl = v
		}
	})
	return
}

func title(m *Mirror) (s string) {
	m.Read(func(state *stree.Struct) { s = state.StringAt(stateTitle) })
	return
}

func TestHub_JoinAndFlush(t *testing.T) {
	s := newSchema(t)
	h := s.hub(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.Mutate(addPlayer("a", "sa", s.Player)))

	c, err := h.Join(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Len())
	m := NewMirror(s.State, s.reg, stree.Options{})
	deliver(t, c, m)
	assert.Equal(t, "lobby", title(m))
	assert.Equal(t, "a", player(m, "a").StringAt(playerName))
	assert.Nil(t, player(m, "a").Get(playerSecret))

	require.NoError(t, h.Mutate(func(state *stree.Struct) error {
		return state.Set(stateTitle, "game")
	}))
	require.NoError(t, h.Mutate(addPlayer("b", "sb", s.Player)))
	require.NoError(t, h.Flush(ctx))
	deliver(t, c, m)
	assert.Equal(t, "game", title(m))
	assert.Equal(t, "b", player(m, "b").StringAt(playerName))

	// nothing changed, nothing sent
	require.NoError(t, h.Flush(ctx))
	assert.Zero(t, c.Queued())
}

func TestHub_PendingBeforeJoin(t *testing.T) {
	s := newSchema(t)
	h := s.hub(t, Options{})
	ctx := context.Background()
	first, err := h.Join(ctx, false)
	require.NoError(t, err)
	m1 := NewMirror(s.State, s.reg, stree.Options{})
	deliver(t, first, m1)

	require.NoError(t, h.Mutate(addPlayer("a", "sa", s.Player)))
	second, err := h.Join(ctx, false)
	require.NoError(t, err)
	require.NoError(t, h.Flush(ctx))

	m2 := NewMirror(s.State, s.reg, stree.Options{})
	deliver(t, first, m1)
	deliver(t, second, m2)
	assert.NotNil(t, player(m1, "a"))
	assert.NotNil(t, player(m2, "a"))
}

func TestHub_Views(t *testing.T) {
	s := newSchema(t)
	h := s.hub(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.Mutate(addPlayer("a", "sa", s.Player)))
	require.NoError(t, h.Mutate(addPlayer("b", "sb", s.Player)))

	plain, err := h.Join(ctx, false)
	require.NoError(t, err)
	va, err := h.Join(ctx, true)
	require.NoError(t, err)
	assert.ErrorIs(t, h.View(plain.ID, nil), ErrNoView)

	require.NoError(t, h.View(va.ID, func(view *stree.StateView, state *stree.Struct) error {
		return view.Add(state.ChildMap(statePlayers).Get("a").(*stree.Struct))
	}))
	require.NoError(t, h.Flush(ctx))

	mp := NewMirror(s.State, s.reg, stree.Options{})
	ma := NewMirror(s.State, s.reg, stree.Options{})
	deliver(t, plain, mp)
	deliver(t, va, ma)
	assert.Equal(t, "sa", player(ma, "a").StringAt(playerSecret))
	assert.Nil(t, player(ma, "b").Get(playerSecret))
	assert.Nil(t, player(mp, "a").Get(playerSecret))
}

func TestHub_Leave(t *testing.T) {
	s := newSchema(t)
	h := s.hub(t, Options{})
	c, err := h.Join(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.Zero(t, h.Len())
	_, err = c.Feed(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, h.Leave(c.ID), ErrUnknownClient)
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, h.View(c.ID, nil), ErrUnknownClient)
}

func TestHub_SlowClientDropped(t *testing.T) {
	s := newSchema(t)
	h := s.hub(t, Options{QueueLimit: 16, QueueTimeout: time.Millisecond})
	ctx := context.Background()
	_, err := h.Join(ctx, false)
	require.NoError(t, err)

	for i := 0; i < 3 && h.Len() > 0; i++ {
		require.NoError(t, h.Mutate(func(state *stree.Struct) error {
			return state.Set(stateTitle, string(rune('a'+i))+" a long enough title")
		}))
		require.NoError(t, h.Flush(ctx))
	}
	assert.Zero(t, h.Len())
}

func TestMirror_PatchFirst(t *testing.T) {
	s := newSchema(t)
	m := NewMirror(s.State, s.reg, stree.Options{})
	err := m.Drain(context.Background(), protocol.Records{protocol.Frame(protocol.PatchFrame, []byte{1, 0xa1, 'x'})})
	assert.ErrorIs(t, err, ErrNoState)
}

func TestHub_CheckpointRestore(t *testing.T) {
	s := newSchema(t)
	store, err := snapshots.Open(t.TempDir(), snapshots.Options{Options: pebble.Options{}})
	require.NoError(t, err)
	defer store.Close()

	assert.ErrorIs(t, s.hub(t, Options{}).Checkpoint(), ErrNoStore)

	h := s.hub(t, Options{Store: store, Name: "room"})
	require.NoError(t, h.Mutate(addPlayer("a", "sa", s.Player)))
	require.NoError(t, h.Checkpoint())
	require.NoError(t, h.Checkpoint())

	restored, err := Restore(store, "room", s.State, s.reg, Options{})
	require.NoError(t, err)
	require.NoError(t, restored.Mutate(func(state *stree.Struct) error {
		pl := state.ChildMap(statePlayers).Get("a").(*stree.Struct)
		assert.Equal(t, "sa", pl.StringAt(playerSecret))
		assert.Equal(t, "lobby", state.StringAt(stateTitle))
		return nil
	}))

	c, err := restored.Join(context.Background(), false)
	require.NoError(t, err)
	m := NewMirror(s.State, s.reg, stree.Options{})
	deliver(t, c, m)
	assert.Equal(t, "a", player(m, "a").StringAt(playerName))

	_, err = Restore(store, "nope", s.State, s.reg, Options{})
	assert.ErrorIs(t, err, snapshots.ErrNotFound)
}

func TestHub_OverPeer(t *testing.T) {
	s := newSchema(t)
	h := s.hub(t, Options{})
	ctx := context.Background()
	c, err := h.Join(ctx, false)
	require.NoError(t, err)
	m := NewMirror(s.State, s.reg, stree.Options{})

	left, right := net.Pipe()
	log := utils.NewDefaultLogger(slog.LevelError)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = protocol.NewPeer(left, c, nil, log).Keep(ctx)
	}()
	go func() {
		defer wg.Done()
		_, _ = protocol.NewPeer(right, nil, m, log).Keep(ctx)
	}()

	require.NoError(t, h.Mutate(addPlayer("a", "sa", s.Player)))
	require.NoError(t, h.Flush(ctx))
	require.Eventually(t, func() bool {
		return player(m, "a") != nil
	}, time.Second, time.Millisecond)

	require.NoError(t, h.Close())
	wg.Wait()
}
