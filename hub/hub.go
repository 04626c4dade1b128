// Package hub shares one state tree with many clients. Every mutation,
// encode and flush of the tree happens under the hub lock; clients
// receive framed messages through their own bounded queues.
package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/protocol"
	"github.com/drpcorg/stree/snapshots"
	"github.com/drpcorg/stree/utils"
)

var (
	ErrUnknownClient = errors.New("hub: unknown client")
	ErrNoView        = errors.New("hub: client has no view")
	ErrNoStore       = errors.New("hub: no snapshot store configured")
)

type Hub struct {
	lock     sync.Mutex
	state    *stree.Struct
	registry *classes.Registry
	enc      *stree.Encoder
	clients  *xsync.MapOf[uuid.UUID, *Client]
	opts     Options
	log      utils.Logger
}

// New starts sharing state, which must not be attached to another
// encoder.
func New(state *stree.Struct, registry *classes.Registry, opts Options) *Hub {
	opts.SetDefaults()
	return &Hub{
		state:    state,
		registry: registry,
		enc:      stree.NewEncoder(state, opts.Options),
		clients:  xsync.NewMapOf[uuid.UUID, *Client](),
		opts:     opts,
		log:      opts.Logger,
	}
}

// Restore builds a hub over the state checkpointed under name.
func Restore(store *snapshots.Store, name string, class *classes.Class, registry *classes.Registry, opts Options) (*Hub, error) {
	data, err := store.Load(name)
	if err != nil {
		return nil, err
	}
	opts.SetDefaults()
	state := stree.NewStruct(class)
	dec := stree.NewDecoder(state, registry, opts.Options)
	if _, err := dec.Decode(data); err != nil {
		return nil, errors.Wrapf(err, "restore %q", name)
	}
	if opts.Store == nil {
		opts.Store = store
		opts.Name = name
	}
	h := New(state, registry, opts)
	// the attach queued the whole state; joiners get it with EncodeAll
	h.enc.DiscardChanges()
	h.log.Info("hub restored", "name", name, "nodes", h.enc.Root().Len())
	return h, nil
}

// Join registers a client and queues the full state for it. A view
// client sees view-scoped data only once granted through View.
func (h *Hub) Join(ctx context.Context, view bool) (*Client, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	// pending changes go out first, so the full state is not followed
	// by a patch repeating them
	if err := h.flush(ctx); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	c := &Client{
		ID:    id,
		hub:   h,
		queue: utils.NewFDQueue[protocol.Records](h.opts.QueueLimit, h.opts.QueueTimeout, h.opts.BatchSize),
	}
	msg, err := h.enc.EncodeAll()
	if err != nil {
		return nil, err
	}
	if view {
		c.view = stree.NewStateView()
		if msg, err = h.enc.EncodeAllView(c.view, msg); err != nil {
			return nil, err
		}
	}
	if err := c.queue.Drain(ctx, protocol.Records{protocol.Frame(protocol.FullFrame, msg)}); err != nil {
		return nil, err
	}
	Frames.WithLabelValues("full").Inc()
	h.clients.Store(id, c)
	Clients.Inc()
	h.log.InfoCtx(utils.WithDefaultArgs(ctx, "client", id), "client joined", "view", view)
	return c, nil
}

// Leave drops the client and whatever is still queued for it.
func (h *Hub) Leave(id uuid.UUID) error {
	c, ok := h.clients.LoadAndDelete(id)
	if !ok {
		return ErrUnknownClient
	}
	Clients.Dec()
	h.log.Info("client left", "client", id)
	return c.queue.Close()
}

// Mutate runs fn on the state under the hub lock. The changes go out
// with the next Flush.
func (h *Hub) Mutate(fn func(state *stree.Struct) error) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return fn(h.state)
}

// View runs fn on the view of client id, e.g. to grant it a node.
func (h *Hub) View(id uuid.UUID, fn func(view *stree.StateView, state *stree.Struct) error) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	c, ok := h.clients.Load(id)
	if !ok {
		return ErrUnknownClient
	}
	if c.view == nil {
		return ErrNoView
	}
	return fn(c.view, h.state)
}

// Flush sends every client a patch frame with the changes since the
// last flush and clears them.
func (h *Hub) Flush(ctx context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.flush(ctx)
}

func (h *Hub) flush(ctx context.Context) error {
	shared, err := h.enc.Encode()
	if err != nil {
		return err
	}
	var failed []uuid.UUID
	h.clients.Range(func(id uuid.UUID, c *Client) bool {
		msg := shared
		if c.view != nil {
			if msg, err = h.enc.EncodeView(c.view, shared); err != nil {
				return false
			}
		}
		if len(msg) == 0 {
			return true
		}
		if derr := c.queue.Drain(ctx, protocol.Records{protocol.Frame(protocol.PatchFrame, msg)}); derr != nil {
			if ctx.Err() != nil {
				err = derr
				return false
			}
			h.log.Warn("client dropped", "client", id, "err", derr)
			failed = append(failed, id)
			return true
		}
		Frames.WithLabelValues("patch").Inc()
		return true
	})
	h.enc.DiscardChanges()
	for _, id := range failed {
		DroppedClients.Inc()
		_ = h.Leave(id)
	}
	return err
}

// Checkpoint saves the whole state, view-scoped fields included, to the
// configured store.
func (h *Hub) Checkpoint() error {
	if h.opts.Store == nil {
		return ErrNoStore
	}
	h.lock.Lock()
	data, err := h.checkpoint()
	h.lock.Unlock()
	if err != nil {
		return err
	}
	written, err := h.opts.Store.Save(h.opts.Name, data)
	if err != nil {
		return err
	}
	h.log.Debug("checkpoint", "name", h.opts.Name, "written", written, "len", len(data))
	return nil
}

func (h *Hub) checkpoint() ([]byte, error) {
	all, err := h.enc.EncodeAll()
	if err != nil {
		return nil, err
	}
	view := stree.NewStateView()
	if err := view.Add(h.state); err != nil {
		return nil, err
	}
	for _, tag := range viewTags(h.registry) {
		if err := view.Add(h.state, tag); err != nil {
			return nil, err
		}
	}
	return h.enc.EncodeAllView(view, all)
}

func viewTags(registry *classes.Registry) (tags []classes.ViewTag) {
	seen := make(map[classes.ViewTag]struct{})
	for _, c := range registry.Classes() {
		for _, f := range c.Fields {
			if _, ok := seen[f.Tag]; ok || f.Tag <= classes.Untagged {
				continue
			}
			seen[f.Tag] = struct{}{}
			tags = append(tags, f.Tag)
		}
	}
	return
}

// Len is the number of joined clients.
func (h *Hub) Len() int {
	return h.clients.Size()
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.clients.Range(func(id uuid.UUID, _ *Client) bool {
		_ = h.Leave(id)
		return true
	})
	return nil
}
