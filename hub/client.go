package hub

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/drpcorg/stree"
	"github.com/drpcorg/stree/protocol"
	"github.com/drpcorg/stree/utils"
)

// Client is the outbound side of one joined observer: it feeds the
// frames queued for it, e.g. into a protocol.Peer.
type Client struct {
	ID    uuid.UUID
	hub   *Hub
	view  *stree.StateView
	queue *utils.FDQueue[protocol.Records]
}

// Feed returns the next queued frames; io.EOF once the client left.
func (c *Client) Feed(ctx context.Context) (protocol.Records, error) {
	recs, err := c.queue.Feed(ctx)
	if errors.Is(err, utils.ErrClosed) {
		return nil, io.EOF
	}
	return recs, err
}

func (c *Client) Close() error {
	err := c.hub.Leave(c.ID)
	if errors.Is(err, ErrUnknownClient) {
		return nil
	}
	return err
}

// Queued is the number of bytes waiting to be fed.
func (c *Client) Queued() int {
	return c.queue.Size()
}
