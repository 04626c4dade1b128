package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/drpcorg/stree/utils"
)

const TypicalMTU = 1500

// Peer runs one connection of a replication stream: the records fed
// by out are written to conn, the records read from conn are drained
// into in. Either side may be nil for a one-way stream.
type Peer struct {
	closed atomic.Bool

	conn io.ReadWriteCloser
	out  Feeder
	in   Drainer
	log  utils.Logger
}

func NewPeer(conn io.ReadWriteCloser, out Feeder, in Drainer, log utils.Logger) *Peer {
	return &Peer{conn: conn, out: out, in: in, log: log}
}

func (p *Peer) keepRead(ctx context.Context) error {
	var buf bytes.Buffer
	chunk := make([]byte, TypicalMTU)
	for !p.closed.Load() {
		n, err := p.conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			recs, serr := Split(&buf)
			if serr != nil {
				return serr
			}
			if len(recs) > 0 && p.in != nil {
				if derr := p.in.Drain(ctx, recs); derr != nil {
					return derr
				}
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Peer) keepWrite(ctx context.Context) error {
	if p.out == nil {
		<-ctx.Done()
		return nil
	}
	for !p.closed.Load() {
		recs, err := p.out.Feed(ctx)
		if len(recs) > 0 {
			b := net.Buffers(recs)
			if _, werr := b.WriteTo(p.conn); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// quiet drops the errors of an orderly shutdown.
func quiet(err error) error {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, utils.ErrClosed):
		return nil
	}
	return err
}

// Keep runs the connection until both directions stop. The end of
// either direction closes the connection, which ends the other one.
func (p *Peer) Keep(ctx context.Context) (rerr, werr error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	readErr, writeErr := make(chan error, 1), make(chan error, 1)
	go func() { readErr <- p.keepRead(ctx) }()
	go func() { writeErr <- p.keepWrite(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case rerr = <-readErr:
		case werr = <-writeErr:
		}
		p.closed.Store(true)
		cancel()
		_ = p.conn.Close()
	}
	rerr, werr = quiet(rerr), quiet(werr)
	if rerr != nil || werr != nil {
		p.log.Warn("peer stopped", "read", rerr, "write", werr)
	}
	return
}

func (p *Peer) Close() error {
	p.closed.Store(true)
	return p.conn.Close()
}
