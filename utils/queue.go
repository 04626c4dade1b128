package utils

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("[stree] frame queue is closed")
var ErrOverflow = errors.New("[stree] frame queue is overflowed")

// FDQueue is a byte-bounded FIFO of records between one producer side
// (Drain) and one consumer side (Feed). A producer that cannot fit its
// records within timelimit marks the queue overflowed; an overflowed
// queue refuses both sides, so a slow consumer gets cut off instead of
// stalling the producer.
type FDQueue[T ~[][]byte] struct {
	lock       sync.Mutex
	data       T
	size       int
	maxSize    int
	batchSize  int
	timelimit  time.Duration
	closed     bool
	overflowed bool

	readable chan struct{}
	writable chan struct{}
}

func NewFDQueue[T ~[][]byte](limit int, timelimit time.Duration, batchSize int) *FDQueue[T] {
	return &FDQueue[T]{
		maxSize:   limit,
		batchSize: batchSize,
		timelimit: timelimit,
		readable:  make(chan struct{}, 1),
		writable:  make(chan struct{}, 1),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (q *FDQueue[T]) Close() error {
	q.lock.Lock()
	q.closed = true
	q.data = nil
	q.size = 0
	q.lock.Unlock()
	signal(q.readable)
	signal(q.writable)
	return nil
}

// Size is the number of queued bytes.
func (q *FDQueue[T]) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.size
}

func (q *FDQueue[T]) state() error {
	if q.closed {
		return ErrClosed
	}
	if q.overflowed {
		return ErrOverflow
	}
	return nil
}

func (q *FDQueue[T]) Drain(ctx context.Context, recs T) error {
	var timer *time.Timer
	for {
		q.lock.Lock()
		if err := q.state(); err != nil {
			q.lock.Unlock()
			return err
		}
		written := 0
		for _, rec := range recs {
			// an oversized record still passes through an empty queue
			if q.size+len(rec) > q.maxSize && q.size > 0 {
				break
			}
			q.data = append(q.data, rec)
			q.size += len(rec)
			written++
		}
		recs = recs[written:]
		space := q.size < q.maxSize
		q.lock.Unlock()
		if written > 0 {
			signal(q.readable)
		}
		if len(recs) == 0 {
			if space {
				// pass the wakeup on to the next waiting producer
				signal(q.writable)
			}
			return nil
		}
		if timer == nil {
			timer = time.NewTimer(q.timelimit)
			defer timer.Stop()
		}
		select {
		case <-q.writable:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			q.lock.Lock()
			q.overflowed = true
			q.lock.Unlock()
			signal(q.readable)
			return ErrOverflow
		}
	}
}

// Feed returns at least one record and at most batchSize bytes (or
// a single larger record). It blocks until records arrive, the queue
// closes or ctx is done.
func (q *FDQueue[T]) Feed(ctx context.Context) (recs T, err error) {
	for {
		q.lock.Lock()
		if err = q.state(); err != nil {
			q.lock.Unlock()
			return nil, err
		}
		if len(q.data) > 0 {
			read, payload := 0, 0
			for _, rec := range q.data {
				if read > 0 && payload+len(rec) > q.batchSize {
					break
				}
				recs = append(recs, rec)
				payload += len(rec)
				read++
			}
			q.data = q.data[read:]
			q.size -= payload
			q.lock.Unlock()
			signal(q.writable)
			return recs, nil
		}
		q.lock.Unlock()
		select {
		case <-q.readable:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
