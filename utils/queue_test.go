package utils

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type records [][]byte

func TestFDQueueOrder(t *testing.T) {
	const N = 1 << 10
	const K = 1 << 3

	ctx := context.Background()
	queue := NewFDQueue[records](1024, time.Second, 64)

	var wg sync.WaitGroup
	for k := 0; k < K; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			i := uint64(k) << 32
			for n := uint64(0); n < N; n++ {
				var b [8]byte
				binary.LittleEndian.PutUint64(b[:], i|n)
				assert.NoError(t, queue.Drain(ctx, records{b[:]}))
			}
		}(k)
	}

	check := [K]int{}
	for i := 0; i < N*K; {
		nums, err := queue.Feed(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(nums)*8, 64)
		for _, num := range nums {
			j := binary.LittleEndian.Uint64(num)
			k := int(j >> 32)
			n := int(j & 0xffffffff)
			assert.Equal(t, check[k], n)
			check[k] = n + 1
			i++
		}
	}
	wg.Wait()
	assert.Equal(t, 0, queue.Size())

	assert.NoError(t, queue.Close())
	assert.ErrorIs(t, queue.Drain(ctx, records{{'a'}}), ErrClosed)
	_, err := queue.Feed(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFDQueueOverflow(t *testing.T) {
	ctx := context.Background()
	queue := NewFDQueue[records](4, time.Millisecond*10, 4)
	assert.NoError(t, queue.Drain(ctx, records{[]byte("abc")}))
	assert.ErrorIs(t, queue.Drain(ctx, records{[]byte("def")}), ErrOverflow)
	_, err := queue.Feed(ctx)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestFDQueueOversized(t *testing.T) {
	ctx := context.Background()
	queue := NewFDQueue[records](4, time.Second, 4)
	assert.NoError(t, queue.Drain(ctx, records{[]byte("0123456789")}))
	recs, err := queue.Feed(ctx)
	require.NoError(t, err)
	assert.Equal(t, records{[]byte("0123456789")}, recs)
}

func TestFDQueueFeedCancel(t *testing.T) {
	queue := NewFDQueue[records](16, time.Second, 16)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*10)
	defer cancel()
	_, err := queue.Feed(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
