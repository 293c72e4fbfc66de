package events

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// opener hands out detached channels, or fails while broken is set. The
// channels are never used for I/O.
type opener struct {
	broken bool
	opened int
}

func (o *opener) open() (*amqp.Channel, error) {
	if o.broken {
		return nil, errors.New("connection reset")
	}
	o.opened++
	return &amqp.Channel{}, nil
}

func TestChannelPool_FailedReopenKeepsSlot(t *testing.T) {
	ctx := context.Background()
	o := &opener{broken: true}
	pool := newChannelPool("orders", 2, o.open, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := pool.GetChannel(ctx)
		require.Error(t, err)
		assert.Len(t, pool.channels, 2)
	}

	o.broken = false
	first, err := pool.GetChannel(ctx)
	require.NoError(t, err)
	second, err := pool.GetChannel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, o.opened)

	pool.ReturnChannel(first)
	pool.ReturnChannel(second)
	assert.Len(t, pool.channels, 2)

	again, err := pool.GetChannel(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again, "open channels are reused")
	assert.Equal(t, 2, o.opened)
}

func TestChannelPool_DroppedChannelIsReplaced(t *testing.T) {
	ctx := context.Background()
	o := &opener{}
	pool := newChannelPool("orders", 1, o.open, zap.NewNop())

	ch, err := pool.GetChannel(ctx)
	require.NoError(t, err)
	pool.ReturnChannel(nil)
	assert.Len(t, pool.channels, 1)

	fresh, err := pool.GetChannel(ctx)
	require.NoError(t, err)
	assert.NotSame(t, ch, fresh)
	assert.Equal(t, 2, o.opened)
}

func TestChannelPool_WaitsForContext(t *testing.T) {
	o := &opener{}
	pool := newChannelPool("orders", 1, o.open, zap.NewNop())

	held, err := pool.GetChannel(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.GetChannel(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		pool.ReturnChannel(held)
	}()
	got, err := pool.GetChannel(context.Background())
	require.NoError(t, err)
	assert.Same(t, held, got)
}

func TestChannelPool_ClosedPool(t *testing.T) {
	pool := newChannelPool("orders", 2, (&opener{}).open, zap.NewNop())
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	_, err := pool.GetChannel(context.Background())
	assert.EqualError(t, err, "channel pool is closed")
}
