package broadcast_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowkit/pkg/broadcast"
)

func receive[T any](t *testing.T, ch <-chan broadcast.Message[T]) (broadcast.Message[T], bool) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		return msg, ok
	case <-time.After(time.Second):
		require.FailNow(t, "timed out waiting for message")
		return broadcast.Message[T]{}, false
	}
}

func TestMemoryBroadcaster_FanOut(t *testing.T) {
	t.Parallel()

	hub := broadcast.NewMemoryBroadcaster[string](4)
	defer hub.Close()

	ctx := t.Context()
	a := hub.Subscribe(ctx)
	b := hub.Subscribe(ctx)
	assert.Equal(t, 2, hub.Subscribers())

	require.NoError(t, hub.Broadcast(ctx, broadcast.Message[string]{Data: "hello"}))

	for _, sub := range []broadcast.Subscriber[string]{a, b} {
		msg, ok := receive(t, sub.Receive(ctx))
		require.True(t, ok)
		assert.Equal(t, "hello", msg.Data)
	}
}

func TestMemoryBroadcaster_SlowConsumerDrops(t *testing.T) {
	t.Parallel()

	hub := broadcast.NewMemoryBroadcaster[int](1)
	defer hub.Close()

	ctx := t.Context()
	sub := hub.Subscribe(ctx)
	require.NoError(t, hub.Broadcast(ctx, broadcast.Message[int]{Data: 1}))
	require.NoError(t, hub.Broadcast(ctx, broadcast.Message[int]{Data: 2}))

	msg, _ := receive(t, sub.Receive(ctx))
	assert.Equal(t, 1, msg.Data)
	select {
	case extra := <-sub.Receive(ctx):
		assert.Fail(t, "unexpected message", extra.Data)
	default:
	}
}

func TestMemoryBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	t.Parallel()

	hub := broadcast.NewMemoryBroadcaster[string](1)
	defer hub.Close()

	ctx, cancel := context.WithCancel(t.Context())
	sub := hub.Subscribe(ctx)
	cancel()

	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := receive(t, sub.Receive(ctx))
	assert.False(t, ok, "channel is closed")
}

func TestMemoryBroadcaster_Close(t *testing.T) {
	t.Parallel()

	hub := broadcast.NewMemoryBroadcaster[string](1)
	ctx := t.Context()
	sub := hub.Subscribe(ctx)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	_, ok := receive(t, sub.Receive(ctx))
	assert.False(t, ok)
	assert.ErrorIs(t, hub.Broadcast(ctx, broadcast.Message[string]{Data: "late"}), broadcast.ErrBroadcasterClosed)

	late := hub.Subscribe(ctx)
	_, ok = receive(t, late.Receive(ctx))
	assert.False(t, ok)
	assert.NoError(t, late.Close())
}

func TestMemoryBroadcaster_Concurrent(t *testing.T) {
	t.Parallel()

	hub := broadcast.NewMemoryBroadcaster[int](100)
	defer hub.Close()
	ctx := t.Context()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe(ctx)
			defer sub.Close()
			for i := range 50 {
				_ = hub.Broadcast(ctx, broadcast.Message[int]{Data: i})
			}
		}()
		go func() {
			defer wg.Done()
			sub := hub.Subscribe(ctx)
			_ = sub.Close()
			_ = sub.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Subscribers())
}
