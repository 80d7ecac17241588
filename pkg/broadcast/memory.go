package broadcast

import (
	"context"
	"sync"
)

// MemoryBroadcaster fans messages out to in-process subscribers.
type MemoryBroadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[*memorySubscriber[T]]struct{}
	buffer int
	closed bool
}

// NewMemoryBroadcaster creates a broadcaster whose subscribers buffer up to
// buffer undelivered messages each.
func NewMemoryBroadcaster[T any](buffer int) *MemoryBroadcaster[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &MemoryBroadcaster[T]{
		subs:   make(map[*memorySubscriber[T]]struct{}),
		buffer: buffer,
	}
}

// Broadcast delivers msg to every subscriber with buffer space left.
func (b *MemoryBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBroadcasterClosed
	}
	for sub := range b.subs {
		sub.deliver(msg)
	}
	return nil
}

// Subscribe registers a subscriber that lives until ctx is done or it is
// closed. Subscribing to a closed broadcaster returns a closed subscriber.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := &memorySubscriber[T]{
		ch:     make(chan Message[T], b.buffer),
		done:   make(chan struct{}),
		parent: b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.shutdown()
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub
}

// Subscribers returns the number of active subscribers.
func (b *MemoryBroadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later broadcasts fail with
// ErrBroadcasterClosed.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		sub.shutdown()
	}
	clear(b.subs)
	return nil
}

func (b *MemoryBroadcaster[T]) remove(sub *memorySubscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		sub.shutdown()
	}
}

type memorySubscriber[T any] struct {
	ch     chan Message[T]
	done   chan struct{}
	once   sync.Once
	parent *MemoryBroadcaster[T]
}

func (s *memorySubscriber[T]) Receive(context.Context) <-chan Message[T] {
	return s.ch
}

func (s *memorySubscriber[T]) Close() error {
	s.parent.remove(s)
	return nil
}

// deliver never blocks; a full buffer drops msg for this subscriber.
// Only subscribers still registered are delivered to, so ch is open.
func (s *memorySubscriber[T]) deliver(msg Message[T]) {
	select {
	case s.ch <- msg:
	default:
	}
}

// shutdown closes the channels once. Callers hold the broadcaster write
// lock or own an unregistered subscriber.
func (s *memorySubscriber[T]) shutdown() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}
