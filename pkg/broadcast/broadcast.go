package broadcast

import (
	"context"
	"errors"
)

var (
	ErrBroadcasterClosed = errors.New("broadcaster is closed")
	ErrSubscriberClosed  = errors.New("subscriber is closed")
)

// Message wraps a broadcast payload.
type Message[T any] struct {
	Data T
}

// Broadcaster sends messages to all current subscribers.
type Broadcaster[T any] interface {
	Broadcast(ctx context.Context, msg Message[T]) error
	Subscribe(ctx context.Context) Subscriber[T]
	Close() error
}

// Subscriber receives broadcast messages.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed when the
	// subscription ends.
	Receive(ctx context.Context) <-chan Message[T]
	Close() error
}
