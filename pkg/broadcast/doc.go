// Package broadcast provides generic publish/subscribe fan-out.
//
// MemoryBroadcaster delivers messages to every subscriber of the current
// process without blocking: a subscriber whose buffer is full misses the
// message instead of stalling the publisher.
//
//	hub := broadcast.NewMemoryBroadcaster[string](16)
//	defer hub.Close()
//
//	sub := hub.Subscribe(ctx)
//	defer sub.Close()
//
//	go func() {
//		for msg := range sub.Receive(ctx) {
//			fmt.Println(msg.Data)
//		}
//	}()
//
//	_ = hub.Broadcast(ctx, broadcast.Message[string]{Data: "deploy finished"})
//
// Subscriptions end when their context is cancelled, when Close is called on
// the subscriber, or when the broadcaster is closed. In every case the
// receive channel is closed.
package broadcast
