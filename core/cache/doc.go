// Package cache provides thread-safe caches with bounded capacity.
//
// LRUCache evicts the least recently used entry once capacity is reached:
//
//	c := cache.NewLRUCache[string, *regexp.Regexp](256)
//	c.Put(pattern, re)
//	if re, ok := c.Get(pattern); ok {
//		// ...
//	}
//
// An eviction callback releases resources held by evicted values:
//
//	conns := cache.NewLRUCache[string, net.Conn](50)
//	conns.SetEvictCallback(func(_ string, conn net.Conn) {
//		conn.Close()
//	})
//
// Get, Put and Remove run in constant time. All methods are safe for
// concurrent use. Eviction callbacks run while the cache lock is held and
// must not call back into the cache.
package cache
