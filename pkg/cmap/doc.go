// Package cmap provides a sharded concurrent map keyed by strings.
//
// Keys are spread over a power-of-two number of shards with maphash, and
// each shard has its own RWMutex, so unrelated keys never contend. The
// client managers keep one entry per client id here.
//
// Usage:
//
//	m := cmap.New[*Client]()
//	m.Set(id, c)
//	c, ok := m.Get(id)
//
// Range visits shards one at a time; the view is not a consistent snapshot.
package cmap
