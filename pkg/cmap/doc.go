// Package cmap provides a concurrent map sharded by key hash.
//
// The hub keeps every live connection in a Map keyed by connection id, and
// the peer-link server keeps its subscriber table in one. Each shard has its
// own RWMutex, so inserts and removals on different shards do not contend
// and a broadcast only holds one shard read lock at a time.
//
// Usage:
//
//	m := cmap.New[string, *hub.Conn]()
//	m.Set(c.ID(), c)
//	m.Range(func(id string, c *hub.Conn) bool { ...; return true })
//
// Range does not take a consistent snapshot across shards. Callers that
// need to send on every value should use Values, which copies the values
// out shard by shard and releases each lock before returning.
package cmap
