// Package lru provides a fixed-capacity, access-ordered cache.
//
// It is a thin typed wrapper over hashicorp/golang-lru: a Cache of capacity
// N never holds more than N entries, and inserting a new key into a full
// cache evicts exactly one entry, the one least recently touched by Get or
// Put. All methods are safe for concurrent use.
package lru

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidCapacity is returned when the capacity is not positive.
var ErrInvalidCapacity = errors.New("lru: capacity must be positive")

// Cache is a thread-safe least-recently-used map.
type Cache[K comparable, V any] struct {
	inner    *lru.Cache[K, V]
	capacity int
}

// New creates a cache holding at most capacity entries.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	return NewWithEvict[K, V](capacity, nil)
}

// NewWithEvict creates a cache that calls onEvict for every entry dropped
// because of capacity or removed explicitly.
func NewWithEvict[K comparable, V any](capacity int, onEvict func(K, V)) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	inner, err := lru.NewWithEvict[K, V](capacity, onEvict)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{inner: inner, capacity: capacity}, nil
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.inner.Get(key)
}

// Peek returns the value for key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	return c.inner.Peek(key)
}

// Put stores value under key and marks it most recently used.
// It reports whether an older entry was evicted to make room.
func (c *Cache[K, V]) Put(key K, value V) bool {
	return c.inner.Add(key, value)
}

// Remove deletes key, reporting whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	return c.inner.Remove(key)
}

// Contains reports whether key is present without touching its recency.
func (c *Cache[K, V]) Contains(key K) bool {
	return c.inner.Contains(key)
}

// Keys returns the keys from least to most recently used.
func (c *Cache[K, V]) Keys() []K {
	return c.inner.Keys()
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	return c.inner.Len()
}

// Cap returns the configured capacity.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// Purge removes all entries.
func (c *Cache[K, V]) Purge() {
	c.inner.Purge()
}
