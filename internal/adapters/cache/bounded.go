package cache

import (
	"github.com/jellydator/ttlcache/v3"
)

type boundedStore[T any] struct {
	cache *ttlcache.Cache[string, T]
}

func (c *boundedStore[T]) Get(key string) (T, bool) {
	item := c.cache.Get(key)
	if item == nil {
		var empty T
		return empty, false
	}
	return item.Value(), true
}

func (c *boundedStore[T]) Set(key string, data T) {
	c.cache.Set(key, data, ttlcache.NoTTL)
}

func (c *boundedStore[T]) Clear() {
	c.cache.DeleteAll()
}

func (c *boundedStore[T]) Len() int {
	return c.cache.Len()
}

// NewBoundedStore returns a store holding at most capacity entries.
// The least recently used entry is evicted to make room for a new one.
func NewBoundedStore[T any](capacity uint64) *boundedStore[T] {
	lru := ttlcache.New[string, T](
		ttlcache.WithCapacity[string, T](capacity),
	)
	return &boundedStore[T]{cache: lru}
}

// NewStore picks the unbounded store when capacity is 0.
func NewStore[T any](capacity uint64) Store[T] {
	if capacity == 0 {
		return NewBasicStore[T]()
	}
	return NewBoundedStore[T](capacity)
}
