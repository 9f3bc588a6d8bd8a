package cache

import "sync"

type basicStore[T any] struct {
	cache     map[string]T
	cacheLock sync.RWMutex
}

func (c *basicStore[T]) Get(key string) (T, bool) {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()

	data, ok := c.cache[key]
	return data, ok
}

func (c *basicStore[T]) Set(key string, data T) {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()

	c.cache[key] = data
}

func (c *basicStore[T]) Clear() {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()

	clear(c.cache)
}

func (c *basicStore[T]) Len() int {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()

	return len(c.cache)
}

// NewBasicStore returns an unbounded store. Nothing is evicted until Clear is called.
func NewBasicStore[T any]() *basicStore[T] {
	return &basicStore[T]{
		cache: make(map[string]T),
	}
}
