package cache

// Store maps cache keys to decoded values.
//
// Entries are only ever added by Set and removed by Clear, or by the
// implementation's own eviction strategy if it has one.
type Store[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Clear()
	Len() int
}
