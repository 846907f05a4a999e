package upstream

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheSize bounds every read-through cache; least recently used entries go
// first.
const cacheSize = 1024

// ttlCache is a read-through cache shared by all requests of one process. A
// non-positive ttl disables caching.
type ttlCache[V any] struct {
	lru *expirable.LRU[string, V]
}

func newTTLCache[V any](ttl time.Duration) *ttlCache[V] {
	if ttl <= 0 {
		return &ttlCache[V]{}
	}
	return &ttlCache[V]{lru: expirable.NewLRU[string, V](cacheSize, nil, ttl)}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	if c.lru == nil {
		var zero V
		return zero, false
	}
	return c.lru.Get(key)
}

func (c *ttlCache[V]) put(key string, v V) {
	if c.lru != nil {
		c.lru.Add(key, v)
	}
}
