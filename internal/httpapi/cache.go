package httpapi

import (
	"sync"
	"time"
)

// ttlCache memoizes response payloads for an expiry window so bursts of
// dashboard polling do not hammer upstream providers.
type ttlCache struct {
	ttl     time.Duration
	entries sync.Map
}

type cacheEntry struct {
	value   any
	expires time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{ttl: ttl}
}

// get returns the cached value for key if it has not expired.
func (c *ttlCache) get(key string) (any, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	e := v.(cacheEntry)
	if time.Now().After(e.expires) {
		c.entries.Delete(key)
		return nil, false
	}
	return e.value, true
}

func (c *ttlCache) set(key string, value any) {
	if c.ttl <= 0 {
		return
	}
	c.entries.Store(key, cacheEntry{value: value, expires: time.Now().Add(c.ttl)})
}
