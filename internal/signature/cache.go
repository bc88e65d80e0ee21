package signature

import (
	"strings"
	"sync"

	"github.com/Zachacious/go-mockspec/internal/model"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes lookups per command name, failures included. Concurrent
// lookups of one name share a single call to the wrapped provider.
type Cache struct {
	provider Provider
	group    singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	sig *model.CommandSignature
	err error
}

// NewCache wraps p.
func NewCache(p Provider) *Cache {
	return &Cache{provider: p, entries: make(map[string]cacheEntry)}
}

// Lookup implements Provider.
func (c *Cache) Lookup(name string) (*model.CommandSignature, error) {
	key := strings.ToLower(name)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e.sig, e.err
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return e.sig, e.err
		}
		sig, err := c.provider.Lookup(name)
		c.mu.Lock()
		c.entries[key] = cacheEntry{sig: sig, err: err}
		c.mu.Unlock()
		return sig, err
	})
	sig, _ := v.(*model.CommandSignature)
	return sig, err
}

// Len returns the number of memoized names.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
