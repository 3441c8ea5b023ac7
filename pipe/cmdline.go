package pipe

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// CmdlineCache is a fixed-capacity pid -> process_name mapping with LRU
// eviction, populated by the host through a push hook and consulted by
// the renderer.
type CmdlineCache struct {
	cache *lru.Cache[int32, string]
}

// NewCmdlineCache returns a cache holding at most capacity entries.
func NewCmdlineCache(capacity int) *CmdlineCache {
	c, err := lru.New[int32, string](capacity)
	if err != nil {
		// lru.New only fails for a non-positive size; NewCmdlineCache's
		// caller is expected to pass a sane capacity, so fall back to a
		// single-entry cache rather than propagating a constructor error
		// from a package with otherwise error-free construction.
		c, _ = lru.New[int32, string](1)
	}
	return &CmdlineCache{cache: c}
}

// Push records that pid is currently running as comm, evicting the least
// recently used entry if the cache is at capacity.
func (c *CmdlineCache) Push(pid int32, comm string) {
	c.cache.Add(pid, comm)
}

// Lookup returns the process name last pushed for pid, or ("", false) if
// unknown (the renderer falls back to "<...>").
func (c *CmdlineCache) Lookup(pid int32) (string, bool) {
	return c.cache.Get(pid)
}

// Len returns the number of entries currently cached.
func (c *CmdlineCache) Len() int {
	return c.cache.Len()
}
