package scanner

import "sync"

// Cache memoizes the discovered URL for the life of the process. A nil
// *Cache is a valid, permanently empty cache, which is how caching is
// switched off.
type Cache struct {
	mu  sync.RWMutex
	url string
}

func NewCache() *Cache { return &Cache{} }

func (c *Cache) Get() (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url, c.url != ""
}

// Set stores url. Concurrent writers race; the last one wins.
func (c *Cache) Set(url string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.url = url
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.Set("")
}
