package geocode

import "sync"

// Cache memoizes resolved locations by their exact input string.
// Entries live for the life of the process; distinct venue addresses are few.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Location
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]Location),
	}
}

// Get retrieves a location. The key is matched verbatim, whitespace included.
func (c *Cache) Get(key string) (Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.entries[key]
	return loc, ok
}

// Set stores a location under key, replacing any previous value.
func (c *Cache) Set(key string, loc Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = loc
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
