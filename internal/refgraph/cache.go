package refgraph

import "sync"

// Document is a loaded reference file.
type Document struct {
	Path    string
	Title   string
	Size    int64
	Hash    string
	Content string
}

// Cache holds reference contents keyed by content hash. It is shared by the
// snapshots of one manager and safe for concurrent use.
type Cache struct {
	mu   sync.RWMutex
	docs map[string]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{docs: make(map[string]string)}
}

// Get returns the content stored under hash.
func (c *Cache) Get(hash string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.docs[hash]
	return s, ok
}

// Put stores content under hash.
func (c *Cache) Put(hash, content string) {
	c.mu.Lock()
	c.docs[hash] = content
	c.mu.Unlock()
}

// Retain evicts every entry whose hash is not in live and returns how many
// were evicted.
func (c *Cache) Retain(live map[string]bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for h := range c.docs {
		if !live[h] {
			delete(c.docs, h)
			n++
		}
	}
	return n
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}
