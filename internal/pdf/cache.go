package pdf

import (
	"container/list"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
)

// GraphCache keeps recently parsed document graphs with LRU eviction.
// Entries are keyed by path, modification time and size, so a file that
// changes on disk is parsed again. Cached graphs are shared and must be
// treated as read-only.
type GraphCache struct {
	entries map[cacheKey]*list.Element
	lruList *list.List

	currentSize int64
	maxSize     int64
	maxEntries  int

	stats CacheStats
	mutex sync.Mutex
}

type cacheKey struct {
	path    string
	modTime int64
	size    int64
}

type cachedGraph struct {
	key         cacheKey
	graph       *custom.Graph
	accessTime  time.Time
	accessCount int
}

// CacheStats provides cache performance statistics
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	TotalSize int64   `json:"total_size"`
	HitRate   float64 `json:"hit_rate"`
}

// NewGraphCache creates a cache holding at most maxEntries graphs whose
// source files add up to at most maxSize bytes. A maxEntries of zero
// disables caching.
func NewGraphCache(maxEntries int, maxSize int64) *GraphCache {
	return &GraphCache{
		entries:    make(map[cacheKey]*list.Element),
		lruList:    list.New(),
		maxSize:    maxSize,
		maxEntries: maxEntries,
	}
}

// Get returns the graph cached for this exact file version
func (c *GraphCache) Get(path string, modTime time.Time, size int64) (*custom.Graph, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := cacheKey{path: path, modTime: modTime.UnixNano(), size: size}
	node, exists := c.entries[key]
	if !exists {
		c.stats.Misses++
		return nil, false
	}

	entry := node.Value.(*cachedGraph)
	entry.accessTime = time.Now()
	entry.accessCount++
	c.lruList.MoveToFront(node)
	c.stats.Hits++
	return entry.graph, true
}

// Put stores a graph for a file version, replacing older versions of the same path
func (c *GraphCache) Put(path string, modTime time.Time, size int64, g *custom.Graph) {
	if c.maxEntries <= 0 || (c.maxSize > 0 && size > c.maxSize) {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.removePath(path)

	key := cacheKey{path: path, modTime: modTime.UnixNano(), size: size}
	for len(c.entries) >= c.maxEntries || (c.maxSize > 0 && c.currentSize+size > c.maxSize) {
		if !c.evictLRU() {
			break
		}
	}

	c.entries[key] = c.lruList.PushFront(&cachedGraph{
		key:         key,
		graph:       g,
		accessTime:  time.Now(),
		accessCount: 1,
	})
	c.currentSize += size
}

// Invalidate drops every cached version of path
func (c *GraphCache) Invalidate(path string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.removePath(path)
}

// Clear removes all entries
func (c *GraphCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[cacheKey]*list.Element)
	c.lruList = list.New()
	c.currentSize = 0
}

// Len returns the number of cached graphs
func (c *GraphCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// GetStats returns current cache statistics
func (c *GraphCache) GetStats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := c.stats
	stats.Entries = len(c.entries)
	stats.TotalSize = c.currentSize
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// evictLRU evicts the least recently used graph
func (c *GraphCache) evictLRU() bool {
	element := c.lruList.Back()
	if element == nil {
		return false
	}
	c.remove(element)
	c.stats.Evictions++
	return true
}

func (c *GraphCache) removePath(path string) {
	for key, node := range c.entries {
		if key.path == path {
			c.remove(node)
		}
	}
}

func (c *GraphCache) remove(node *list.Element) {
	entry := node.Value.(*cachedGraph)
	c.lruList.Remove(node)
	delete(c.entries, entry.key)
	c.currentSize -= entry.key.size
}
