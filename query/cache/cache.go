// Package cache provides region-scoped caching of materialized query
// results with update-timestamp staleness checks.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/hydrate-orm/hydrate-go/internal/debug"
)

// Entry is one cached result list together with the metadata needed to
// decide whether it may still be served.
type Entry struct {
	Value     any
	Region    string
	Tables    []string
	CachedAt  time.Time
	ExpiresAt time.Time
}

// IsExpired checks whether the entry's TTL has elapsed.
func (e *Entry) IsExpired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Stale     int64
	Size      int
	MaxSize   int
	Evictions int64
	HitRate   float64
}

// StalenessPolicy decides whether a cached entry is outdated by writes
// that happened after it was stored. TimestampTracker is the default
// implementation.
type StalenessPolicy interface {
	WrittenSince(tables []string, since time.Time) bool
}

// ResultCache is an LRU cache keyed by query shape. A lookup misses when
// the entry's TTL elapsed or when any table the query read was written
// after the entry was stored. Stale entries are never served.
type ResultCache struct {
	mu         sync.RWMutex
	data       map[string]*cacheNode
	maxSize    int
	defaultTTL time.Duration
	policy     StalenessPolicy
	head       *cacheNode
	tail       *cacheNode
	stats      Stats
}

// cacheNode is a doubly-linked list node carrying one entry.
type cacheNode struct {
	key   string
	entry *Entry
	prev  *cacheNode
	next  *cacheNode
}

// New creates a result cache. A nil policy disables staleness checks and
// leaves only TTL expiry.
func New(maxSize int, defaultTTL time.Duration, policy StalenessPolicy) *ResultCache {
	return &ResultCache{
		data:       make(map[string]*cacheNode),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		policy:     policy,
		stats:      Stats{MaxSize: maxSize},
	}
}

// Get retrieves a cached result. The second return is false on a miss,
// an expired entry or a stale entry.
func (c *ResultCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	if node.entry.IsExpired() {
		c.removeNode(node)
		c.stats.Misses++
		return nil, false
	}

	if c.policy != nil && c.policy.WrittenSince(node.entry.Tables, node.entry.CachedAt) {
		debug.Debug("cache entry stale", "key", key, "region", node.entry.Region)
		c.removeNode(node)
		c.stats.Misses++
		c.stats.Stale++
		return nil, false
	}

	c.moveToFront(node)
	c.stats.Hits++
	c.updateHitRate()
	return node.entry.Value, true
}

// Put stores a result under its region, recording the tables it read and
// when the data was read from the backend. Staleness is judged against
// cachedAt, not the store time, so writes landing between the read and
// the store still invalidate the entry. A zero cachedAt means now.
// ttl == 0 uses the cache default; a negative ttl stores without expiry.
func (c *ResultCache) Put(key string, value any, region string, tables []string, cachedAt time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	entry := &Entry{
		Value:     value,
		Region:    region,
		Tables:    tables,
		CachedAt:  cachedAt,
		ExpiresAt: expiresAt,
	}

	if node, exists := c.data[key]; exists {
		node.entry = entry
		c.moveToFront(node)
		return
	}

	if len(c.data) >= c.maxSize {
		c.evictLRU()
		c.stats.Evictions++
	}

	node := &cacheNode{key: key, entry: entry}
	c.addToFront(node)
	c.data[key] = node
	c.stats.Size = len(c.data)
}

// Invalidate removes a specific key from the cache.
func (c *ResultCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.data[key]; ok {
		c.removeNode(node)
		c.stats.Size = len(c.data)
	}
}

// InvalidateRegion drops every entry stored under the given region.
func (c *ResultCache) InvalidateRegion(region string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*cacheNode
	for _, node := range c.data {
		if node.entry.Region == region {
			toRemove = append(toRemove, node)
		}
	}
	for _, node := range toRemove {
		c.removeNode(node)
	}
	c.stats.Size = len(c.data)
	debug.Debug("cache region invalidated", "region", region, "dropped", len(toRemove))
}

// Clear removes all entries and resets the counters.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*cacheNode)
	c.head = nil
	c.tail = nil
	c.stats = Stats{MaxSize: c.maxSize}
}

// GetStats returns a snapshot of the cache statistics.
func (c *ResultCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Size = len(c.data)
	return stats
}

// addToFront adds a node to the front of the list
func (c *ResultCache) addToFront(node *cacheNode) {
	if c.head == nil {
		c.head = node
		c.tail = node
		return
	}
	node.next = c.head
	c.head.prev = node
	c.head = node
}

// moveToFront moves a node to the front of the list
func (c *ResultCache) moveToFront(node *cacheNode) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToFront(node)
	c.data[node.key] = node
}

// removeNode removes a node from the list and the index.
func (c *ResultCache) removeNode(node *cacheNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	delete(c.data, node.key)
}

// evictLRU evicts the least recently used node
func (c *ResultCache) evictLRU() {
	if c.tail == nil {
		return
	}
	c.removeNode(c.tail)
}

// updateHitRate updates the hit rate statistic
func (c *ResultCache) updateHitRate() {
	total := c.stats.Hits + c.stats.Misses
	if total > 0 {
		c.stats.HitRate = float64(c.stats.Hits) / float64(total) * 100
	}
}

// GenerateKey derives a cache key from the region, the rewritten query
// text and its bound arguments. Identical queries with different
// arguments never share a key.
func GenerateKey(region, sql string, args []any) string {
	hasher := sha256.New()
	hasher.Write([]byte(sql))
	for _, arg := range args {
		fmt.Fprintf(hasher, "|%v", arg)
	}
	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:%s", region, hash[:24])
}
