package condition

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// Cache holds parsed, validated and optimized trees keyed by their text so
// repeated text queries skip parsing.
type Cache struct {
	cache map[string]*cachedTree
	mu    sync.RWMutex

	// Statistics
	hits   int64
	misses int64

	// Configuration
	maxSize int
	ttl     time.Duration
}

type cachedTree struct {
	tree      Tree
	timestamp time.Time
}

// NewCache creates a tree cache. Non-positive arguments select the defaults
// of 1000 entries and a five minute TTL.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		cache:   make(map[string]*cachedTree),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Parse returns the optimized tree for text, parsing it on a miss. A nil
// cache parses every time.
func (c *Cache) Parse(text string) (Tree, error) {
	if tree, ok := c.Get(text); ok {
		return tree, nil
	}
	tree, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if err := Validate(tree); err != nil {
		return nil, err
	}
	tree = OptimizeTree(tree)
	c.Set(text, tree)
	return tree, nil
}

// Get retrieves a cached tree if it exists and is not expired
func (c *Cache) Get(text string) (Tree, bool) {
	if c == nil {
		return nil, false
	}

	key := computeKey(text)

	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.cache[key]
	if !ok || time.Since(cached.timestamp) > c.ttl {
		// expired entries are removed lazily by Set
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	return cached.tree, true
}

// Set stores a tree
func (c *Cache) Set(text string, tree Tree) {
	if c == nil || tree == nil {
		return
	}

	key := computeKey(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; !exists && len(c.cache) >= c.maxSize {
		c.evictExpired()
		if len(c.cache) >= c.maxSize {
			c.evictOldest()
		}
	}

	c.cache[key] = &cachedTree{tree: tree, timestamp: time.Now()}
}

// Clear removes all cached trees and resets the statistics
func (c *Cache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedTree)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns cache statistics
func (c *Cache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), len(c.cache)
}

func computeKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) evictExpired() {
	now := time.Now()
	for key, cached := range c.cache {
		if now.Sub(cached.timestamp) > c.ttl {
			delete(c.cache, key)
		}
	}
}

func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, cached := range c.cache {
		if oldestKey == "" || cached.timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = cached.timestamp
		}
	}

	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}
