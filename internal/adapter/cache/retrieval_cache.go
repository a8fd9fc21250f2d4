// Package cache memoizes retrieval results for the serving surfaces.
// Entries expire by TTL, by LRU pressure, and whenever the index
// generation moves past the one they were filled under.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"sahayak/internal/domain"
	"sahayak/internal/port"
)

type RetrievalCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	results   []domain.ScoredChunk
	timestamp time.Time
	indexGen  uint64
}

func NewRetrievalCache(maxSize int, ttl time.Duration) *RetrievalCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RetrievalCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string, topK int, minScore float64) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%g", query, topK, minScore)))
	return hex.EncodeToString(hash[:16])
}

// Get returns the cached results for the query parameters, provided
// the entry is fresh and was filled under the current index
// generation.
func (c *RetrievalCache) Get(query string, topK int, minScore float64, currentGen uint64) ([]domain.ScoredChunk, bool) {
	key := cacheKey(query, topK, minScore)

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.indexGen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return entry.results, true
}

func (c *RetrievalCache) Put(query string, topK int, minScore float64, currentGen uint64, results []domain.ScoredChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK, minScore)

	if _, exists := c.entries[key]; exists {
		c.entries[key] = &cacheEntry{
			results:   results,
			timestamp: time.Now(),
			indexGen:  currentGen,
		}
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &cacheEntry{
		results:   results,
		timestamp: time.Now(),
		indexGen:  currentGen,
	}
	c.order = append(c.order, key)
}

// Invalidate drops every entry. Generation tracking already handles
// index writes; this is for collection switches.
func (c *RetrievalCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *RetrievalCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *RetrievalCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *RetrievalCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *RetrievalCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// GenerationSource reports the index generation a cached result must
// match to stay valid.
type GenerationSource interface {
	Generation() uint64
}

// CachedRetriever decorates a retriever with the cache. Only
// successful retrievals are stored.
type CachedRetriever struct {
	inner port.Retriever
	gen   GenerationSource
	cache *RetrievalCache
}

func NewCachedRetriever(inner port.Retriever, gen GenerationSource, cache *RetrievalCache) *CachedRetriever {
	return &CachedRetriever{inner: inner, gen: gen, cache: cache}
}

func (r *CachedRetriever) Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]domain.ScoredChunk, error) {
	currentGen := r.gen.Generation()
	if results, hit := r.cache.Get(query, topK, minScore, currentGen); hit {
		return results, nil
	}

	results, err := r.inner.Retrieve(ctx, query, topK, minScore)
	if err != nil {
		return nil, err
	}

	r.cache.Put(query, topK, minScore, currentGen, results)
	return results, nil
}
