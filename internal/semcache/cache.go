// Package semcache provides an in-memory semantic cache for retrieval
// results. Lookups hit either on the exact normalized query or on cosine
// similarity between query embeddings, so paraphrased queries can reuse an
// earlier search without touching the vector store.
package semcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecbridge/internal/vectorstore"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Config holds configuration for the semantic cache.
type Config struct {
	// SimilarityThreshold is the minimum cosine similarity for a fuzzy hit.
	// Default: 0.95. Below ~0.9 the cache starts returning results for
	// questions that only look related.
	SimilarityThreshold float32

	// MaxItems bounds the number of cached entries; the least recently used
	// entry is evicted first. Default: 10000
	MaxItems int

	// TTL is how long an entry stays servable. Expiry is lazy: entries are
	// dropped when a lookup touches them, not by a background sweeper.
	// Default: 1h
	TTL time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.95
	}
	if c.MaxItems == 0 {
		c.MaxItems = 10000
	}
	if c.TTL == 0 {
		c.TTL = time.Hour
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [0,1], got %f", c.SimilarityThreshold)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("max_items must be non-negative, got %d", c.MaxItems)
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl must be non-negative, got %s", c.TTL)
	}
	return nil
}

// Match is a cache hit: the cached results plus how they matched.
type Match struct {
	// Results are the cached search results.
	Results []vectorstore.SearchResult

	// Similarity is the cosine similarity between the lookup embedding and
	// the cached entry's embedding. Exact matches report 1.0 without
	// computing it.
	Similarity float32

	// IsExactMatch reports whether the normalized query text matched.
	IsExactMatch bool
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	ExactHits   int64
	FuzzyHits   int64
	Evictions   int64
	Expirations int64
	Size        int
	MemoryBytes int64

	// HitRate is hits/(hits+misses); 0 before any lookup.
	HitRate float64

	// AverageSimilarity is the mean match similarity across hits (exact
	// hits count as 1.0).
	AverageSimilarity float64
}

// entry is one cached query with its embedding and results.
type entry struct {
	key         string
	query       string
	embedding   []float32
	results     []vectorstore.SearchResult
	resultBytes int
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int64
	elem        *list.Element
}

// memoryBytes estimates the entry's footprint: UTF-16-ish string cost,
// 4 bytes per float32, and the serialized result size counted twice for
// the in-memory representation.
func (e *entry) memoryBytes() int64 {
	return int64(len(e.query)*2 + len(e.embedding)*4 + e.resultBytes*2)
}

// Cache is an LRU + TTL semantic cache. All methods are safe for concurrent
// use.
type Cache struct {
	mu     sync.Mutex
	config Config
	logger *zap.Logger

	entries map[string]*entry
	lru     *list.List // front = most recently used; values are *entry

	hits          int64
	misses        int64
	exactHits     int64
	fuzzyHits     int64
	evictions     int64
	expirations   int64
	memoryBytes   int64
	similaritySum float64
}

// New creates a semantic cache with the given configuration.
func New(config Config, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger.Info("semantic cache initialized",
		zap.Float32("similarity_threshold", config.SimilarityThreshold),
		zap.Int("max_items", config.MaxItems),
		zap.Duration("ttl", config.TTL))

	return &Cache{
		config:  config,
		logger:  logger,
		entries: make(map[string]*entry),
		lru:     list.New(),
	}, nil
}

// normalizeQuery canonicalizes the query text for keying: surrounding
// whitespace and letter case never distinguish queries.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// cacheKey hashes the normalized query.
func cacheKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Store caches the results for a query. Invalid input (empty query or
// embedding) is silently ignored: caching is best-effort and must never
// fail a retrieval that already succeeded.
func (c *Cache) Store(query string, embedding []float32, results []vectorstore.SearchResult) {
	normalized := normalizeQuery(query)
	if normalized == "" || len(embedding) == 0 {
		return
	}
	key := cacheKey(normalized)

	resultBytes := 0
	if data, err := json.Marshal(results); err == nil {
		resultBytes = len(data)
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.removeEntry(existing)
	}

	e := &entry{
		key:         key,
		query:       normalized,
		embedding:   vec,
		results:     results,
		resultBytes: resultBytes,
		createdAt:   timeNow(),
		lastAccess:  timeNow(),
	}
	e.elem = c.lru.PushFront(e)
	c.entries[key] = e
	c.memoryBytes += e.memoryBytes()

	c.evictOverflow()
	recordCacheSize(len(c.entries), c.memoryBytes)
}

// FindSimilar looks up cached results for the query. The exact normalized
// query short-circuits with similarity 1.0; otherwise every live entry's
// embedding is compared and the best one at or above the threshold wins.
func (c *Cache) FindSimilar(query string, embedding []float32) (*Match, bool) {
	normalized := normalizeQuery(query)
	if normalized == "" {
		return nil, false
	}
	key := cacheKey(normalized)
	now := timeNow()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if c.expired(e, now) {
			c.removeEntry(e)
			c.expirations++
		} else {
			c.touch(e, now)
			c.hits++
			c.exactHits++
			c.similaritySum += 1.0
			recordCacheLookup("exact_hit")
			return &Match{Results: e.results, Similarity: 1.0, IsExactMatch: true}, true
		}
	}

	if len(embedding) == 0 {
		c.misses++
		recordCacheLookup("miss")
		return nil, false
	}

	var best *entry
	var bestSim float32
	for el := c.lru.Front(); el != nil; {
		e := el.Value.(*entry)
		el = el.Next()
		if c.expired(e, now) {
			c.removeEntry(e)
			c.expirations++
			continue
		}
		sim := cosineSimilarity(embedding, e.embedding)
		if sim >= c.config.SimilarityThreshold && sim > bestSim {
			best = e
			bestSim = sim
		}
	}

	if best == nil {
		c.misses++
		recordCacheLookup("miss")
		return nil, false
	}

	c.touch(best, now)
	c.hits++
	c.fuzzyHits++
	c.similaritySum += float64(bestSim)
	recordCacheLookup("fuzzy_hit")
	c.logger.Debug("semantic cache fuzzy hit",
		zap.Float32("similarity", bestSim),
		zap.String("cached_query", best.query))
	return &Match{Results: best.results, Similarity: bestSim, IsExactMatch: false}, true
}

// Get returns the exact-match entry for the query without fuzzy scanning.
// A hit counts toward the stats; an absent entry does not count as a miss,
// so callers can probe cheaply before computing an embedding and fall
// through to FindSimilar.
func (c *Cache) Get(query string) (*Match, bool) {
	normalized := normalizeQuery(query)
	if normalized == "" {
		return nil, false
	}
	key := cacheKey(normalized)
	now := timeNow()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.expired(e, now) {
		c.removeEntry(e)
		c.expirations++
		return nil, false
	}
	c.touch(e, now)
	c.hits++
	c.exactHits++
	c.similaritySum += 1.0
	recordCacheLookup("exact_hit")
	return &Match{Results: e.results, Similarity: 1.0, IsExactMatch: true}, true
}

// Has reports whether a live exact-match entry exists, without counting a
// hit or refreshing recency.
func (c *Cache) Has(query string) bool {
	normalized := normalizeQuery(query)
	if normalized == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey(normalized)]
	return ok && !c.expired(e, timeNow())
}

// Invalidate drops the entry for the query, reporting whether one existed.
func (c *Cache) Invalidate(query string) bool {
	normalized := normalizeQuery(query)
	if normalized == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey(normalized)]
	if !ok {
		return false
	}
	c.removeEntry(e)
	recordCacheSize(len(c.entries), c.memoryBytes)
	return true
}

// Clear drops all entries. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.lru.Init()
	c.memoryBytes = 0
	recordCacheSize(0, 0)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		ExactHits:   c.exactHits,
		FuzzyHits:   c.fuzzyHits,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        len(c.entries),
		MemoryBytes: c.memoryBytes,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	if c.hits > 0 {
		stats.AverageSimilarity = c.similaritySum / float64(c.hits)
	}
	return stats
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MemoryUsage returns the estimated memory footprint in bytes.
func (c *Cache) MemoryUsage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memoryBytes
}

// Config returns the current configuration.
func (c *Cache) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// UpdateConfig replaces the configuration at runtime. Shrinking MaxItems
// evicts the LRU overflow immediately.
func (c *Cache) UpdateConfig(config Config) error {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.config = config
	c.evictOverflow()
	recordCacheSize(len(c.entries), c.memoryBytes)
	return nil
}

// expired reports whether the entry's TTL has elapsed.
func (c *Cache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.createdAt) >= c.config.TTL
}

// touch refreshes recency under the lock.
func (c *Cache) touch(e *entry, now time.Time) {
	e.lastAccess = now
	e.accessCount++
	c.lru.MoveToFront(e.elem)
}

// removeEntry drops an entry under the lock.
func (c *Cache) removeEntry(e *entry) {
	c.lru.Remove(e.elem)
	delete(c.entries, e.key)
	c.memoryBytes -= e.memoryBytes()
}

// evictOverflow evicts least recently used entries until the cache fits
// MaxItems. Called under the lock.
func (c *Cache) evictOverflow() {
	for len(c.entries) > c.config.MaxItems {
		back := c.lru.Back()
		if back == nil {
			return
		}
		c.removeEntry(back.Value.(*entry))
		c.evictions++
		recordCacheEviction()
	}
}

// cosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths or a zero-magnitude vector yield 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
