package semcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vecbridge/internal/vectorstore"
)

func newTestCache(t *testing.T, config Config) *Cache {
	t.Helper()
	c, err := New(config, nil)
	require.NoError(t, err)
	return c
}

func testResults(id string) []vectorstore.SearchResult {
	return []vectorstore.SearchResult{{ID: id, Score: 0.9}}
}

func TestConfig_Defaults(t *testing.T) {
	var config Config
	config.ApplyDefaults()

	assert.Equal(t, float32(0.95), config.SimilarityThreshold)
	assert.Equal(t, 10000, config.MaxItems)
	assert.Equal(t, time.Hour, config.TTL)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{SimilarityThreshold: 1.5}, nil)
	require.Error(t, err)

	_, err = New(Config{MaxItems: -1}, nil)
	require.Error(t, err)
}

func TestCache_ExactMatch(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Store("How do I reset my password?", []float32{1, 0, 0}, testResults("doc-1"))

	match, ok := c.FindSimilar("How do I reset my password?", []float32{1, 0, 0})
	require.True(t, ok)
	assert.True(t, match.IsExactMatch)
	assert.Equal(t, float32(1.0), match.Similarity)
	require.Len(t, match.Results, 1)
	assert.Equal(t, "doc-1", match.Results[0].ID)
}

func TestCache_ExactMatchNormalizesQuery(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Store("How do I reset my password?", []float32{1, 0, 0}, testResults("doc-1"))

	// Case and surrounding whitespace never distinguish queries.
	match, ok := c.FindSimilar("  HOW DO I RESET MY PASSWORD?  ", []float32{0, 1, 0})
	require.True(t, ok)
	assert.True(t, match.IsExactMatch)
	assert.Equal(t, float32(1.0), match.Similarity)
}

func TestCache_FuzzyMatch(t *testing.T) {
	c := newTestCache(t, Config{SimilarityThreshold: 0.9})

	c.Store("reset password", []float32{1, 0, 0}, testResults("doc-1"))

	// Different text, nearby embedding.
	match, ok := c.FindSimilar("password reset steps", []float32{0.99, 0.1, 0})
	require.True(t, ok)
	assert.False(t, match.IsExactMatch)
	assert.Greater(t, match.Similarity, float32(0.9))
	assert.Less(t, match.Similarity, float32(1.0))
	assert.Equal(t, "doc-1", match.Results[0].ID)
}

func TestCache_FuzzyMatchPicksBest(t *testing.T) {
	c := newTestCache(t, Config{SimilarityThreshold: 0.5})

	c.Store("query a", []float32{1, 0, 0}, testResults("doc-a"))
	c.Store("query b", []float32{0.7, 0.7, 0}, testResults("doc-b"))

	match, ok := c.FindSimilar("something new", []float32{0.75, 0.65, 0})
	require.True(t, ok)
	assert.Equal(t, "doc-b", match.Results[0].ID)
}

func TestCache_MissBelowThreshold(t *testing.T) {
	c := newTestCache(t, Config{SimilarityThreshold: 0.95})

	c.Store("reset password", []float32{1, 0, 0}, testResults("doc-1"))

	_, ok := c.FindSimilar("unrelated question", []float32{0, 1, 0})
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Zero(t, stats.Hits)
}

func TestCache_TTLExpiry(t *testing.T) {
	base := time.Now()
	current := base
	timeNow = func() time.Time { return current }
	defer func() { timeNow = time.Now }()

	c := newTestCache(t, Config{TTL: time.Hour})
	c.Store("reset password", []float32{1, 0, 0}, testResults("doc-1"))

	current = base.Add(30 * time.Minute)
	_, ok := c.FindSimilar("reset password", []float32{1, 0, 0})
	assert.True(t, ok)

	current = base.Add(61 * time.Minute)
	_, ok = c.FindSimilar("reset password", []float32{1, 0, 0})
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Expirations)
	assert.Zero(t, stats.Size)
}

func TestCache_LRUEviction(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 3, SimilarityThreshold: 0.99})

	for i := 0; i < 3; i++ {
		q := fmt.Sprintf("query %d", i)
		c.Store(q, []float32{float32(i + 1), 0, 0}, testResults(fmt.Sprintf("doc-%d", i)))
	}

	// Touch query 0 so query 1 becomes the LRU victim.
	_, ok := c.FindSimilar("query 0", nil)
	require.True(t, ok)

	c.Store("query 3", []float32{5, 0, 0}, testResults("doc-3"))

	assert.True(t, c.Has("query 0"))
	assert.False(t, c.Has("query 1"))
	assert.True(t, c.Has("query 2"))
	assert.True(t, c.Has("query 3"))
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_StoreOverwritesSameQuery(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Store("reset password", []float32{1, 0, 0}, testResults("old"))
	c.Store("reset password", []float32{1, 0, 0}, testResults("new"))

	assert.Equal(t, 1, c.Len())
	match, ok := c.Get("reset password")
	require.True(t, ok)
	assert.Equal(t, "new", match.Results[0].ID)
}

func TestCache_StoreIgnoresInvalidInput(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Store("", []float32{1, 0, 0}, testResults("doc-1"))
	c.Store("   ", []float32{1, 0, 0}, testResults("doc-1"))
	c.Store("query", nil, testResults("doc-1"))

	assert.Zero(t, c.Len())
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Store("reset password", []float32{1, 0, 0}, testResults("doc-1"))

	assert.True(t, c.Invalidate("RESET PASSWORD"))
	assert.False(t, c.Invalidate("reset password"))
	assert.Zero(t, c.Len())
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Store("a", []float32{1, 0, 0}, testResults("doc-a"))
	c.Store("b", []float32{0, 1, 0}, testResults("doc-b"))
	require.Equal(t, 2, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.MemoryUsage())
}

func TestCache_StatsCounters(t *testing.T) {
	c := newTestCache(t, Config{SimilarityThreshold: 0.9})

	c.Store("reset password", []float32{1, 0, 0}, testResults("doc-1"))

	_, _ = c.FindSimilar("reset password", []float32{1, 0, 0})        // exact
	_, _ = c.FindSimilar("password reset", []float32{0.99, 0.1, 0})   // fuzzy
	_, _ = c.FindSimilar("unrelated", []float32{0, 1, 0})             // miss

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.ExactHits)
	assert.Equal(t, int64(1), stats.FuzzyHits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.Positive(t, stats.MemoryBytes)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	assert.Greater(t, stats.AverageSimilarity, 0.95)
	assert.LessOrEqual(t, stats.AverageSimilarity, 1.0)
}

func TestCache_MemoryAccounting(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Store("reset password", []float32{1, 0, 0}, testResults("doc-1"))
	usage := c.MemoryUsage()
	assert.Positive(t, usage)

	c.Store("another query entirely", []float32{0, 1, 0}, testResults("doc-2"))
	assert.Greater(t, c.MemoryUsage(), usage)

	c.Invalidate("reset password")
	assert.Less(t, c.MemoryUsage(), usage+1)
}

func TestCache_UpdateConfigShrinkEvicts(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 10})

	for i := 0; i < 10; i++ {
		c.Store(fmt.Sprintf("query %d", i), []float32{float32(i + 1), 0, 0}, testResults("doc"))
	}
	require.Equal(t, 10, c.Len())

	require.NoError(t, c.UpdateConfig(Config{MaxItems: 4}))
	assert.Equal(t, 4, c.Len())

	// The most recently stored entries survive.
	assert.True(t, c.Has("query 9"))
	assert.False(t, c.Has("query 0"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, float64(cosineSimilarity([]float32{1, 0}, []float32{1, 0})), 1e-6)
	assert.InDelta(t, 0.0, float64(cosineSimilarity([]float32{1, 0}, []float32{0, 1})), 1e-6)
	assert.InDelta(t, -1.0, float64(cosineSimilarity([]float32{1, 0}, []float32{-1, 0})), 1e-6)

	// Length mismatch and zero vectors degrade to 0, never panic.
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}
