// Package retrieval wires embedding generation, vector storage, and the
// semantic cache into one query path.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecbridge/internal/embeddings"
	"github.com/fyrsmithlabs/vecbridge/internal/semcache"
	"github.com/fyrsmithlabs/vecbridge/internal/vectorstore"
)

// Item is a piece of text to index.
type Item struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Result is the outcome of a retrieval query.
type Result struct {
	// Results are ranked by descending similarity.
	Results []vectorstore.SearchResult

	// FromCache reports whether the semantic cache served this query.
	FromCache bool

	// CacheSimilarity is the cache match similarity (1.0 for exact), only
	// meaningful when FromCache is set.
	CacheSimilarity float32
}

// Engine answers text queries against a vector store, embedding queries on
// demand and short-circuiting through the semantic cache.
type Engine struct {
	provider embeddings.Provider
	store    vectorstore.Store
	cache    *semcache.Cache
	logger   *zap.Logger
}

// New creates a retrieval engine. The cache is optional; pass nil to
// disable semantic caching.
func New(provider embeddings.Provider, store vectorstore.Store, cache *semcache.Cache, logger *zap.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if provider.Dimension() != store.Dimension() {
		return nil, fmt.Errorf("%w: provider produces %d-dim vectors, store expects %d",
			vectorstore.ErrDimensionMismatch, provider.Dimension(), store.Dimension())
	}

	return &Engine{
		provider: provider,
		store:    store,
		cache:    cache,
		logger:   logger,
	}, nil
}

// IndexItem embeds the item's text once and upserts it.
func (e *Engine) IndexItem(ctx context.Context, item Item) error {
	if item.ID == "" {
		return fmt.Errorf("item id is required")
	}

	vector, err := e.provider.GenerateForText(ctx, item.Text)
	if err != nil {
		return fmt.Errorf("embedding item %s: %w", item.ID, err)
	}
	return e.store.Upsert(ctx, item.ID, vector, item.Metadata)
}

// IndexItems embeds all items in one provider call and upserts them as a
// single batch.
func (e *Engine) IndexItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return vectorstore.ErrEmptyBatch
	}

	texts := make([]string, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("item at index %d has empty id", i)
		}
		texts[i] = item.Text
	}

	vectors, err := e.provider.GenerateBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d items: %w", len(items), err)
	}

	records := make([]vectorstore.VectorRecord, len(items))
	for i, item := range items {
		records[i] = vectorstore.VectorRecord{
			ID:       item.ID,
			Vector:   vectors[i],
			Metadata: item.Metadata,
		}
	}
	return e.store.UpsertBatch(ctx, records)
}

// RemoveItem deletes the item and reports whether it existed.
func (e *Engine) RemoveItem(ctx context.Context, id string) (bool, error) {
	return e.store.Delete(ctx, id)
}

// FindRelevant answers a text query: semantic cache first, then embed and
// search. Cache writes are best-effort; a store failure after a successful
// search never fails the query.
func (e *Engine) FindRelevant(ctx context.Context, query string, opts vectorstore.SearchOptions) (*Result, error) {
	// Exact match needs no embedding, so probe it before paying for one.
	if e.cache != nil {
		if match, ok := e.cache.Get(query); ok {
			return &Result{Results: match.Results, FromCache: true, CacheSimilarity: match.Similarity}, nil
		}
	}

	vector, err := e.provider.GenerateForText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	if e.cache != nil {
		if match, ok := e.cache.FindSimilar(query, vector); ok {
			e.logger.Debug("query served from semantic cache",
				zap.Float32("similarity", match.Similarity),
				zap.Bool("exact", match.IsExactMatch))
			return &Result{Results: match.Results, FromCache: true, CacheSimilarity: match.Similarity}, nil
		}
	}

	results, err := e.store.Search(ctx, vector, opts)
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}

	if e.cache != nil {
		e.cache.Store(query, vector, results)
	}
	return &Result{Results: results}, nil
}

// Close releases the provider and store.
func (e *Engine) Close() error {
	var errs []error
	if err := e.provider.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("engine: close errors: %v", errs)
	}
	return nil
}
