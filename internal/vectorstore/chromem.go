// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("vecbridge.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory
	// only; records are lost on restart and Persisted() reports false.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection name.
	// Default: "vecbridge_default"
	Collection string

	// Dimension is the fixed vector dimension for the collection.
	// Default: 384 (bge-small-en-v1.5)
	Dimension int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "vecbridge_default"
	}
	if c.Dimension == 0 {
		c.Dimension = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if err := ValidateCollectionName(c.Collection); err != nil {
		return err
	}
	return nil
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no CGO, no external service, optional gob-file
// persistence. Vectors are stored precomputed; chromem's embedding function
// is never invoked.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
	logger     *zap.Logger

	// mu serializes mutations so Delete can observe existence reliably.
	mu sync.Mutex
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path != "" {
		expandedPath, err := expandChromemPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(expandedPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
		}
		db, err = chromem.NewPersistentDB(expandedPath, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = expandedPath
	} else {
		db = chromem.NewDB()
	}

	// chromem falls back to its OpenAI embedder when the embedding func is
	// nil, so always pass one even though vectors are precomputed.
	collection, err := db.GetOrCreateCollection(config.Collection, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	store := &ChromemStore{
		db:         db,
		collection: collection,
		config:     config,
		logger:     logger,
	}

	logger.Info("ChromemStore initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.Int("dimension", config.Dimension),
		zap.String("collection", config.Collection),
	)

	return store, nil
}

// rejectEmbeddingFunc is installed on chromem collections. All vectors are
// computed by the caller, so chromem asking for one is a bug.
func rejectEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem requested an embedding for %q: vectors must be precomputed", text)
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// validateDimension rejects vectors that do not match the collection dimension.
func (s *ChromemStore) validateDimension(vector []float32) error {
	if len(vector) != s.config.Dimension {
		return fmt.Errorf("%w: got %d, collection dimension is %d",
			ErrDimensionMismatch, len(vector), s.config.Dimension)
	}
	return nil
}

// Upsert inserts or overwrites a single record.
func (s *ChromemStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	return s.UpsertBatch(ctx, []VectorRecord{{ID: id, Vector: vector, Metadata: metadata}})
}

// UpsertBatch inserts or overwrites all records in one call.
func (s *ChromemStore) UpsertBatch(ctx context.Context, records []VectorRecord) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.UpsertBatch")
	defer span.End()

	span.SetAttributes(
		attribute.Int("record_count", len(records)),
		attribute.String("collection", s.config.Collection),
	)

	if len(records) == 0 {
		return ErrEmptyBatch
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record at index %d has empty id", i)
		}
		if err := s.validateDimension(rec.Vector); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Metadata:  convertMetadataToString(rec.Metadata),
			Embedding: rec.Vector,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Concurrency of 1: embeddings are already present, nothing to parallelize.
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted records to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// Delete removes a record by id, reporting whether it existed.
func (s *ChromemStore) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("id", id))

	s.mu.Lock()
	defer s.mu.Unlock()

	// chromem's Delete does not report existence; observe the count under
	// the write mutex instead.
	before := s.collection.Count()
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("deleting document %s: %w", id, err)
	}
	existed := s.collection.Count() < before

	span.SetAttributes(attribute.Bool("existed", existed))
	span.SetStatus(codes.Ok, "success")
	return existed, nil
}

// Search performs cosine similarity search with precomputed query vectors.
func (s *ChromemStore) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("limit", opts.Limit),
	)

	if err := s.validateDimension(vector); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", opts.Limit)
	}

	// chromem requires nResults <= document count.
	k := opts.Limit
	docCount := s.collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, k, convertMetadataToString(opts.Filter), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	searchResults := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity < opts.Threshold {
			continue
		}
		searchResults = append(searchResults, SearchResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: convertMetadataFromString(r.Metadata),
		})
	}
	sort.SliceStable(searchResults, func(i, j int) bool {
		return searchResults[i].Score > searchResults[j].Score
	})

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")
	return searchResults, nil
}

// Count returns the number of records in the collection.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Dimension returns the collection's fixed vector dimension.
func (s *ChromemStore) Dimension() int {
	return s.config.Dimension
}

// Persisted reports whether the store writes to disk.
func (s *ChromemStore) Persisted() bool {
	return s.config.Path != ""
}

// BackendType identifies this backend.
func (s *ChromemStore) BackendType() string {
	return "chromem"
}

// Close closes the ChromemStore.
// chromem-go persists incrementally, no explicit flush needed.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

// convertMetadataToString converts map[string]any to map[string]string.
func convertMetadataToString(metadata map[string]any) map[string]string {
	if metadata == nil {
		return nil
	}

	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		case int:
			result[k] = fmt.Sprintf("%d", val)
		case int64:
			result[k] = fmt.Sprintf("%d", val)
		case float64:
			result[k] = fmt.Sprintf("%f", val)
		case bool:
			result[k] = fmt.Sprintf("%t", val)
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}

// convertMetadataFromString converts map[string]string back to map[string]any.
func convertMetadataFromString(metadata map[string]string) map[string]any {
	if metadata == nil {
		return nil
	}

	result := make(map[string]any, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
