// Package vectorstore defines the contract for vector storage backends and
// the migration adapters layered on top of them.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrDimensionMismatch is returned when a vector's length does not match
	// the collection's fixed dimension. The write or search is rejected
	// before it reaches storage.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrBackendUnavailable indicates the backend cannot be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyBatch indicates an empty or nil record batch.
	ErrEmptyBatch = errors.New("empty or nil record batch")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")
)

// Store is the uniform interface implemented by every concrete backend.
//
// The interface is transport-agnostic: backends may be embedded (chromem-go)
// or networked (Qdrant gRPC), and callers must never depend on
// backend-specific behavior. Each store owns a single collection with a
// fixed vector dimension; vectors of any other length are rejected with
// ErrDimensionMismatch.
//
// Implementations:
//   - ChromemStore: embedded chromem-go, optional on-disk persistence
//   - QdrantStore: external Qdrant gRPC client
//
// The migration adapters (DualWriteReplicator, ReadWriteSplitRouter) also
// implement Store so they can be dropped in front of any caller.
type Store interface {
	// Upsert inserts or overwrites the record with the given id.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error

	// UpsertBatch inserts or overwrites all records in a single backend call.
	UpsertBatch(ctx context.Context, records []VectorRecord) error

	// Delete removes the record with the given id.
	// Returns true if the record existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Search returns up to opts.Limit results ordered by descending cosine
	// similarity, all with score >= opts.Threshold. Ties preserve insertion
	// order for deterministic results.
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int, error)

	// Dimension returns the collection's fixed vector dimension.
	Dimension() int

	// Persisted reports whether records survive process restarts.
	Persisted() bool

	// BackendType returns a short tag identifying the backend ("chromem",
	// "qdrant", "dualwrite", "splitrouter").
	BackendType() string

	// Close releases backend resources.
	Close() error
}
