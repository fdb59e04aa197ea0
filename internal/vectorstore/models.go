package vectorstore

// VectorRecord is a single stored vector with its identity and metadata.
type VectorRecord struct {
	// ID is the unique identifier within the collection.
	ID string

	// Vector is the embedding. Its length must equal the collection's
	// fixed dimension.
	Vector []float32

	// Metadata contains additional key-value pairs for filtering.
	Metadata map[string]any
}

// SearchOptions controls a similarity search.
type SearchOptions struct {
	// Limit is the maximum number of results to return.
	Limit int

	// Threshold is the minimum cosine similarity score. Results below it
	// are dropped.
	Threshold float32

	// Filter restricts results to records whose metadata contains all the
	// given key-value pairs (exact match). A metadata filter rather than a
	// predicate function so both backends can push it down natively.
	Filter map[string]any
}

// SearchResult is a single ranked search hit.
type SearchResult struct {
	// ID is the record identifier.
	ID string

	// Score is the cosine similarity, conventionally in [0,1].
	Score float32

	// Metadata contains the record metadata.
	Metadata map[string]any
}
