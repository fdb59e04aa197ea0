package vectorstore

import (
	"context"
	"sync"
)

// mockStore is a configurable in-memory Store for adapter tests. Failure
// injection is per operation; call counts and batch sizes are recorded for
// assertions.
type mockStore struct {
	mu sync.Mutex

	name      string
	dimension int
	persisted bool

	records map[string]VectorRecord

	failUpsert      error
	failUpsertBatch error
	failDelete      error
	failSearch      error
	failCount       error

	upsertCalls      int
	upsertBatchCalls int
	batchSizes       []int
	deleteCalls      int
	searchCalls      int
	countCalls       int
	closeCalls       int

	searchResults []SearchResult
}

func newMockStore(name string, dimension int) *mockStore {
	return &mockStore{
		name:      name,
		dimension: dimension,
		records:   make(map[string]VectorRecord),
	}
}

func (m *mockStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.failUpsert != nil {
		return m.failUpsert
	}
	m.records[id] = VectorRecord{ID: id, Vector: vector, Metadata: metadata}
	return nil
}

func (m *mockStore) UpsertBatch(ctx context.Context, records []VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertBatchCalls++
	m.batchSizes = append(m.batchSizes, len(records))
	if m.failUpsertBatch != nil {
		return m.failUpsertBatch
	}
	for _, rec := range records {
		m.records[rec.ID] = rec
	}
	return nil
}

func (m *mockStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.failDelete != nil {
		return false, m.failDelete
	}
	_, existed := m.records[id]
	delete(m.records, id)
	return existed, nil
}

func (m *mockStore) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	if m.failSearch != nil {
		return nil, m.failSearch
	}
	return m.searchResults, nil
}

func (m *mockStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	if m.failCount != nil {
		return 0, m.failCount
	}
	return len(m.records), nil
}

func (m *mockStore) Dimension() int { return m.dimension }

func (m *mockStore) Persisted() bool { return m.persisted }

func (m *mockStore) BackendType() string { return m.name }

func (m *mockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	return nil
}

// recordCount returns the current number of stored records.
func (m *mockStore) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// has reports whether the record id is present.
func (m *mockStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok
}

// stats returns a snapshot of call counters.
func (m *mockStore) stats() (upserts, batches, deletes, searches, counts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCalls, m.upsertBatchCalls, m.deleteCalls, m.searchCalls, m.countCalls
}

// batchSizeHistory returns the sizes of all UpsertBatch calls in order.
func (m *mockStore) batchSizeHistory() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batchSizes))
	copy(out, m.batchSizes)
	return out
}

var _ Store = (*mockStore)(nil)
