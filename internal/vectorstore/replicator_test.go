package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReplicator(t *testing.T, primary, secondary Store, config ReplicationConfig) *DualWriteReplicator {
	t.Helper()
	r, err := NewDualWriteReplicator(primary, secondary, config, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestNewDualWriteReplicator_Validation(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)

	_, err := NewDualWriteReplicator(nil, secondary, ReplicationConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewDualWriteReplicator(primary, nil, ReplicationConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewDualWriteReplicator(primary, secondary, ReplicationConfig{BatchSize: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReplicationConfig_Defaults(t *testing.T) {
	var config ReplicationConfig
	config.ApplyDefaults()

	assert.Equal(t, "default", config.Domain)
	assert.Equal(t, 50, config.BatchSize)
	assert.Equal(t, 256, config.QueueSize)
	assert.NotZero(t, config.DrainTimeout)
}

func TestDualWriteReplicator_UpsertReachesBothStores(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{})

	err := r.Upsert(context.Background(), "doc-1", []float32{1, 0, 0}, map[string]any{"source": "test"})
	require.NoError(t, err)

	assert.True(t, primary.has("doc-1"))
	assert.True(t, secondary.has("doc-1"))
}

func TestDualWriteReplicator_PrimaryFailureSurfaces(t *testing.T) {
	primary := newMockStore("primary", 3)
	primary.failUpsert = errors.New("disk full")
	secondary := newMockStore("secondary", 3)
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{})

	err := r.Upsert(context.Background(), "doc-1", []float32{1, 0, 0}, nil)
	require.Error(t, err)

	// Primary failed, so the secondary must not have been touched.
	upserts, _, _, _, _ := secondary.stats()
	assert.Zero(t, upserts)
}

func TestDualWriteReplicator_SecondaryFailureAbsorbed(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)
	secondary.failUpsert = errors.New("connection refused")
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{})

	err := r.Upsert(context.Background(), "doc-1", []float32{1, 0, 0}, nil)
	require.NoError(t, err)
	assert.True(t, primary.has("doc-1"))
	assert.False(t, secondary.has("doc-1"))
}

func TestDualWriteReplicator_BatchChunking(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{BatchSize: 50})

	records := make([]VectorRecord, 125)
	for i := range records {
		records[i] = VectorRecord{ID: string(rune('a' + i%26)) + string(rune('0' + i/26)), Vector: []float32{1, 0, 0}}
	}
	require.NoError(t, r.UpsertBatch(context.Background(), records))

	// Primary gets the whole batch in one call, the secondary in
	// ceil(125/50) = 3 sequential chunks.
	assert.Equal(t, []int{125}, primary.batchSizeHistory())
	assert.Equal(t, []int{50, 50, 25}, secondary.batchSizeHistory())
}

func TestDualWriteReplicator_BatchSmallerThanChunk(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{BatchSize: 50})

	records := []VectorRecord{
		{ID: "a", Vector: []float32{1, 0, 0}},
		{ID: "b", Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, r.UpsertBatch(context.Background(), records))

	assert.Equal(t, []int{2}, secondary.batchSizeHistory())
}

func TestDualWriteReplicator_BatchChunkFailureContinues(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)
	secondary.failUpsertBatch = errors.New("timeout")
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{BatchSize: 10})

	records := make([]VectorRecord, 30)
	for i := range records {
		records[i] = VectorRecord{ID: string(rune('a' + i)), Vector: []float32{1, 0, 0}}
	}
	require.NoError(t, r.UpsertBatch(context.Background(), records))

	// Every chunk was attempted despite each one failing.
	assert.Equal(t, []int{10, 10, 10}, secondary.batchSizeHistory())
}

func TestDualWriteReplicator_DeleteReportsPrimaryExistence(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{})

	require.NoError(t, r.Upsert(context.Background(), "doc-1", []float32{1, 0, 0}, nil))

	existed, err := r.Delete(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.False(t, secondary.has("doc-1"))

	existed, err = r.Delete(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestDualWriteReplicator_DeleteSecondaryFailureAbsorbed(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)
	secondary.failDelete = errors.New("unavailable")
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{})

	require.NoError(t, primary.Upsert(context.Background(), "doc-1", []float32{1, 0, 0}, nil))

	existed, err := r.Delete(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestDualWriteReplicator_ReadsServedByPrimaryOnly(t *testing.T) {
	primary := newMockStore("primary", 3)
	primary.searchResults = []SearchResult{{ID: "p-1", Score: 0.9}}
	secondary := newMockStore("secondary", 3)
	secondary.searchResults = []SearchResult{{ID: "s-1", Score: 0.99}}
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{})

	results, err := r.Search(context.Background(), []float32{1, 0, 0}, SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p-1", results[0].ID)

	_, err = r.Count(context.Background())
	require.NoError(t, err)

	_, _, _, searches, counts := secondary.stats()
	assert.Zero(t, searches)
	assert.Zero(t, counts)
}

func TestDualWriteReplicator_AsyncDrainOnClose(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{AsyncWrite: true})

	for i := 0; i < 20; i++ {
		id := string(rune('a' + i))
		require.NoError(t, r.Upsert(context.Background(), id, []float32{1, 0, 0}, nil))
	}

	// Close drains the queue before returning.
	require.NoError(t, r.Close())
	assert.Equal(t, 20, secondary.recordCount())
}

func TestDualWriteReplicator_CloseIsIdempotent(t *testing.T) {
	primary := newMockStore("primary", 3)
	secondary := newMockStore("secondary", 3)
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{AsyncWrite: true})

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, primary.closeCalls)
	assert.Equal(t, 1, secondary.closeCalls)
}

func TestDualWriteReplicator_DelegatedAccessors(t *testing.T) {
	primary := newMockStore("primary", 384)
	primary.persisted = true
	secondary := newMockStore("secondary", 384)
	r := newTestReplicator(t, primary, secondary, ReplicationConfig{})

	assert.Equal(t, 384, r.Dimension())
	assert.True(t, r.Persisted())
	assert.Equal(t, "dualwrite", r.BackendType())
}
