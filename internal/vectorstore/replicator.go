// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReplicationConfig holds configuration for dual-write replication.
type ReplicationConfig struct {
	// Domain labels this replicator in logs and metrics (e.g. "memories").
	Domain string

	// BatchSize is the chunk size for secondary batch replication.
	// Bounds burst load on a backend still stabilizing mid-migration.
	// Default: 50
	BatchSize int

	// AsyncWrite dispatches secondary writes to a background consumer
	// instead of applying them inline. Inline writes are still best-effort;
	// their errors are absorbed either way.
	AsyncWrite bool

	// QueueSize bounds the async write queue (default: 256). When the
	// queue is full the write is dropped with a warning; replication is
	// best-effort and never blocks the caller.
	QueueSize int

	// DrainTimeout bounds how long Close waits for queued secondary
	// writes. Default: 5s
	DrainTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *ReplicationConfig) ApplyDefaults() {
	if c.Domain == "" {
		c.Domain = "default"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = 5 * time.Second
	}
}

// Validate validates the configuration.
func (c ReplicationConfig) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must be non-negative", ErrInvalidConfig)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: queue_size must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// replicationJob is one queued secondary write.
type replicationJob struct {
	op string
	fn func(context.Context) error
}

// DualWriteReplicator mirrors every mutation to a secondary store while the
// primary stays authoritative.
//
// Primary writes are synchronous and their outcome is the caller's outcome.
// Secondary writes are best-effort: dispatched to a bounded queue with a
// dedicated consumer (when AsyncWrite) or applied inline, and any failure is
// logged and discarded. Reads are served exclusively by the primary; the
// secondary is write-only at this migration phase.
type DualWriteReplicator struct {
	primary   Store
	secondary Store
	config    ReplicationConfig
	logger    *zap.Logger

	jobs   chan replicationJob
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex // guards closed vs. job submission
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewDualWriteReplicator creates a replicator over (primary, secondary).
func NewDualWriteReplicator(primary, secondary Store, config ReplicationConfig, logger *zap.Logger) (*DualWriteReplicator, error) {
	if primary == nil {
		return nil, fmt.Errorf("%w: primary store is required", ErrInvalidConfig)
	}
	if secondary == nil {
		return nil, fmt.Errorf("%w: secondary store is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &DualWriteReplicator{
		primary:   primary,
		secondary: secondary,
		config:    config,
		logger:    logger.With(zap.String("domain", config.Domain)),
		jobs:      make(chan replicationJob, config.QueueSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	go r.runConsumer()

	r.logger.Info("dual-write replicator initialized",
		zap.String("primary", primary.BackendType()),
		zap.String("secondary", secondary.BackendType()),
		zap.Int("batch_size", config.BatchSize),
		zap.Bool("async_write", config.AsyncWrite))

	return r, nil
}

// runConsumer applies queued secondary writes one at a time.
func (r *DualWriteReplicator) runConsumer() {
	defer close(r.done)
	for job := range r.jobs {
		r.applySecondary(job)
		ReplicationQueueDepth.WithLabelValues(r.config.Domain).Set(float64(len(r.jobs)))
	}
}

// applySecondary runs one secondary write, absorbing any failure.
func (r *DualWriteReplicator) applySecondary(job replicationJob) {
	err := job.fn(r.ctx)
	RecordSecondaryWrite(r.config.Domain, job.op, err)
	if err != nil {
		r.logger.Warn("replicator: secondary write failed (absorbed)",
			zap.String("operation", job.op),
			zap.Error(err))
	}
}

// scheduleSecondary dispatches a secondary write according to AsyncWrite.
// The caller never observes its outcome.
func (r *DualWriteReplicator) scheduleSecondary(op string, fn func(context.Context) error) {
	job := replicationJob{op: op, fn: fn}

	if !r.config.AsyncWrite {
		r.applySecondary(job)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("replicator: closed, dropping secondary write",
			zap.String("operation", op))
		return
	}

	select {
	case r.jobs <- job:
		ReplicationQueueDepth.WithLabelValues(r.config.Domain).Set(float64(len(r.jobs)))
	default:
		RecordReplicationDrop(r.config.Domain, op)
		r.logger.Warn("replicator: queue full, dropping secondary write",
			zap.String("operation", op))
	}
}

// Upsert writes to primary synchronously; the secondary write is scheduled
// independently and its failure never surfaces.
func (r *DualWriteReplicator) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	if err := r.primary.Upsert(ctx, id, vector, metadata); err != nil {
		return err
	}

	r.scheduleSecondary("upsert", func(ctx context.Context) error {
		return r.secondary.Upsert(ctx, id, vector, metadata)
	})
	return nil
}

// UpsertBatch writes the whole batch to primary in one call; the secondary
// receives the batch split into sequential chunks of BatchSize. A failing
// chunk does not abort the remaining chunks.
func (r *DualWriteReplicator) UpsertBatch(ctx context.Context, records []VectorRecord) error {
	if err := r.primary.UpsertBatch(ctx, records); err != nil {
		return err
	}

	// Copy: the caller may reuse the slice after we return.
	replica := make([]VectorRecord, len(records))
	copy(replica, records)
	batchSize := r.config.BatchSize

	r.scheduleSecondary("upsert_batch", func(ctx context.Context) error {
		var firstErr error
		for start := 0; start < len(replica); start += batchSize {
			end := start + batchSize
			if end > len(replica) {
				end = len(replica)
			}
			if err := r.secondary.UpsertBatch(ctx, replica[start:end]); err != nil {
				r.logger.Warn("replicator: secondary batch chunk failed, continuing",
					zap.Int("chunk_start", start),
					zap.Int("chunk_size", end-start),
					zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	})
	return nil
}

// Delete removes from primary synchronously; the secondary delete is
// scheduled independently.
func (r *DualWriteReplicator) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := r.primary.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	r.scheduleSecondary("delete", func(ctx context.Context) error {
		_, err := r.secondary.Delete(ctx, id)
		return err
	})
	return existed, nil
}

// Search is served exclusively by primary; the secondary is not yet trusted
// for reads at this phase.
func (r *DualWriteReplicator) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	return r.primary.Search(ctx, vector, opts)
}

// Count is served exclusively by primary.
func (r *DualWriteReplicator) Count(ctx context.Context) (int, error) {
	return r.primary.Count(ctx)
}

// Dimension returns the primary's fixed vector dimension.
func (r *DualWriteReplicator) Dimension() int {
	return r.primary.Dimension()
}

// Persisted reports the primary's persistence.
func (r *DualWriteReplicator) Persisted() bool {
	return r.primary.Persisted()
}

// BackendType identifies this adapter.
func (r *DualWriteReplicator) BackendType() string {
	return "dualwrite"
}

// Close stops intake, drains outstanding secondary writes with a bounded
// wait, and closes both stores. Completion of queued writes is not required
// for correctness; after DrainTimeout the remainder is abandoned.
func (r *DualWriteReplicator) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.jobs)
		r.mu.Unlock()

		select {
		case <-r.done:
		case <-time.After(r.config.DrainTimeout):
			r.logger.Warn("replicator: drain timeout, abandoning queued secondary writes",
				zap.Duration("timeout", r.config.DrainTimeout))
		}
		r.cancel()

		var errs []error
		if err := r.primary.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := r.secondary.Close(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			r.closeErr = fmt.Errorf("replicator: close errors: %v", errs)
		}

		r.logger.Info("dual-write replicator closed")
	})
	return r.closeErr
}

// Ensure DualWriteReplicator implements Store interface.
var _ Store = (*DualWriteReplicator)(nil)
