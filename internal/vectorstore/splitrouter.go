package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SplitConfig holds configuration for read/write split routing.
type SplitConfig struct {
	// Domain labels this router in logs and metrics.
	Domain string

	// ReadFromSecondary routes reads to the secondary store once it has
	// passed warmup. The toggle can be flipped at runtime.
	ReadFromSecondary bool

	// FallbackToPrimary re-runs a failed or empty secondary read against
	// the primary within the same call. Default behavior when reads are
	// routed to the secondary; disable only when the primary is being
	// decommissioned.
	FallbackToPrimary bool

	// AutoWarmup probes the secondary during construction so reads can be
	// routed immediately. When false, Warmup must be called explicitly.
	AutoWarmup bool

	// WarmupTimeout bounds the warmup probe. Default: 10s
	WarmupTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *SplitConfig) ApplyDefaults() {
	if c.Domain == "" {
		c.Domain = "default"
	}
	if c.WarmupTimeout == 0 {
		c.WarmupTimeout = 10 * time.Second
	}
}

// ReadWriteSplitRouter routes reads and writes independently across a
// primary and a secondary store during the read-cutover phase of a
// migration.
//
// Writes always go to both stores: primary synchronously (authoritative),
// secondary best-effort with failures absorbed. Reads go to the secondary
// only when it is both toggled on and warmed up; a secondary read that
// errors or comes back empty falls back to the primary within the same
// call, so a lagging secondary never loses results for the caller.
type ReadWriteSplitRouter struct {
	primary   Store
	secondary Store
	config    SplitConfig
	logger    *zap.Logger

	readFromSecondary  atomic.Bool
	secondaryReady     atomic.Bool
	secondaryAvailable atomic.Bool

	mu          sync.Mutex
	lastWarmup  time.Time
	warmupError error
}

// NewReadWriteSplitRouter creates a router over (primary, secondary).
func NewReadWriteSplitRouter(primary, secondary Store, config SplitConfig, logger *zap.Logger) (*ReadWriteSplitRouter, error) {
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

	r := &ReadWriteSplitRouter{
		primary:   primary,
		secondary: secondary,
		config:    config,
		logger:    logger.With(zap.String("domain", config.Domain)),
	}
	r.readFromSecondary.Store(config.ReadFromSecondary)
	r.secondaryAvailable.Store(true)

	if config.AutoWarmup {
		ctx, cancel := context.WithTimeout(context.Background(), config.WarmupTimeout)
		defer cancel()
		if err := r.Warmup(ctx); err != nil {
			// Warmup failure is not fatal: reads stay on primary until a
			// later Warmup succeeds.
			r.logger.Warn("router: initial warmup failed, reads stay on primary",
				zap.Error(err))
		}
	}

	r.logger.Info("read/write split router initialized",
		zap.String("primary", primary.BackendType()),
		zap.String("secondary", secondary.BackendType()),
		zap.Bool("read_from_secondary", config.ReadFromSecondary),
		zap.Bool("fallback_to_primary", config.FallbackToPrimary))

	return r, nil
}

// Warmup probes the secondary with a cheap read so the first routed search
// does not pay cold-start latency. On success the secondary is marked ready
// for reads; on failure it stays (or becomes) not ready.
func (r *ReadWriteSplitRouter) Warmup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.WarmupTimeout)
	defer cancel()

	count, err := r.secondary.Count(ctx)

	r.mu.Lock()
	r.lastWarmup = timeNow()
	r.warmupError = err
	r.mu.Unlock()

	if err != nil {
		r.secondaryReady.Store(false)
		r.secondaryAvailable.Store(false)
		r.logger.Warn("router: secondary warmup failed",
			zap.Error(err))
		return fmt.Errorf("warming up secondary: %w", err)
	}

	r.secondaryReady.Store(true)
	r.secondaryAvailable.Store(true)
	r.logger.Info("router: secondary warmed up",
		zap.Int("record_count", count))
	return nil
}

// EnableSecondaryReads routes reads to the secondary. Takes effect only
// once warmup has succeeded; the toggle and readiness are independent.
func (r *ReadWriteSplitRouter) EnableSecondaryReads() {
	r.readFromSecondary.Store(true)
	r.logger.Info("router: secondary reads enabled")
}

// DisableSecondaryReads pins reads back to the primary.
func (r *ReadWriteSplitRouter) DisableSecondaryReads() {
	r.readFromSecondary.Store(false)
	r.logger.Info("router: secondary reads disabled")
}

// IsReadFromSecondary reports the current read-routing toggle.
func (r *ReadWriteSplitRouter) IsReadFromSecondary() bool {
	return r.readFromSecondary.Load()
}

// IsSecondaryReady reports whether the secondary passed warmup.
func (r *ReadWriteSplitRouter) IsSecondaryReady() bool {
	return r.secondaryReady.Load()
}

// IsSecondaryAvailable reports whether the last secondary operation
// succeeded.
func (r *ReadWriteSplitRouter) IsSecondaryAvailable() bool {
	return r.secondaryAvailable.Load()
}

// LastWarmup returns the time and outcome of the most recent warmup probe.
func (r *ReadWriteSplitRouter) LastWarmup() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastWarmup, r.warmupError
}

// routeReadsToSecondary decides where the next read goes.
func (r *ReadWriteSplitRouter) routeReadsToSecondary() bool {
	return r.readFromSecondary.Load() && r.secondaryReady.Load()
}

// writeBoth applies a mutation to primary synchronously, then to secondary
// best-effort. Only the primary outcome surfaces.
func (r *ReadWriteSplitRouter) writeBoth(op string, primaryWrite, secondaryWrite func() error) error {
	if err := primaryWrite(); err != nil {
		return err
	}

	if err := secondaryWrite(); err != nil {
		r.secondaryAvailable.Store(false)
		RecordRouterSecondaryWrite(r.config.Domain, op, err)
		r.logger.Warn("router: secondary write failed (absorbed)",
			zap.String("operation", op),
			zap.Error(err))
	} else {
		r.secondaryAvailable.Store(true)
		RecordRouterSecondaryWrite(r.config.Domain, op, nil)
	}
	return nil
}

// Upsert writes to both stores; only the primary outcome surfaces.
func (r *ReadWriteSplitRouter) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	return r.writeBoth("upsert",
		func() error { return r.primary.Upsert(ctx, id, vector, metadata) },
		func() error { return r.secondary.Upsert(ctx, id, vector, metadata) },
	)
}

// UpsertBatch writes the batch to both stores; only the primary outcome
// surfaces.
func (r *ReadWriteSplitRouter) UpsertBatch(ctx context.Context, records []VectorRecord) error {
	return r.writeBoth("upsert_batch",
		func() error { return r.primary.UpsertBatch(ctx, records) },
		func() error { return r.secondary.UpsertBatch(ctx, records) },
	)
}

// Delete removes from both stores. The returned existed flag reflects the
// primary, which stays authoritative for existence.
func (r *ReadWriteSplitRouter) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := r.primary.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	if _, serr := r.secondary.Delete(ctx, id); serr != nil {
		r.secondaryAvailable.Store(false)
		RecordRouterSecondaryWrite(r.config.Domain, "delete", serr)
		r.logger.Warn("router: secondary delete failed (absorbed)",
			zap.String("id", id),
			zap.Error(serr))
	} else {
		r.secondaryAvailable.Store(true)
		RecordRouterSecondaryWrite(r.config.Domain, "delete", nil)
	}
	return existed, nil
}

// Search routes to the secondary when it is toggled on and warmed up,
// otherwise to the primary. A secondary search that errors or returns no
// results falls back to the primary within the same call (unless fallback
// is disabled).
func (r *ReadWriteSplitRouter) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	if !r.routeReadsToSecondary() {
		return r.primary.Search(ctx, vector, opts)
	}

	results, err := r.secondary.Search(ctx, vector, opts)
	if err != nil {
		r.secondaryAvailable.Store(false)
		if !r.config.FallbackToPrimary {
			return nil, err
		}
		RecordRouterFallback(r.config.Domain, "error")
		r.logger.Warn("router: secondary search failed, falling back to primary",
			zap.Error(err))
		return r.primary.Search(ctx, vector, opts)
	}

	r.secondaryAvailable.Store(true)
	if len(results) == 0 && r.config.FallbackToPrimary {
		// The secondary may simply not have replicated the matching
		// records yet.
		RecordRouterFallback(r.config.Domain, "empty")
		r.logger.Debug("router: secondary returned no results, falling back to primary")
		return r.primary.Search(ctx, vector, opts)
	}
	return results, nil
}

// Count is always served by the primary, the authoritative record count
// during migration.
func (r *ReadWriteSplitRouter) Count(ctx context.Context) (int, error) {
	return r.primary.Count(ctx)
}

// Dimension returns the primary's fixed vector dimension.
func (r *ReadWriteSplitRouter) Dimension() int {
	return r.primary.Dimension()
}

// Persisted reports the primary's persistence.
func (r *ReadWriteSplitRouter) Persisted() bool {
	return r.primary.Persisted()
}

// BackendType identifies this adapter.
func (r *ReadWriteSplitRouter) BackendType() string {
	return "splitrouter"
}

// Close closes both stores, collecting errors.
func (r *ReadWriteSplitRouter) Close() error {
	var errs []error
	if err := r.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.secondary.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("router: close errors: %v", errs)
	}
	r.logger.Info("read/write split router closed")
	return nil
}

// Ensure ReadWriteSplitRouter implements Store interface.
var _ Store = (*ReadWriteSplitRouter)(nil)
