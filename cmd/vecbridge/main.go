// Package main implements the vecbridge CLI for indexing and querying the
// vector store stack during migrations.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecbridge/internal/config"
	"github.com/fyrsmithlabs/vecbridge/internal/embeddings"
	"github.com/fyrsmithlabs/vecbridge/internal/logging"
	"github.com/fyrsmithlabs/vecbridge/internal/retrieval"
	"github.com/fyrsmithlabs/vecbridge/internal/semcache"
	"github.com/fyrsmithlabs/vecbridge/internal/vectorstore"
)

var (
	// configPath is the YAML config file; empty uses defaults plus env vars.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vecbridge",
	Short: "Vector store migration and retrieval CLI",
	Long: `vecbridge manages a primary/secondary vector store pair during a
backend migration: dual writes, routed reads with fallback, and a
semantically cached retrieval path.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(warmupCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store topology and record counts",
	RunE:  runStatus,
}

var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Probe the secondary store and report readiness",
	Long: `Probe the secondary store so routed reads skip cold-start latency.
Requires store.mode splitrouter.`,
	RunE: runWarmup,
}

var indexCmd = &cobra.Command{
	Use:   "index [file]",
	Short: "Index JSONL items from a file or stdin",
	Long: `Index items into the configured store stack. Input is JSON Lines,
one object per line:

  {"id": "doc-1", "text": "how to rotate credentials", "metadata": {"team": "infra"}}

Examples:
  vecbridge index items.jsonl
  cat items.jsonl | vecbridge index -`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a retrieval query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var (
	searchLimit     int
	searchThreshold float32
	indexBatchSize  int
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "maximum results")
	searchCmd.Flags().Float32Var(&searchThreshold, "threshold", 0, "minimum similarity score")
	indexCmd.Flags().IntVar(&indexBatchSize, "batch-size", 50, "items per indexing batch")
}

// stack is the assembled runtime: store topology, provider, cache, engine.
type stack struct {
	cfg    *config.Config
	logger *zap.Logger
	store  vectorstore.Store
	router *vectorstore.ReadWriteSplitRouter // nil unless mode is splitrouter
	engine *retrieval.Engine
}

func (s *stack) close() {
	if s.engine != nil {
		_ = s.engine.Close()
	}
	_ = s.logger.Sync()
}

// buildStack loads config and wires provider, stores, cache, and engine.
func buildStack() (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	provider, err := embeddings.NewTEIProvider(embeddings.TEIConfig{
		BaseURL:   cfg.Embeddings.BaseURL,
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
		Timeout:   cfg.Embeddings.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	store, router, err := buildStore(cfg, logger)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	var cache *semcache.Cache
	if cfg.Cache.Enabled {
		cache, err = semcache.New(semcache.Config{
			SimilarityThreshold: cfg.Cache.SimilarityThreshold,
			MaxItems:            cfg.Cache.MaxItems,
			TTL:                 cfg.Cache.TTL,
		}, logger)
		if err != nil {
			_ = provider.Close()
			_ = store.Close()
			return nil, err
		}
	}

	engine, err := retrieval.New(provider, store, cache, logger)
	if err != nil {
		_ = provider.Close()
		_ = store.Close()
		return nil, err
	}

	return &stack{cfg: cfg, logger: logger, store: store, router: router, engine: engine}, nil
}

// buildStore assembles the store topology for the configured mode.
func buildStore(cfg *config.Config, logger *zap.Logger) (vectorstore.Store, *vectorstore.ReadWriteSplitRouter, error) {
	primary, err := buildBackend(cfg.Store.Primary, cfg.Embeddings.Dimension, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("building primary store: %w", err)
	}

	if cfg.Store.Mode == "primary" {
		return primary, nil, nil
	}

	secondary, err := buildBackend(cfg.Store.Secondary, cfg.Embeddings.Dimension, logger)
	if err != nil {
		_ = primary.Close()
		return nil, nil, fmt.Errorf("building secondary store: %w", err)
	}

	switch cfg.Store.Mode {
	case "dualwrite":
		replicator, err := vectorstore.NewDualWriteReplicator(primary, secondary, vectorstore.ReplicationConfig{
			Domain:     cfg.Replication.Domain,
			BatchSize:  cfg.Replication.BatchSize,
			AsyncWrite: cfg.Replication.AsyncWrite,
			QueueSize:  cfg.Replication.QueueSize,
		}, logger)
		if err != nil {
			_ = primary.Close()
			_ = secondary.Close()
			return nil, nil, err
		}
		return replicator, nil, nil

	case "splitrouter":
		router, err := vectorstore.NewReadWriteSplitRouter(primary, secondary, vectorstore.SplitConfig{
			Domain:            cfg.Replication.Domain,
			ReadFromSecondary: cfg.Split.ReadFromSecondary,
			FallbackToPrimary: cfg.Split.FallbackToPrimary,
			AutoWarmup:        cfg.Split.AutoWarmup,
			WarmupTimeout:     cfg.Split.WarmupTimeout,
		}, logger)
		if err != nil {
			_ = primary.Close()
			_ = secondary.Close()
			return nil, nil, err
		}
		return router, router, nil

	default:
		_ = primary.Close()
		_ = secondary.Close()
		return nil, nil, fmt.Errorf("unsupported store mode %q", cfg.Store.Mode)
	}
}

// buildBackend constructs one concrete backend.
func buildBackend(b config.BackendConfig, dimension int, logger *zap.Logger) (vectorstore.Store, error) {
	switch b.Type {
	case "chromem":
		return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:       b.Chromem.Path,
			Compress:   b.Chromem.Compress,
			Collection: b.Chromem.Collection,
			Dimension:  dimension,
		}, logger)
	case "qdrant":
		return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       b.Qdrant.Host,
			Port:       b.Qdrant.Port,
			Collection: b.Qdrant.Collection,
			Dimension:  dimension,
			UseTLS:     b.Qdrant.UseTLS,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported backend type %q", b.Type)
	}
}

// runStatus prints the active topology and record counts.
func runStatus(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	ctx := context.Background()
	count, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting records: %w", err)
	}

	fmt.Printf("Mode:       %s\n", s.cfg.Store.Mode)
	fmt.Printf("Backend:    %s\n", s.store.BackendType())
	fmt.Printf("Dimension:  %d\n", s.store.Dimension())
	fmt.Printf("Persisted:  %v\n", s.store.Persisted())
	fmt.Printf("Records:    %d\n", count)

	if s.router != nil {
		fmt.Printf("Secondary:  ready=%v available=%v reads_routed=%v\n",
			s.router.IsSecondaryReady(),
			s.router.IsSecondaryAvailable(),
			s.router.IsReadFromSecondary())
	}
	return nil
}

// runWarmup probes the secondary store.
func runWarmup(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	if s.router == nil {
		return fmt.Errorf("warmup requires store.mode splitrouter, got %q", s.cfg.Store.Mode)
	}

	if err := s.router.Warmup(context.Background()); err != nil {
		return err
	}
	fmt.Println("Secondary warmed up; reads can be routed.")
	return nil
}

// indexLine is one JSONL input record.
type indexLine struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// runIndex reads JSONL items and indexes them in batches.
func runIndex(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	in := os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	ctx := context.Background()
	var batch []retrieval.Item
	indexed := 0
	lineNo := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.engine.IndexItems(ctx, batch); err != nil {
			return err
		}
		indexed += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var item indexLine
		if err := json.Unmarshal(line, &item); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		batch = append(batch, retrieval.Item{ID: item.ID, Text: item.Text, Metadata: item.Metadata})
		if len(batch) >= indexBatchSize {
			if err := flush(); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	fmt.Printf("Indexed %d items.\n", indexed)
	return nil
}

// runSearch answers a query and prints ranked results.
func runSearch(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	result, err := s.engine.FindRelevant(context.Background(), args[0], vectorstore.SearchOptions{
		Limit:     searchLimit,
		Threshold: searchThreshold,
	})
	if err != nil {
		return err
	}

	if result.FromCache {
		fmt.Printf("(served from semantic cache, similarity %.4f)\n", result.CacheSimilarity)
	}
	if len(result.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range result.Results {
		fmt.Printf("%2d. %-30s score=%.4f", i+1, r.ID, r.Score)
		if len(r.Metadata) > 0 {
			meta, _ := json.Marshal(r.Metadata)
			fmt.Printf("  %s", meta)
		}
		fmt.Println()
	}
	return nil
}
