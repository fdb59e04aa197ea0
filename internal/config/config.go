// Package config provides configuration loading for vecbridge.
package config

import (
	"fmt"
	"time"
)

// Config is the root vecbridge configuration.
type Config struct {
	Logging     LoggingConfig     `koanf:"logging"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Store       StoreConfig       `koanf:"store"`
	Replication ReplicationConfig `koanf:"replication"`
	Split       SplitConfig       `koanf:"split"`
	Cache       CacheConfig       `koanf:"cache"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `koanf:"level"`

	// Format is the output encoding (json, console).
	Format string `koanf:"format"`
}

// EmbeddingsConfig configures the TEI embedding provider.
type EmbeddingsConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Model     string        `koanf:"model"`
	Dimension int           `koanf:"dimension"`
	Timeout   time.Duration `koanf:"timeout"`
}

// StoreConfig selects the storage topology and configures both backends.
//
// Mode decides how the backends are wired:
//   - "primary":     primary backend only
//   - "dualwrite":   writes mirrored to secondary, reads from primary
//   - "splitrouter": dual writes plus toggle-routed reads with fallback
type StoreConfig struct {
	Mode      string        `koanf:"mode"`
	Primary   BackendConfig `koanf:"primary"`
	Secondary BackendConfig `koanf:"secondary"`
}

// BackendConfig configures one vector store backend.
type BackendConfig struct {
	// Type is the backend kind (chromem, qdrant).
	Type string `koanf:"type"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
}

// QdrantConfig configures the Qdrant gRPC backend.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
}

// ReplicationConfig configures the dual-write replicator.
type ReplicationConfig struct {
	Domain     string `koanf:"domain"`
	BatchSize  int    `koanf:"batch_size"`
	AsyncWrite bool   `koanf:"async_write"`
	QueueSize  int    `koanf:"queue_size"`
}

// SplitConfig configures the read/write split router.
type SplitConfig struct {
	ReadFromSecondary bool          `koanf:"read_from_secondary"`
	FallbackToPrimary bool          `koanf:"fallback_to_primary"`
	AutoWarmup        bool          `koanf:"auto_warmup"`
	WarmupTimeout     time.Duration `koanf:"warmup_timeout"`
}

// CacheConfig configures the semantic cache.
type CacheConfig struct {
	Enabled             bool          `koanf:"enabled"`
	SimilarityThreshold float32       `koanf:"similarity_threshold"`
	MaxItems            int           `koanf:"max_items"`
	TTL                 time.Duration `koanf:"ttl"`
}

// applyDefaults fills in defaults for missing values.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.Dimension == 0 {
		cfg.Embeddings.Dimension = 384
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = 30 * time.Second
	}

	if cfg.Store.Mode == "" {
		cfg.Store.Mode = "primary"
	}
	if cfg.Store.Primary.Type == "" {
		cfg.Store.Primary.Type = "chromem"
	}
	if cfg.Store.Secondary.Type == "" {
		cfg.Store.Secondary.Type = "qdrant"
	}
	applyBackendDefaults(&cfg.Store.Primary)
	applyBackendDefaults(&cfg.Store.Secondary)

	if cfg.Replication.Domain == "" {
		cfg.Replication.Domain = "default"
	}
	if cfg.Replication.BatchSize == 0 {
		cfg.Replication.BatchSize = 50
	}
	if cfg.Replication.QueueSize == 0 {
		cfg.Replication.QueueSize = 256
	}

	if cfg.Split.WarmupTimeout == 0 {
		cfg.Split.WarmupTimeout = 10 * time.Second
	}

	if cfg.Cache.SimilarityThreshold == 0 {
		cfg.Cache.SimilarityThreshold = 0.95
	}
	if cfg.Cache.MaxItems == 0 {
		cfg.Cache.MaxItems = 10000
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
}

func applyBackendDefaults(b *BackendConfig) {
	if b.Chromem.Collection == "" {
		b.Chromem.Collection = "vecbridge_default"
	}
	if b.Qdrant.Host == "" {
		b.Qdrant.Host = "localhost"
	}
	if b.Qdrant.Port == 0 {
		b.Qdrant.Port = 6334
	}
	if b.Qdrant.Collection == "" {
		b.Qdrant.Collection = "vecbridge_default"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}

	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embeddings.dimension must be positive")
	}

	switch c.Store.Mode {
	case "primary", "dualwrite", "splitrouter":
	default:
		return fmt.Errorf("invalid store.mode %q (primary, dualwrite, splitrouter)", c.Store.Mode)
	}

	if err := validateBackend("store.primary", c.Store.Primary); err != nil {
		return err
	}
	if c.Store.Mode != "primary" {
		if err := validateBackend("store.secondary", c.Store.Secondary); err != nil {
			return err
		}
	}

	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in [0,1]")
	}
	return nil
}

func validateBackend(name string, b BackendConfig) error {
	switch b.Type {
	case "chromem":
	case "qdrant":
		if b.Qdrant.Port <= 0 || b.Qdrant.Port > 65535 {
			return fmt.Errorf("%s.qdrant.port is invalid: %d", name, b.Qdrant.Port)
		}
	default:
		return fmt.Errorf("invalid %s.type %q (chromem, qdrant)", name, b.Type)
	}
	return nil
}
