package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TEIConfig holds configuration for the TEI provider.
type TEIConfig struct {
	// BaseURL is the base URL of the TEI server.
	// Default: http://localhost:8080
	BaseURL string

	// Model names the served model, for logging and metrics only; TEI
	// serves a single model per instance.
	// Default: BAAI/bge-small-en-v1.5
	Model string

	// Dimension is the embedding dimension the model produces.
	// Default: 384
	Dimension int

	// Timeout bounds each embed request. Default: 30s
	Timeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *TEIConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.Dimension == 0 {
		c.Dimension = 384
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// TEIProvider generates embeddings against a TEI server's /embed endpoint.
type TEIProvider struct {
	config TEIConfig
	client *http.Client
	logger *zap.Logger
}

// NewTEIProvider creates a TEI-backed embedding provider.
func NewTEIProvider(config TEIConfig, logger *zap.Logger) (*TEIProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger.Info("TEI embedding provider initialized",
		zap.String("base_url", config.BaseURL),
		zap.String("model", config.Model),
		zap.Int("dimension", config.Dimension))

	return &TEIProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// embed posts inputs to /embed and decodes the vector matrix.
func (p *TEIProvider) embed(ctx context.Context, inputs interface{}, inputCount int) ([][]float32, error) {
	start := time.Now()

	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		recordGeneration(p.config.Model, inputCount, time.Since(start), err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
		recordGeneration(p.config.Model, inputCount, time.Since(start), err)
		return nil, err
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		recordGeneration(p.config.Model, inputCount, time.Since(start), err)
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	for i, vec := range vectors {
		if len(vec) != p.config.Dimension {
			err = fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				ErrEmbeddingFailed, i, len(vec), p.config.Dimension)
			recordGeneration(p.config.Model, inputCount, time.Since(start), err)
			return nil, err
		}
	}

	recordGeneration(p.config.Model, inputCount, time.Since(start), nil)
	return vectors, nil
}

// GenerateForText embeds a single text.
func (p *TEIProvider) GenerateForText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vectors, err := p.embed(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

// GenerateBatch embeds multiple texts in one call, preserving order.
func (p *TEIProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: text at index %d is empty", ErrEmptyInput, i)
		}
	}

	vectors, err := p.embed(ctx, texts, len(texts))
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}
	return vectors, nil
}

// Dimension returns the embedding dimension.
func (p *TEIProvider) Dimension() int {
	return p.config.Dimension
}

// Close releases provider resources.
func (p *TEIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Ensure TEIProvider implements Provider interface.
var _ Provider = (*TEIProvider)(nil)
