package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTEITestServer serves a fixed vector per input, TEI wire format.
func newTEITestServer(t *testing.T, dimension int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Inputs   interface{} `json:"inputs"`
			Truncate bool        `json:"truncate"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		count := 1
		if texts, ok := req.Inputs.([]interface{}); ok {
			count = len(texts)
		}

		vectors := make([][]float32, count)
		for i := range vectors {
			vec := make([]float32, dimension)
			vec[0] = float32(i + 1)
			vectors[i] = vec
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
}

func TestTEIConfig_Defaults(t *testing.T) {
	var config TEIConfig
	config.ApplyDefaults()

	assert.Equal(t, "http://localhost:8080", config.BaseURL)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", config.Model)
	assert.Equal(t, 384, config.Dimension)
	assert.NotZero(t, config.Timeout)
}

func TestTEIProvider_GenerateForText(t *testing.T) {
	server := newTEITestServer(t, 3)
	defer server.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: server.URL, Dimension: 3}, nil)
	require.NoError(t, err)
	defer p.Close()

	vec, err := p.GenerateForText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Equal(t, 3, p.Dimension())
}

func TestTEIProvider_GenerateForText_EmptyInput(t *testing.T) {
	p, err := NewTEIProvider(TEIConfig{}, nil)
	require.NoError(t, err)

	_, err = p.GenerateForText(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIProvider_GenerateBatch(t *testing.T) {
	server := newTEITestServer(t, 3)
	defer server.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: server.URL, Dimension: 3}, nil)
	require.NoError(t, err)
	defer p.Close()

	vectors, err := p.GenerateBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(2), vectors[1][0])
}

func TestTEIProvider_GenerateBatch_RejectsEmptyElement(t *testing.T) {
	p, err := NewTEIProvider(TEIConfig{}, nil)
	require.NoError(t, err)

	_, err = p.GenerateBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.GenerateBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: server.URL}, nil)
	require.NoError(t, err)

	_, err = p.GenerateForText(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestTEIProvider_DimensionMismatchRejected(t *testing.T) {
	server := newTEITestServer(t, 5)
	defer server.Close()

	// Server returns 5-dim vectors, provider expects 3.
	p, err := NewTEIProvider(TEIConfig{BaseURL: server.URL, Dimension: 3}, nil)
	require.NoError(t, err)

	_, err = p.GenerateForText(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestTEIProvider_ServerUnreachable(t *testing.T) {
	p, err := NewTEIProvider(TEIConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)

	_, err = p.GenerateForText(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}
