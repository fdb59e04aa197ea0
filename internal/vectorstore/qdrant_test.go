package vectorstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_Defaults(t *testing.T) {
	var config QdrantConfig
	config.ApplyDefaults()

	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, 6334, config.Port)
	assert.Equal(t, 3, config.MaxRetries)
	assert.NotZero(t, config.RetryBackoff)
}

func TestQdrantConfig_Validate(t *testing.T) {
	config := QdrantConfig{Host: "localhost", Port: 6334, Collection: "memories", Dimension: 384}
	require.NoError(t, config.Validate())

	bad := config
	bad.Host = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = config
	bad.Port = 70000
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = config
	bad.Dimension = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, IsTransientError(status.Error(codes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(codes.DeadlineExceeded, "slow")))
	assert.True(t, IsTransientError(status.Error(codes.ResourceExhausted, "busy")))

	assert.False(t, IsTransientError(status.Error(codes.InvalidArgument, "bad vector")))
	assert.False(t, IsTransientError(status.Error(codes.NotFound, "no collection")))
	assert.False(t, IsTransientError(errors.New("plain error")))
	assert.False(t, IsTransientError(nil))
}

func TestPointIDFor_Deterministic(t *testing.T) {
	// Non-UUID record IDs map through a stable UUIDv5.
	a := pointIDFor("memory-123")
	b := pointIDFor("memory-123")
	assert.Equal(t, a.GetUuid(), b.GetUuid())

	c := pointIDFor("memory-124")
	assert.NotEqual(t, a.GetUuid(), c.GetUuid())

	// UUID record IDs pass through unchanged.
	id := "b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e"
	assert.Equal(t, id, pointIDFor(id).GetUuid())
}
