package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOnlyAnnotations(t *testing.T) {
	ann := ReadOnlyAnnotations("Network Status")

	assert.Equal(t, "Network Status", ann.Title)
	assert.True(t, ann.ReadOnlyHint)
	assert.True(t, ann.IdempotentHint)
	require.NotNil(t, ann.OpenWorldHint)
	assert.False(t, *ann.OpenWorldHint)
	assert.Nil(t, ann.DestructiveHint)
}

func TestGatedAnnotations(t *testing.T) {
	ann := GatedAnnotations("Execute Action")

	assert.Equal(t, "Execute Action", ann.Title)
	assert.False(t, ann.ReadOnlyHint)
	assert.False(t, ann.IdempotentHint)
	require.NotNil(t, ann.OpenWorldHint)
	assert.False(t, *ann.OpenWorldHint)
	// Unset so clients fall back to their cautious default.
	assert.Nil(t, ann.DestructiveHint)
}

func TestHealthAnnotations(t *testing.T) {
	ann := HealthAnnotations("Gateway Health")

	assert.Equal(t, "Gateway Health", ann.Title)
	assert.True(t, ann.ReadOnlyHint)
	assert.False(t, ann.IdempotentHint)
	require.NotNil(t, ann.OpenWorldHint)
	assert.False(t, *ann.OpenWorldHint)
}
