package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetPut(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get("node-1")
	require.NoError(t, err)
	assert.Nil(t, got, "miss on empty cache")

	require.NoError(t, store.Put(Entry{
		NodeID:      "node-1",
		Fingerprint: "fp-1",
		Markdown:    "## Overview\nFirst version.",
		Summary:     "First version.",
	}))

	got, err = store.Get("node-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fp-1", got.Fingerprint)
	assert.False(t, got.UpdatedAt.IsZero())

	// replacing the entry keeps one row per node
	require.NoError(t, store.Put(Entry{
		NodeID:      "node-1",
		Fingerprint: "fp-2",
		Markdown:    "## Overview\nSecond version.",
		Summary:     "Second version.",
	}))
	got, err = store.Get("node-1")
	require.NoError(t, err)
	assert.Equal(t, "fp-2", got.Fingerprint)
	assert.Contains(t, got.Markdown, "Second version")
}
