package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Load("search")
	require.NoError(t, err)
	require.False(t, ok, "fresh store should have no checkpoint")

	require.NoError(t, store.Save("search", 4))

	cp, ok, err := store.Load("search")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "search", cp.Stage)
	require.Equal(t, 4, cp.LastCompletedIndex)
	require.False(t, cp.UpdatedAt.IsZero())
}

func TestFileStoreMonotonic(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("places", 10))
	require.NoError(t, store.Save("places", 10), "same index is allowed")
	require.Error(t, store.Save("places", 9), "regressing the index must fail")

	cp, ok, err := store.Load("places")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 10, cp.LastCompletedIndex)
}

func TestFileStorePerStageIsolation(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("search", 3))
	require.NoError(t, store.Save("enrich", 7))

	cp, ok, err := store.Load("enrich")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, cp.LastCompletedIndex)

	cp, ok, err = store.Load("search")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, cp.LastCompletedIndex)
}

func TestFileStoreRejectsTornFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	// Simulate a torn write from a crashed process.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search.json"), []byte(`{"stage":"sea`), 0o600))

	_, _, err = store.Load("search")
	require.Error(t, err)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save("search", 1))
	require.NoError(t, store.Save("search", 2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "search.json", entries[0].Name())
}
