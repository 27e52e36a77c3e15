package objectstore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutAndGet(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	content := []byte("hello, disk!")
	_, err = store.Put(ctx, "a/b.json", bytes.NewReader(content), PutOptions{})
	require.NoError(t, err)

	r, attrs, err := store.Get(ctx, "a/b.json")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, int64(len(content)), attrs.Size)
}

func TestFileStore_GetNotFound(t *testing.T) {
	t.Parallel()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get(t.Context(), "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_PutLeavesNoTempFileBehind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.Put(t.Context(), "trace.json", bytes.NewReader([]byte("{}")), PutOptions{})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "trace.json", entries[0].Name())
}

func TestFileStore_PutOverwritesAtomically(t *testing.T) {
	t.Parallel()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := t.Context()

	_, err = store.Put(ctx, "trace.json", bytes.NewReader([]byte("v1")), PutOptions{})
	require.NoError(t, err)
	_, err = store.Put(ctx, "trace.json", bytes.NewReader([]byte("v2")), PutOptions{})
	require.NoError(t, err)

	r, _, err := store.Get(ctx, "trace.json")
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	assert.Equal(t, "v2", string(data))
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	t.Parallel()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get(t.Context(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFileStore_List(t *testing.T) {
	t.Parallel()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := t.Context()

	for _, k := range []string{"aa.json", "bb.json", "cc.json"} {
		_, err := store.Put(ctx, k, bytes.NewReader([]byte("{}")), PutOptions{})
		require.NoError(t, err)
	}

	result, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Objects, 3)
}

func TestFileStore_Exists(t *testing.T) {
	t.Parallel()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := t.Context()

	ok, err := store.Exists(ctx, "x.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Put(ctx, "x.json", bytes.NewReader([]byte("{}")), PutOptions{})
	require.NoError(t, err)

	ok, err = store.Exists(ctx, "x.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewFileStore_CreatesDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "traces")
	_, err := NewFileStore(dir)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
