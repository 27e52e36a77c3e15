package objectstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_PutGetListDeleteRoundTrip(t *testing.T) {
	dsn := os.Getenv("LLMOS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LLMOS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, dsn, "objectstore_test_"+t.Name())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	_, err = store.Put(ctx, "traces/abc123.json", bytes.NewReader([]byte(`{"goal":"hi"}`)), PutOptions{ContentType: "application/json"})
	require.NoError(t, err)

	r, attrs, err := store.Get(ctx, "traces/abc123.json")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, `{"goal":"hi"}`, string(body))
	assert.Equal(t, int64(len(body)), attrs.Size)

	exists, err := store.Exists(ctx, "traces/abc123.json")
	require.NoError(t, err)
	assert.True(t, exists)

	listing, err := store.List(ctx, ListOptions{Prefix: "traces/"})
	require.NoError(t, err)
	assert.Len(t, listing.Objects, 1)

	require.NoError(t, store.Delete(ctx, "traces/abc123.json"))
	_, _, err = store.Get(ctx, "traces/abc123.json")
	assert.ErrorIs(t, err, ErrNotFound)
}
