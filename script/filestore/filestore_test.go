package filestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/script"
	"github.com/guideforge/engine/script/filestore"
)

func TestPutGetDeleteList(t *testing.T) {
	dir := t.TempDir()
	store, err := filestore.New(filepath.Join(dir, "index.json"))
	require.NoError(t, err)

	ctx := context.Background()
	sc := script.Script{ID: "s1", Title: "First script", BaseURL: "https://example.com"}

	_, ok, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Put(ctx, sc))

	got, ok, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "First script", got.Title)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, ok, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewReopensExistingIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	store1, err := filestore.New(path)
	require.NoError(t, err)
	require.NoError(t, store1.Put(context.Background(), script.Script{ID: "s2", Title: "persisted"}))

	store2, err := filestore.New(path)
	require.NoError(t, err)
	got, ok, err := store2.Get(context.Background(), "s2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "persisted", got.Title)
}
