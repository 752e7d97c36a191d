package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/storage"
)

func newLocal(t *testing.T) (*storage.LocalStorage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return s, dir
}

func TestLocalStorage_PutCreatesDirectoryLazily(t *testing.T) {
	s, dir := newLocal(t)
	ctx := context.Background()

	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err), "root should not exist before first write")

	obj, err := s.Put(ctx, "exports/export_1.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "exports/export_1.pdf", obj.Key)
	assert.Equal(t, int64(4), obj.Size)

	// Removing the directory between writes must not break the next write.
	require.NoError(t, os.RemoveAll(dir))
	_, err = s.Put(ctx, "exports/export_2.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
}

func TestLocalStorage_OpenAndExists(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "assets/a.png", strings.NewReader("png-bytes"), -1, "image/png")
	require.NoError(t, err)

	exists, err := s.Exists(ctx, "assets/a.png")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := s.Open(ctx, "assets/a.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = s.Open(ctx, "assets/missing.png")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	exists, err = s.Exists(ctx, "assets/missing.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_DeleteIsIdempotent(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "exports/x.png", strings.NewReader("x"), 1, "image/png")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "exports/x.png"))
	require.NoError(t, s.Delete(ctx, "exports/x.png"))

	exists, err := s.Exists(ctx, "exports/x.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_List(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()

	objects, err := s.List(ctx, "exports/")
	require.NoError(t, err)
	assert.Empty(t, objects, "missing root lists as empty")

	for _, key := range []string{"exports/a.pdf", "exports/b.png", "assets/c.jpg"} {
		_, err := s.Put(ctx, key, strings.NewReader("data"), 4, "")
		require.NoError(t, err)
	}

	objects, err = s.List(ctx, "exports/")
	require.NoError(t, err)
	require.Len(t, objects, 2)

	keys := []string{objects[0].Key, objects[1].Key}
	assert.ElementsMatch(t, []string{"exports/a.pdf", "exports/b.png"}, keys)
}

func TestLocalStorage_KeysConfinedToRoot(t *testing.T) {
	s, dir := newLocal(t)
	ctx := context.Background()

	obj, err := s.Put(ctx, "../../escape.txt", strings.NewReader("x"), 1, "")
	require.NoError(t, err)
	assert.Equal(t, "escape.txt", obj.Key)

	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.NoError(t, err)

	_, err = s.Put(ctx, "  ", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}
