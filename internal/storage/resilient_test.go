package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/resilience"
	"github.com/invitely/invitely/internal/storage"
)

// flakyStorage fails the first failures calls to Put and Open.
type flakyStorage struct {
	storage.Interface
	failures atomic.Int32
	puts     atomic.Int32
	opens    atomic.Int32
}

func (f *flakyStorage) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) (*storage.Object, error) {
	f.puts.Add(1)
	if f.failures.Add(-1) >= 0 {
		_, _ = io.ReadAll(r)
		return nil, errors.New("connection reset by peer")
	}
	return f.Interface.Put(ctx, key, r, size, ct)
}

func (f *flakyStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f.opens.Add(1)
	return f.Interface.Open(ctx, key)
}

func TestResilient_RetriesAndReplaysBody(t *testing.T) {
	local, _ := newLocal(t)
	flaky := &flakyStorage{Interface: local}
	flaky.failures.Store(2)

	registry := resilience.NewRegistry()
	s := storage.NewResilient(flaky, registry)
	ctx := context.Background()

	// strings.Reader is seekable; a plain io.Reader is buffered.
	body := io.MultiReader(strings.NewReader("hello "), strings.NewReader("world"))
	_, err := s.Put(ctx, "exports/r.txt", body, -1, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int32(3), flaky.puts.Load())

	rc, err := s.Open(ctx, "exports/r.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "hello world", string(data))

	health := registry.Health("storage-local")
	require.NotNil(t, health)
	assert.True(t, health.IsHealthy())
}

func TestResilient_NotFoundIsNotRetried(t *testing.T) {
	local, _ := newLocal(t)
	flaky := &flakyStorage{Interface: local}
	s := storage.NewResilient(flaky, nil)

	_, err := s.Open(context.Background(), "exports/none.pdf")
	require.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.Equal(t, int32(1), flaky.opens.Load())
}
