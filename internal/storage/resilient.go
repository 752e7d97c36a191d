package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/invitely/invitely/internal/resilience"
)

// Resilient wraps a backend with a circuit breaker and retry. Missing objects
// and invalid keys are expected outcomes and are never retried.
type Resilient struct {
	inner Interface
	exec  *resilience.Executor
}

// NewResilient wraps inner. The executor is registered as "storage-<provider>".
func NewResilient(inner Interface, registry *resilience.Registry) *Resilient {
	cfg := resilience.DefaultConfig("storage-" + inner.Provider())
	cfg.Registry = registry
	cfg.Permanent = func(err error) bool {
		return errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrInvalidKey)
	}
	return &Resilient{inner: inner, exec: resilience.NewExecutor(cfg)}
}

// Provider returns the wrapped backend's provider name.
func (s *Resilient) Provider() string {
	return s.inner.Provider()
}

// Put buffers non-seekable readers so the body can be replayed on retry.
func (s *Resilient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("buffer object: %w", err)
		}
		rs = bytes.NewReader(data)
		size = int64(len(data))
	}

	var obj *Object
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return err
		}
		var err error
		obj, err = s.inner.Put(ctx, key, rs, size, contentType)
		return err
	})
	return obj, err
}

// Open retries opening; reads from the returned stream are not retried.
func (s *Resilient) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		var err error
		rc, err = s.inner.Open(ctx, key)
		return err
	})
	return rc, err
}

func (s *Resilient) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		var err error
		exists, err = s.inner.Exists(ctx, key)
		return err
	})
	return exists, err
}

func (s *Resilient) Delete(ctx context.Context, key string) error {
	return s.exec.Do(ctx, func(ctx context.Context) error {
		return s.inner.Delete(ctx, key)
	})
}

func (s *Resilient) List(ctx context.Context, prefix string) ([]*Object, error) {
	var objects []*Object
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		var err error
		objects, err = s.inner.List(ctx, prefix)
		return err
	})
	return objects, err
}

var _ Interface = (*Resilient)(nil)
