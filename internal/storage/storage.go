// Package storage provides blob storage for rendered exports and uploaded assets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/invitely/invitely/internal/config"
)

// Provider names.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
	ProviderMinio = "minio"
)

var (
	// ErrObjectNotFound is returned when a key does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for empty keys or keys escaping the storage root.
	ErrInvalidKey = errors.New("invalid object key")
)

// Object describes a stored blob.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Interface is implemented by every storage backend.
type Interface interface {
	// Put writes the object, replacing any existing object under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error)

	// Open returns a reader for the object or ErrObjectNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]*Object, error)

	// Provider names the backend, recorded on export file metadata.
	Provider() string
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.StorageConfig) (Interface, error) {
	switch cfg.Provider {
	case ProviderLocal, "":
		return NewLocalStorage(cfg.LocalDir)
	case ProviderS3:
		return NewS3Storage(ctx, cfg)
	case ProviderMinio:
		return NewMinioStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// CleanKey normalises a key to a slash-separated relative path.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
