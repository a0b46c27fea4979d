// Package storage is a put/get-by-key blob store for generated documents.
package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("storage: object not found")

// Store is implemented by every backend.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Ping(ctx context.Context) error
}

// New returns the backend selected by cfg.
func New(ctx context.Context, cfg *Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendS3 {
		return NewS3Store(ctx, cfg)
	}
	return NewLocalStore(cfg.LocalRoot)
}
