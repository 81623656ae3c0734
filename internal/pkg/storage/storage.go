// Package storage keeps uploaded deposit receipts on local disk or in an S3-compatible bucket.
// Receipts are private: they are streamed to admins by the API, never linked publicly.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("file not found")

// Storage is the minimal interface receipt handling needs.
type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete is idempotent: removing a missing key succeeds.
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a backend.
type Config struct {
	Driver      string // local | s3
	LocalDir    string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string // set for MinIO or R2; enables path-style addressing
	S3AccessKey string
	S3SecretKey string
}

// New builds the backend named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir)
	case "s3":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
