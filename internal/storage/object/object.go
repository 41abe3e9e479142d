// Package object abstracts S3-compatible object storage used for export
// artifacts. Implementations stream content and never touch local disk.
package object

import (
	"context"
	"io"
	"time"
)

// PutOptions are optional upload parameters. Size must be the exact byte
// count when known, or -1 to let the backend chunk.
type PutOptions struct {
	Size        int64
	ContentType string
}

// Info describes a stored object.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutOptions) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, Info, error)
	Delete(ctx context.Context, key string) error
}
