package storage

import (
	"context"
	"io"
)

// Object is a stored blob opened for reading.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectStore keeps uploaded files.
type ObjectStore interface {
	// Put stores body under key and returns a public URL, or "" when the
	// store is not publicly reachable.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}
