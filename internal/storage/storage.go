// Package storage defines the destination backends term files are written to.
package storage

import (
	"context"
	"errors"
	"io"
)

// ContentTypeText is the content type of every term file.
const ContentTypeText = "text/plain; charset=utf-8"

// Errors shared by every backend.
var (
	ErrPathRequired  = errors.New("path is required")
	ErrPathTraversal = errors.New("path traversal detected")
)

// BlobStore writes and removes named objects.
type BlobStore interface {
	// PutObject overwrites the object at path and returns its URI.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// DeleteObject removes the object at path and reports whether it existed.
	DeleteObject(ctx context.Context, path string) (bool, error)
}
