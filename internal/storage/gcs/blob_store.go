// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gcstorage "cloud.google.com/go/storage"

	"github.com/JakeFAU/hotterms/internal/storage"
)

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name.
	Prefix string
}

// BlobStore writes term files to a configured GCS bucket.
type BlobStore struct {
	client *gcstorage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed blob store.
func New(client *gcstorage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	object, err := s.objectName(name)
	if err != nil {
		return "", err
	}
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// DeleteObject removes the object and reports whether it existed.
func (s *BlobStore) DeleteObject(ctx context.Context, name string) (bool, error) {
	object, err := s.objectName(name)
	if err != nil {
		return false, err
	}
	if err := s.client.Bucket(s.bucket).Object(object).Delete(ctx); err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete object: %w", err)
	}
	return true, nil
}

func (s *BlobStore) objectName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", storage.ErrPathRequired
	}
	cleaned := path.Clean("/" + name)
	if cleaned != "/"+name {
		return "", fmt.Errorf("%w: %s", storage.ErrPathTraversal, name)
	}
	if s.prefix == "" {
		return name, nil
	}
	return s.prefix + "/" + name, nil
}
