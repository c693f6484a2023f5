// Package memory stores term files in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/hotterms/internal/storage"
)

// BlobStore stores objects in-memory and returns pseudo URIs.
type BlobStore struct {
	mu        sync.RWMutex
	data      map[string][]byte
	failPaths map[string]error
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data:      make(map[string][]byte),
		failPaths: make(map[string]error),
	}
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", storage.ErrPathRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failPaths[path]; err != nil {
		return "", err
	}

	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	s.data[path] = append([]byte(nil), byteData...)
	return fmt.Sprintf("memory://%s", path), nil
}

// DeleteObject removes the object and reports whether it existed.
func (s *BlobStore) DeleteObject(_ context.Context, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, storage.ErrPathRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failPaths[path]; err != nil {
		return false, err
	}
	_, ok := s.data[path]
	delete(s.data, path)
	return ok, nil
}

// Object returns a copy of the stored content.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Paths lists stored object paths in sorted order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for p := range s.data {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FailOn makes every operation on path return err. A nil err clears it.
func (s *BlobStore) FailOn(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failPaths, path)
		return
	}
	s.failPaths[path] = err
}
