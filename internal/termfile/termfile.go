// Package termfile persists term sets as newline-delimited UTF-8 text, one term
// per line, on top of a storage.BlobStore.
package termfile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotterms/internal/logging"
	"github.com/JakeFAU/hotterms/internal/metrics"
	"github.com/JakeFAU/hotterms/internal/storage"
	"github.com/JakeFAU/hotterms/internal/terms"
)

// DefaultName is the destination of the shared fallback pool.
const DefaultName = "default.txt"

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// HasherFunc adapts a function to Hasher.
type HasherFunc func(data []byte) (string, error)

// Hash calls f(data).
func (f HasherFunc) Hash(data []byte) (string, error) {
	return f(data)
}

// SHA256 digests payloads as hex SHA-256.
var SHA256 Hasher = HasherFunc(func(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
})

// Result describes a completed write. Terms counts the lines written, which can
// be fewer than the set's length when folded terms collide.
type Result struct {
	Location string `json:"location"`
	Terms    int    `json:"terms"`
	Digest   string `json:"digest,omitempty"`
}

// Writer writes and removes term files.
type Writer struct {
	store  storage.BlobStore
	hasher Hasher
	logger *zap.Logger
}

// NewWriter builds a Writer. hasher may be nil.
func NewWriter(store storage.BlobStore, hasher Hasher, logger *zap.Logger) *Writer {
	return &Writer{
		store:  store,
		hasher: hasher,
		logger: logging.Component(logger, "termfile"),
	}
}

// AccountName returns the destination name for an account key.
func AccountName(email string) string {
	return email + ".txt"
}

// Encode renders terms one per line, each line newline-terminated, and returns
// the number of lines written. Embedded line breaks are folded to spaces so one
// term always occupies one line; a folded term that collides with an earlier
// line is dropped.
func Encode(set terms.Set) ([]byte, int) {
	var (
		buf  bytes.Buffer
		seen = make(map[string]struct{}, set.Len())
	)
	for _, term := range set.Terms() {
		line := foldLineBreaks(term)
		if _, dup := seen[line]; dup || line == "" {
			continue
		}
		seen[line] = struct{}{}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), len(seen)
}

func foldLineBreaks(term string) string {
	if !strings.ContainsAny(term, "\r\n") {
		return term
	}
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(term)), " ")
}

// Write overwrites the named destination with set.
func (w *Writer) Write(ctx context.Context, name string, set terms.Set) (Result, error) {
	payload, lines := Encode(set)
	log := w.logger.With(zap.String("path", name), zap.Int("terms", lines))

	var digest string
	if w.hasher != nil {
		d, err := w.hasher.Hash(payload)
		if err != nil {
			log.Warn("Failed to hash term file", zap.Error(err))
		}
		digest = d
	}

	location, err := w.store.PutObject(ctx, name, storage.ContentTypeText, bytes.NewReader(payload))
	if err != nil {
		metrics.ObserveDestination("write", "error")
		log.Error("Failed to write term file", zap.Error(err))
		return Result{}, fmt.Errorf("write %s: %w", name, err)
	}
	metrics.ObserveDestination("write", "success")
	log.Info("Wrote term file", zap.String("location", location), zap.String("sha256", digest))
	return Result{Location: location, Terms: lines, Digest: digest}, nil
}

// Remove deletes the named destination if it exists and reports whether it
// did.
func (w *Writer) Remove(ctx context.Context, name string) (bool, error) {
	log := w.logger.With(zap.String("path", name))
	existed, err := w.store.DeleteObject(ctx, name)
	if err != nil {
		metrics.ObserveDestination("remove", "error")
		log.Error("Failed to remove term file", zap.Error(err))
		return false, fmt.Errorf("remove %s: %w", name, err)
	}
	if !existed {
		metrics.ObserveDestination("remove", "absent")
		log.Debug("No term file to remove")
		return false, nil
	}
	metrics.ObserveDestination("remove", "success")
	log.Info("Removed stale term file")
	return true, nil
}
