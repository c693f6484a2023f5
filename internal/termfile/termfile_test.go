package termfile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/hotterms/internal/storage/memory"
	"github.com/JakeFAU/hotterms/internal/terms"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	set := terms.NewSet(terms.Batch{"X", "Y", "X", "multi\nline", "热搜", "multi line", "\n"})
	payload, lines := Encode(set)
	assert.Equal(t, "X\nY\nmulti line\n热搜\n", string(payload))
	assert.Equal(t, 4, lines)

	empty, lines := Encode(terms.Set{})
	assert.Empty(t, empty)
	assert.Zero(t, lines)
}

func TestWriteCountsEncodedLines(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	set := terms.NewSet(terms.Batch{"hot\nnews", "hot news", "other"})
	require.Equal(t, 3, set.Len())

	res, err := NewWriter(store, nil, nil).Write(context.Background(), "fold.txt", set)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Terms)

	data, ok := store.Object("fold.txt")
	require.True(t, ok)
	assert.Equal(t, "hot news\nother\n", string(data))
}

func TestWriteOverwritesAndHashes(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	core, logs := observer.New(zap.InfoLevel)
	w := NewWriter(store, SHA256, zap.New(core))
	ctx := context.Background()

	_, err := w.Write(ctx, AccountName("a@b.com"), terms.NewSet(terms.Batch{"old", "older"}))
	require.NoError(t, err)
	res, err := w.Write(ctx, AccountName("a@b.com"), terms.NewSet(terms.Batch{"X", "Y"}))
	require.NoError(t, err)

	data, ok := store.Object("a@b.com.txt")
	require.True(t, ok)
	assert.Equal(t, "X\nY\n", string(data))
	assert.Equal(t, "memory://a@b.com.txt", res.Location)
	assert.Equal(t, 2, res.Terms)

	assert.Equal(t, "77a8cbe80e80cc1ad328541bcdca81b63a8652ec48a64e18e08538eaa4fa5aff", res.Digest)
	assert.Equal(t, 2, logs.FilterMessage("Wrote term file").Len())
}

func TestSHA256(t *testing.T) {
	t.Parallel()

	got, err := SHA256.Hash(nil)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)

	failing := HasherFunc(func([]byte) (string, error) { return "", errors.New("no digest") })
	res, err := NewWriter(memory.NewBlobStore(), failing, nil).Write(context.Background(), "a.txt", terms.NewSet(terms.Batch{"a"}))
	require.NoError(t, err, "a hashing failure must not block the write")
	assert.Empty(t, res.Digest)
}

func TestWriteFailureIsReturned(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	boom := errors.New("permission denied")
	store.FailOn(DefaultName, boom)
	w := NewWriter(store, nil, nil)

	_, err := w.Write(context.Background(), DefaultName, terms.NewSet(terms.Batch{"a"}))
	require.ErrorIs(t, err, boom)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w := NewWriter(store, nil, nil)
	ctx := context.Background()

	removed, err := w.Remove(ctx, "gone.txt")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = w.Write(ctx, "gone.txt", terms.NewSet(terms.Batch{"a"}))
	require.NoError(t, err)
	removed, err = w.Remove(ctx, "gone.txt")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, store.Paths())

	boom := errors.New("io error")
	store.FailOn("bad.txt", boom)
	_, err = w.Remove(ctx, "bad.txt")
	require.ErrorIs(t, err, boom)
}

func TestAccountName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a@b.com.txt", AccountName("a@b.com"))
}
