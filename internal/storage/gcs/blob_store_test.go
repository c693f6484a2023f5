package gcs

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	gcstorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/hotterms/internal/storage"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Request:    r,
	}
}

func newTestClient(t *testing.T, rt roundTripperFunc) *gcstorage.Client {
	t.Helper()
	client, err := gcstorage.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusOK, `{}`), nil
	})
	_, err = New(client, Config{})
	assert.Error(t, err)
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	var gotBody []byte
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		if r.Body != nil {
			gotBody, _ = io.ReadAll(r.Body)
		}
		return jsonResponse(r, http.StatusOK, `{"bucket":"terms-bucket","name":"runs/a@b.com.txt"}`), nil
	})

	store, err := New(client, Config{Bucket: "terms-bucket", Prefix: "/runs/"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "a@b.com.txt", storage.ContentTypeText, bytes.NewReader([]byte("X\nY\n")))
	require.NoError(t, err)
	assert.Equal(t, "gs://terms-bucket/runs/a@b.com.txt", uri)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Contains(t, gotPath, "/b/terms-bucket/o")
	assert.Contains(t, string(gotBody), "X\nY\n")
}

func TestDeleteObject(t *testing.T) {
	t.Parallel()

	status := http.StatusNoContent
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if status == http.StatusNotFound {
			return jsonResponse(r, status, `{"error":{"code":404,"message":"No such object"}}`), nil
		}
		return jsonResponse(r, status, ``), nil
	})
	store, err := New(client, Config{Bucket: "terms-bucket"})
	require.NoError(t, err)

	existed, err := store.DeleteObject(context.Background(), "a@b.com.txt")
	require.NoError(t, err)
	assert.True(t, existed)

	status = http.StatusNotFound
	existed, err = store.DeleteObject(context.Background(), "a@b.com.txt")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestObjectNameRejectsTraversal(t *testing.T) {
	t.Parallel()

	store := &BlobStore{bucket: "b", prefix: "out"}
	_, err := store.objectName("../x.txt")
	assert.ErrorIs(t, err, storage.ErrPathTraversal)
	_, err = store.objectName("")
	assert.ErrorIs(t, err, storage.ErrPathRequired)

	name, err := store.objectName("default.txt")
	require.NoError(t, err)
	assert.Equal(t, "out/default.txt", name)
}
