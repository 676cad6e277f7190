package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarly_library/internal/platform/config"
	infrahttp "scholarly_library/internal/platform/http"
)

// fakeS3 は path-style の PUT / DELETE / HEAD のみを受け付ける最小限のS3互換サーバーです。
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = b
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T) (*S3, *fakeS3, string) {
	t.Helper()

	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3(context.Background(), config.S3Config{
		Bucket:    "papers",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "secret",
	}, infrahttp.NewHTTPClient(5*time.Second))
	require.NoError(t, err)
	return store, fake, srv.URL
}

func TestS3_SaveAndDelete(t *testing.T) {
	store, fake, endpoint := newTestS3(t)
	ctx := context.Background()
	data := []byte("%PDF-1.4 test body")

	url, err := store.Save(ctx, "paper-abc.pdf", data, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, endpoint+"/papers/paper-abc.pdf", url)

	fake.mu.Lock()
	stored, ok := fake.objects["/papers/paper-abc.pdf"]
	contentType := fake.types["/papers/paper-abc.pdf"]
	fake.mu.Unlock()
	require.True(t, ok, "object stored under path-style key")
	assert.True(t, bytes.Contains(stored, data))
	assert.Equal(t, "application/pdf", contentType)

	require.NoError(t, store.Delete(ctx, "paper-abc.pdf"))
	fake.mu.Lock()
	_, ok = fake.objects["/papers/paper-abc.pdf"]
	fake.mu.Unlock()
	assert.False(t, ok)
}

func TestS3_Ping(t *testing.T) {
	store, _, _ := newTestS3(t)

	assert.NoError(t, store.Ping(context.Background()))
}

func TestS3_InvalidKey(t *testing.T) {
	store, _, _ := newTestS3(t)

	_, err := store.Save(context.Background(), "../x.pdf", []byte("x"), "application/pdf")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPublicBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.S3Config
		want string
	}{
		{"explicit public url", config.S3Config{PublicURL: "https://cdn.example.com/", Bucket: "b"}, "https://cdn.example.com"},
		{"custom endpoint", config.S3Config{Endpoint: "http://minio:9000/", Bucket: "b"}, "http://minio:9000/b"},
		{"aws virtual host", config.S3Config{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, publicBaseURL(tt.cfg))
		})
	}
}
