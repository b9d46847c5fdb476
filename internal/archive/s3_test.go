package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records path-style requests and answers every one with 200.
type fakeS3 struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) seen(req string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == req {
			return true
		}
	}
	return false
}

func TestPutUsesPathStyleKey(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	a, err := New(ctx, Config{
		Endpoint:  srv.URL,
		Bucket:    "docs-archive",
		AccessKey: "test",
		SecretKey: "test",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	assert.True(t, fake.seen("HEAD /docs-archive"))

	file := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(file, []byte("# guide"), 0644))

	require.NoError(t, a.Put(ctx, "proj/docs/guide.md", file))
	assert.True(t, fake.seen("PUT /docs-archive/proj/docs/guide.md"))
}

func TestPutMissingFile(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a, err := New(context.Background(), Config{
		Endpoint:  srv.URL,
		Bucket:    "docs-archive",
		AccessKey: "test",
		SecretKey: "test",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	err = a.Put(context.Background(), "proj/missing.md", filepath.Join(t.TempDir(), "missing.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, fake.seen("PUT /docs-archive/proj/missing.md"))
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "https://minio:9000", endpointURL("minio:9000", true))
	assert.Equal(t, "http://localhost:9000", endpointURL("http://localhost:9000", true))
	assert.Equal(t, "", endpointURL("", true))
}
