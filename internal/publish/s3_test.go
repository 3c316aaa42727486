package publish

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedObject struct {
	path    string
	body    string
	headers http.Header
}

// fakeS3 accepts bucket existence checks and object uploads.
type fakeS3 struct {
	*httptest.Server
	mu      sync.Mutex
	heads   int
	objects []storedObject
}

func newFakeS3(t *testing.T) *fakeS3 {
	t.Helper()
	f := &fakeS3{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodHead:
			f.heads++
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			f.objects = append(f.objects, storedObject{path: r.URL.Path, body: string(body), headers: r.Header.Clone()})
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeS3) endpoint() string {
	return strings.TrimPrefix(f.URL, "http://")
}

func TestNewS3Publisher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantErr string
	}{
		{"Missing endpoint", S3Config{AccessKey: "a", SecretKey: "b", Bucket: "c"}, "endpoint is required"},
		{"Missing credentials", S3Config{Endpoint: "localhost:9000", Bucket: "c"}, "access key and secret key are required"},
		{"Missing bucket", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Publisher(tt.cfg, nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	p, err := NewS3Publisher(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "c"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", p.region)
}

func TestObjectKey(t *testing.T) {
	p, err := NewS3Publisher(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "c", Prefix: "/static/v1/"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "static/v1/abc.js", p.ObjectKey("abc.js"))

	bare, err := NewS3Publisher(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "c"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc.js", bare.ObjectKey("abc.js"))
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name     string
		wantType string
		wantEnc  string
	}{
		{"abc123.js", "application/javascript", ""},
		{"abc123.css", "text/css", ""},
		{"abc123.css.gz", "text/css", "gzip"},
		{"abc123.js.zst", "application/javascript", "zstd"},
		{"abc123.unknownext", "application/octet-stream", ""},
	}
	for _, tt := range tests {
		gotType, gotEnc := ContentType(tt.name)
		assert.Equal(t, tt.wantType, gotType, tt.name)
		assert.Equal(t, tt.wantEnc, gotEnc, tt.name)
	}
}

func TestPublish(t *testing.T) {
	server := newFakeS3(t)
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "/public/build/js/abc123.js", []byte("app();"), 0o644))
	require.NoError(t, afero.WriteFile(memFs, "/public/build/js/abc123.js.gz", []byte("gzipped"), 0o644))

	p, err := NewS3Publisher(S3Config{
		Endpoint:  server.endpoint(),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "assets",
		Prefix:    "js",
	}, memFs, nil)
	require.NoError(t, err)

	ctx := context.Background()
	key, err := p.Publish(ctx, "/public/build/js/abc123.js")
	require.NoError(t, err)
	assert.Equal(t, "js/abc123.js", key)

	key, err = p.Publish(ctx, "/public/build/js/abc123.js.gz")
	require.NoError(t, err)
	assert.Equal(t, "js/abc123.js.gz", key)

	server.mu.Lock()
	defer server.mu.Unlock()

	assert.Equal(t, 1, server.heads, "bucket is checked once")
	require.Len(t, server.objects, 2)

	first := server.objects[0]
	assert.Equal(t, "/assets/js/abc123.js", first.path)
	assert.Contains(t, first.body, "app();")
	assert.Equal(t, CacheControl, first.headers.Get("Cache-Control"))
	assert.Equal(t, "application/javascript", first.headers.Get("Content-Type"))

	second := server.objects[1]
	assert.Contains(t, second.headers.Get("Content-Encoding"), "gzip")
}

func TestPublish_MissingFile(t *testing.T) {
	server := newFakeS3(t)
	p, err := NewS3Publisher(S3Config{
		Endpoint:  server.endpoint(),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "assets",
	}, afero.NewMemMapFs(), nil)
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), "/nope.js")
	require.Error(t, err)
}
