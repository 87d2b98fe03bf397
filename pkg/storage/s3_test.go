package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.objects[r.URL.Path] = body
	f.types[r.URL.Path] = r.Header.Get("Content-Type")
	f.mu.Unlock()

	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func TestS3Store_Put(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()

	store, err := NewS3Store(context.Background(), Config{
		Bucket:             "audio",
		Endpoint:           srv.URL,
		Region:             "eu-central-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
	})
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "luna/s1/m1.mp3", []byte("ID3audio"), "audio/mpeg")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/audio/luna/s1/m1.mp3", url)
	assert.Equal(t, []byte("ID3audio"), bucket.objects["/audio/luna/s1/m1.mp3"])
	assert.Equal(t, "audio/mpeg", bucket.types["/audio/luna/s1/m1.mp3"])
}

func TestS3Store_UploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), Config{
		Bucket: "audio", Endpoint: srv.URL, Region: "eu-central-1",
		AWSAccessKeyID: "test", AWSSecretAccessKey: "test",
	})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "x.mp3", []byte("x"), "audio/mpeg")
	assert.Error(t, err)
}

func TestPublicBase(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"public url wins", Config{Bucket: "b", Endpoint: "https://r2.example.com", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com"},
		{"custom endpoint", Config{Bucket: "b", Endpoint: "https://r2.example.com/"}, "https://r2.example.com/b"},
		{"aws", Config{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicBase(tt.cfg))
		})
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), Config{})
	assert.Error(t, err)
}
