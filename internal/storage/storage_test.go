package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/katha/internal/errors"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestAudioKey(t *testing.T) {
	require.Equal(t, "W1/01CAP.m4a", AudioKey("W1", "01CAP"))
}

func TestCleanKey(t *testing.T) {
	for _, ok := range []string{"a.m4a", "W1/01CAP.m4a", "a/b/c"} {
		_, err := CleanKey(ok)
		require.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "/abs", "../escape", "a/../b", "a//b", "a\\b", "a/./b"} {
		_, err := CleanKey(bad)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), "key %q: %v", bad, err)
	}
}

func TestFS_PutOpenUpsert(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "media")
	fs, err := NewFS(root, "http://localhost:8080/media/")
	require.NoError(t, err)

	url, err := fs.Put(ctx, AudioKey("W1", "C1"), AudioContentType, strings.NewReader("first"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/media/W1/C1.m4a", url)

	url2, err := fs.Put(ctx, AudioKey("W1", "C1"), AudioContentType, strings.NewReader("second"))
	require.NoError(t, err)
	require.Equal(t, url, url2)

	rc, err := fs.Open(ctx, "W1/C1.m4a")
	require.NoError(t, err)
	require.Equal(t, "second", readAll(t, rc))

	entries, err := os.ReadDir(filepath.Join(root, "W1"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files left behind")

	_, err = fs.Open(ctx, "W1/missing.m4a")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = fs.Put(ctx, "../outside", AudioContentType, strings.NewReader("x"))
	require.Error(t, err)
}

func TestFS_PutCanceled(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "http://localhost/media")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fs.Put(ctx, "W1/C1.m4a", AudioContentType, strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)

	_, err = fs.Open(context.Background(), "W1/C1.m4a")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFS_KeyForURL(t *testing.T) {
	fs := &FS{Root: t.TempDir(), BaseURL: "http://localhost:8080/media"}

	key, ok := fs.KeyForURL("http://localhost:8080/media/W1/C1.m4a")
	require.True(t, ok)
	require.Equal(t, "W1/C1.m4a", key)

	_, ok = fs.KeyForURL("https://elsewhere.example/W1/C1.m4a")
	require.False(t, ok)
	_, ok = fs.KeyForURL("http://localhost:8080/media/../secret")
	require.False(t, ok)
}

func TestFetcher(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFS(t.TempDir(), "http://katha.local/media")
	require.NoError(t, err)
	url, err := fs.Put(ctx, "W1/C1.m4a", AudioContentType, strings.NewReader("local audio"))
	require.NoError(t, err)

	remote := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.m4a" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("remote audio"))
	}))
	defer remote.Close()

	f := &Fetcher{Blob: fs, HTTP: remote.Client(), AllowedHosts: []string{"127.0.0.1"}}

	rc, err := f.FetchAudio(ctx, url)
	require.NoError(t, err)
	require.Equal(t, "local audio", readAll(t, rc))

	rc, err = f.FetchAudio(ctx, remote.URL+"/clip.m4a")
	require.NoError(t, err)
	require.Equal(t, "remote audio", readAll(t, rc))

	_, err = f.FetchAudio(ctx, remote.URL+"/missing.m4a")
	require.Error(t, err)
}

func TestFetcher_RejectsDisallowedURLs(t *testing.T) {
	var hits int
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("internal"))
	}))
	defer remote.Close()

	ctx := context.Background()
	for _, f := range []*Fetcher{
		{HTTP: remote.Client()},
		{HTTP: remote.Client(), AllowedHosts: []string{"127.0.0.1"}},
	} {
		for _, u := range []string{
			remote.URL + "/clip.m4a",
			"https://metadata.internal/latest",
			"file:///etc/passwd",
			"https://user:pw@127.0.0.1/clip.m4a",
		} {
			_, err := f.FetchAudio(ctx, u)
			require.True(t, errors.Is(err, errors.ErrInvalidRequest), "%s: %v", u, err)
		}
	}
	require.Zero(t, hits)
}

func TestFetcher_RejectsRedirectToDisallowedURL(t *testing.T) {
	var hits int
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer internal.Close()
	hop := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/secret", http.StatusFound)
	}))
	defer hop.Close()

	f := &Fetcher{HTTP: hop.Client(), AllowedHosts: []string{"127.0.0.1"}}
	_, err := f.FetchAudio(context.Background(), hop.URL+"/clip.m4a")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
	require.Zero(t, hits)
}

// fakeS3 serves path-style PutObject and GetObject for one bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/audio/")
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3_PutOpen(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	store, err := NewS3(ctx, S3Options{
		Bucket:          "audio",
		Region:          "ap-south-1",
		Endpoint:        srv.URL,
		PublicURL:       "http://katha.test/media/",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	url, err := store.Put(ctx, AudioKey("W1", "C1"), AudioContentType, strings.NewReader("voice"))
	require.NoError(t, err)
	require.Equal(t, "http://katha.test/media/W1/C1.m4a", url)
	require.Equal(t, "voice", string(fake.objects["W1/C1.m4a"]))
	require.Equal(t, AudioContentType, fake.types["W1/C1.m4a"])

	key, ok := store.KeyForURL(url)
	require.True(t, ok)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "voice", readAll(t, rc))

	_, err = store.Open(ctx, "W1/none.m4a")
	require.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Options{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestNewS3_RequiresPublicURL(t *testing.T) {
	_, err := NewS3(context.Background(), S3Options{Bucket: "b", Region: "eu-west-1", AccessKeyID: "k", SecretAccessKey: "s"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestS3_ObjectsArePrivate(t *testing.T) {
	var acl string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acl = r.Header.Get("X-Amz-Acl")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	store, err := NewS3(ctx, S3Options{
		Bucket:          "audio",
		Endpoint:        srv.URL,
		PublicURL:       "http://katha.test/media",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	url, err := store.Put(ctx, AudioKey("W1", "C1"), AudioContentType, strings.NewReader("voice"))
	require.NoError(t, err)
	require.Equal(t, "private", acl)
	require.False(t, strings.HasPrefix(url, srv.URL), "url %q points at the bucket", url)
}

func TestParseAudioKey(t *testing.T) {
	writer, id, ok := ParseAudioKey(AudioKey("W1", "01CAP"))
	require.True(t, ok)
	require.Equal(t, "W1", writer)
	require.Equal(t, "01CAP", id)

	for _, bad := range []string{"", "W1.m4a", "W1/.m4a", "W1/01CAP.mp3", "a/b/c.m4a", "../W1/01CAP.m4a"} {
		_, _, ok := ParseAudioKey(bad)
		require.False(t, ok, bad)
	}
}
