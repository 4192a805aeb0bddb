package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/katha/internal/errors"
)

// FS stores blobs under Root and serves them at BaseURL + "/" + key.
type FS struct {
	Root    string
	BaseURL string
}

// NewFS returns a filesystem blob store, creating root if needed.
func NewFS(root, baseURL string) (*FS, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, err
	}
	return &FS{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes body to key, replacing any existing object. The write goes
// through a temp file and rename so readers never see partial audio.
func (s *FS) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return "", errors.NewInternal(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", errors.NewInternal(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: body}); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", errors.NewInternal(err)
	}
	return s.BaseURL + "/" + key, nil
}

// Open returns a reader for key.
func (s *FS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.Root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("media", key)
		}
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

// KeyForURL strips BaseURL from url.
func (s *FS) KeyForURL(url string) (string, bool) {
	prefix := s.BaseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key, err := CleanKey(strings.TrimPrefix(url, prefix))
	if err != nil {
		return "", false
	}
	return key, true
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
