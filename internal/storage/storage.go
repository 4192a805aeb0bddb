// Package storage holds capsule audio behind a small blob interface with
// filesystem and S3 backends.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/hpungsan/katha/internal/errors"
)

// AudioContentType is the MIME type of recorded capsule audio.
const AudioContentType = "audio/m4a"

// Blob stores and retrieves objects by key. Put has upsert semantics and
// returns the object's public URL.
type Blob interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// KeyForURL maps a URL previously returned by Put back to its key.
	KeyForURL(url string) (string, bool)
}

// AudioKey returns the storage key for a capsule's audio: <writer>/<capsule>.m4a.
func AudioKey(writerID, capsuleID string) string {
	return writerID + "/" + capsuleID + ".m4a"
}

// ParseAudioKey splits a key built by AudioKey. ok is false for any other
// key shape.
func ParseAudioKey(key string) (writerID, capsuleID string, ok bool) {
	key, err := CleanKey(key)
	if err != nil {
		return "", "", false
	}
	writerID, file, found := strings.Cut(key, "/")
	if !found || strings.Contains(file, "/") {
		return "", "", false
	}
	capsuleID, found = strings.CutSuffix(file, ".m4a")
	if !found || capsuleID == "" {
		return "", "", false
	}
	return writerID, capsuleID, true
}

// CleanKey validates a key and returns its canonical form. Keys are
// slash-separated relative paths with no "." or ".." segments.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", errors.NewInvalidField("key", "must be a relative slash-separated path")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", errors.NewInvalidField("key", "must not contain empty, '.' or '..' segments")
		}
	}
	return path.Clean(key), nil
}

// Fetcher retrieves audio by URL. Keys owned by Blob are read directly;
// anything else must be an https URL on one of AllowedHosts.
type Fetcher struct {
	Blob         Blob
	HTTP         *http.Client
	AllowedHosts []string
}

// FetchAudio opens the audio at rawURL.
func (f *Fetcher) FetchAudio(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if f.Blob != nil {
		if key, ok := f.Blob.KeyForURL(rawURL); ok {
			return f.Blob.Open(ctx, key)
		}
	}
	if !f.remoteAllowed(rawURL) {
		return nil, errors.NewInvalidField("audio_url", "must be stored media or an https URL on an allowed host")
	}
	client := http.Client{}
	if f.HTTP != nil {
		client = *f.HTTP
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("fetch audio: stopped after %d redirects", len(via))
		}
		if !f.remoteAllowed(req.URL.String()) {
			return errors.NewInvalidField("audio_url", "redirects to a host that is not allowed")
		}
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewInvalidField("audio_url", err.Error())
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (f *Fetcher) remoteAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.User != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range f.AllowedHosts {
		if host != "" && strings.EqualFold(strings.TrimSpace(h), host) {
			return true
		}
	}
	return false
}
