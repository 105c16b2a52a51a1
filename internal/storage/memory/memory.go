// Package memory is an in-process object store used for local runs and tests.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

var ErrNotFound = errors.New("object not found")

type object struct {
	data        []byte
	contentType string
}

type Store struct {
	bucket string
	now    func() time.Time

	mu      sync.RWMutex
	objects map[string]object
}

func New(bucket string) *Store {
	return &Store{bucket: bucket, now: time.Now, objects: make(map[string]object)}
}

func (s *Store) PutObject(ctx context.Context, name string, body io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if size >= 0 && int64(buf.Len()) != size {
		return fmt.Errorf("short write: got %d bytes, want %d", buf.Len(), size)
	}

	s.mu.Lock()
	s.objects[name] = object{data: buf.Bytes(), contentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *Store) RemoveObject(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, name)
	s.mu.Unlock()
	return nil
}

// SignedURL returns memory://<bucket>/<name>?expires=<unix>.
func (s *Store) SignedURL(ctx context.Context, name string, expiry time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	_, ok := s.objects[name]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	u := url.URL{
		Scheme:   "memory",
		Host:     s.bucket,
		Path:     "/" + name,
		RawQuery: url.Values{"expires": {strconv.FormatInt(s.now().Add(expiry).Unix(), 10)}}.Encode(),
	}
	return u.String(), nil
}

// Fetch dereferences a URL produced by SignedURL.
func (s *Store) Fetch(rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", err
	}
	if u.Scheme != "memory" || u.Host != s.bucket {
		return nil, "", fmt.Errorf("foreign url %q", rawURL)
	}
	exp, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("bad expires: %w", err)
	}
	if s.now().Unix() > exp {
		return nil, "", errors.New("url expired")
	}

	s.mu.RLock()
	obj, ok := s.objects[strings.TrimPrefix(u.Path, "/")]
	s.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotFound
	}
	return bytes.Clone(obj.data), obj.contentType, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
