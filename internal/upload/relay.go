package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrUploadFailed = errors.New("upload failed")
	ErrEmptyFile    = errors.New("empty file")
)

// ObjectStore is the external storage the relay writes to.
type ObjectStore interface {
	PutObject(ctx context.Context, name string, body io.Reader, size int64, contentType string) error
	SignedURL(ctx context.Context, name string, expiry time.Duration) (string, error)
}

type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// Object describes one stored upload.
type Object struct {
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

// Observer is told the outcome of every relay call.
type Observer interface {
	ObserveUpload(result string, size int64, took time.Duration)
}

const (
	ResultStored   = "stored"
	ResultRejected = "rejected"
	ResultTimeout  = "timeout"
	ResultFailed   = "failed"
)

type Config struct {
	Prefix        string
	URLTTL        time.Duration
	Timeout       time.Duration
	Retries       int
	RetryInterval time.Duration
	Observer      Observer
}

type Relay struct {
	store ObjectStore
	cfg   Config
	now   func() time.Time
}

func NewRelay(store ObjectStore, cfg Config) *Relay {
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 7 * 24 * time.Hour
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}
	return &Relay{store: store, cfg: cfg, now: time.Now}
}

// Upload writes f under a freshly generated name and returns the stored
// object with a signed retrieval URL. Every call stores a new object.
func (r *Relay) Upload(ctx context.Context, f File) (Object, error) {
	start := time.Now()
	obj, err := r.upload(ctx, f)
	if r.cfg.Observer != nil {
		r.cfg.Observer.ObserveUpload(resultOf(err), f.Size, time.Since(start))
	}
	return obj, err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultStored
	case errors.Is(err, ErrEmptyFile):
		return ResultRejected
	case errors.Is(err, context.DeadlineExceeded):
		return ResultTimeout
	default:
		return ResultFailed
	}
}

func (r *Relay) upload(ctx context.Context, f File) (Object, error) {
	if f.Body == nil || f.Size <= 0 {
		return Object{}, ErrEmptyFile
	}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	contentType, err := detectContentType(f)
	if err != nil {
		return Object{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	name := r.objectName(f.Name)
	if err := r.put(ctx, name, f, contentType); err != nil {
		return Object{}, fmt.Errorf("%w: put %s: %w", ErrUploadFailed, name, err)
	}

	url, err := r.store.SignedURL(ctx, name, r.cfg.URLTTL)
	if err != nil {
		return Object{}, fmt.Errorf("%w: sign %s: %w", ErrUploadFailed, name, err)
	}
	if url == "" {
		return Object{}, fmt.Errorf("%w: store returned empty url for %s", ErrUploadFailed, name)
	}

	return Object{
		Name:         name,
		OriginalName: f.Name,
		ContentType:  contentType,
		Size:         f.Size,
		URL:          url,
	}, nil
}

func (r *Relay) put(ctx context.Context, name string, f File, contentType string) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.cfg.RetryInterval
	eb.Reset()

	var policy backoff.BackOff = backoff.WithMaxRetries(eb, uint64(max(r.cfg.Retries, 0)))
	policy = backoff.WithContext(policy, ctx)

	return backoff.Retry(func() error {
		if _, err := f.Body.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		return r.store.PutObject(ctx, name, f.Body, f.Size, contentType)
	}, policy)
}

func (r *Relay) objectName(original string) string {
	name := fmt.Sprintf("%d-%s-%s", r.now().UnixMilli(), uuid.NewString()[:8], sanitize(original))
	if r.cfg.Prefix == "" {
		return name
	}
	return path.Join(r.cfg.Prefix, name)
}

// detectContentType sniffs the body. The client's claim is kept only when
// the sniffed type or one of its parents matches it; otherwise the sniffed
// type is stored.
func detectContentType(f File) (string, error) {
	m, err := mimetype.DetectReader(f.Body)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := f.Body.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	claim := strings.TrimSpace(f.ContentType)
	if claim == "" {
		return m.String(), nil
	}
	for p := m; p != nil; p = p.Parent() {
		if p.Is(claim) {
			return claim, nil
		}
	}
	return m.String(), nil
}

func sanitize(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	clean = strings.Trim(clean, "._")
	if clean == "" {
		return "file"
	}
	return clean
}
