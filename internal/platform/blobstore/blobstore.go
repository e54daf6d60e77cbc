// Package blobstore stores provider data snapshots in an S3-compatible object
// store. It defines the Store interface, an in-memory implementation for
// development and tests, a MinIO-backed implementation, and a helper that
// streams an object over HTTP.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrBlobTooLarge    = errors.New("blob exceeds maximum allowed size")
	ErrMissingKey      = errors.New("blob key is required")
	ErrInvalidLocation = errors.New("invalid blob location")
)

// MaxObjectSize bounds a single stored object.
const MaxObjectSize = 64 * units.MiB

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// Object describes a stored blob.
type Object struct {
	Key         string            `json:"key"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Hash        string            `json:"hash,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Store is the contract for blob storage backends.
type Store interface {
	Put(ctx context.Context, key, contentType string, content io.Reader, size int64, meta map[string]string) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Stat(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]*Object, error)
	// Location is the s3:// URI recorded for key.
	Location(key string) string
	Ping(ctx context.Context) error
}

// Location formats the s3:// URI for key in bucket.
func Location(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// ParseLocation returns the object key of an s3:// URI in bucket.
func ParseLocation(bucket, loc string) (string, error) {
	prefix := "s3://" + bucket + "/"
	if !strings.HasPrefix(loc, prefix) {
		return "", fmt.Errorf("%w: %q is not in bucket %s", ErrInvalidLocation, loc, bucket)
	}
	key := strings.TrimPrefix(loc, prefix)
	if key == "" {
		return "", fmt.Errorf("%w: %q has no key", ErrInvalidLocation, loc)
	}
	return key, nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrMissingKey
	}
	if path.Clean("/"+key) != "/"+key {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	object  Object
	content []byte
}

// InMemoryStore is a thread-safe in-memory Store.
type InMemoryStore struct {
	bucket string
	mu     sync.RWMutex
	blobs  map[string]*storedBlob
}

// NewInMemoryStore returns a ready-to-use InMemoryStore reporting locations
// in bucket.
func NewInMemoryStore(bucket string) *InMemoryStore {
	return &InMemoryStore{
		bucket: bucket,
		blobs:  make(map[string]*storedBlob),
	}
}

// Put reads the content, computes a SHA-256 hash and stores it under key,
// replacing any previous object.
func (s *InMemoryStore) Put(_ context.Context, key, contentType string, content io.Reader, _ int64, meta map[string]string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxObjectSize {
		return nil, ErrBlobTooLarge
	}

	h := sha256.Sum256(data)
	obj := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", h),
		CreatedAt:   time.Now().UTC(),
		Metadata:    copyMeta(meta),
	}

	s.mu.Lock()
	s.blobs[key] = &storedBlob{object: obj, content: data}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	obj := blob.object
	return io.NopCloser(bytes.NewReader(blob.content)), &obj, nil
}

func (s *InMemoryStore) Stat(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	obj := blob.object
	return &obj, nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// List returns objects whose key starts with prefix, ordered by key.
func (s *InMemoryStore) List(_ context.Context, prefix string) ([]*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Object
	for key, blob := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			obj := blob.object
			out = append(out, &obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *InMemoryStore) Location(key string) string {
	return Location(s.bucket, key)
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func copyMeta(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

// Serve streams the object stored under key as an attachment named filename.
func Serve(c echo.Context, store Store, key, filename string) error {
	rc, obj, err := store.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "snapshot not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()

	h := c.Response().Header()
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if obj.Size > 0 {
		h.Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	}
	if obj.Hash != "" {
		h.Set("ETag", `"`+obj.Hash+`"`)
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, rc)
}
