// Package blobstore stores uploaded material files. It defines the
// BlobStore interface, a local-disk implementation rooted at MEDIA_ROOT and
// an in-memory implementation for tests.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
	ErrEmptyFile       = errors.New("the submitted file is empty")
	ErrInvalidKey      = errors.New("invalid blob key")
)

// MaxKeyLength matches the width of the material.file column.
const MaxKeyLength = 255

// BlobStore persists file content under opaque keys.
type BlobStore interface {
	// Put stores content under a fresh key inside dir and returns the key.
	Put(ctx context.Context, dir, fileName string, content io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the public path of key, e.g. /media/materials/abc.pdf.
	URL(key string) string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFileName reduces a client supplied name to a safe base name.
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "._")
}

// newKey builds dir/<uuid>_<name>, truncating the name so the key fits
// MaxKeyLength. The extension is kept.
func newKey(dir, fileName string) (string, error) {
	name := sanitizeFileName(fileName)
	if name == "" {
		return "", ErrMissingFileName
	}
	prefix := uuid.NewString() + "_"
	if dir != "" {
		prefix = strings.Trim(dir, "/") + "/" + prefix
	}
	if room := MaxKeyLength - len(prefix); len(name) > room {
		ext := path.Ext(name)
		if len(ext) >= room {
			ext = ""
		}
		name = name[:room-len(ext)] + ext
	}
	return prefix + name, nil
}

// validKey rejects keys that could escape the store root.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

func joinURL(base, key string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + key
}

// LocalBlobStore writes files below a root directory.
type LocalBlobStore struct {
	root    string
	baseURL string
	maxSize int64
}

// NewLocalBlobStore creates root if needed. maxSize <= 0 disables the size
// check.
func NewLocalBlobStore(root, baseURL string, maxSize int64) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalBlobStore{root: root, baseURL: baseURL, maxSize: maxSize}, nil
}

// Root returns the directory served under the base URL.
func (s *LocalBlobStore) Root() string { return s.root }

func (s *LocalBlobStore) Put(_ context.Context, dir, fileName string, content io.Reader) (string, error) {
	key, err := newKey(dir, fileName)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}

	n, err := copyLimited(f, content, s.maxSize)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = ErrEmptyFile
	}
	if err != nil {
		os.Remove(full)
		return "", err
	}
	return key, nil
}

func (s *LocalBlobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (s *LocalBlobStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *LocalBlobStore) URL(key string) string {
	return joinURL(s.baseURL, key)
}

// copyLimited copies src to dst and fails with ErrFileTooLarge once more
// than max bytes arrive.
func copyLimited(dst io.Writer, src io.Reader, max int64) (int64, error) {
	if max <= 0 {
		n, err := io.Copy(dst, src)
		if err != nil {
			return n, fmt.Errorf("write blob: %w", err)
		}
		return n, nil
	}
	n, err := io.Copy(dst, io.LimitReader(src, max+1))
	if err != nil {
		return n, fmt.Errorf("write blob: %w", err)
	}
	if n > max {
		return n, ErrFileTooLarge
	}
	return n, nil
}

// InMemoryBlobStore is a thread-safe BlobStore for tests.
type InMemoryBlobStore struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	baseURL string
	maxSize int64
}

func NewInMemoryBlobStore(baseURL string, maxSize int64) *InMemoryBlobStore {
	return &InMemoryBlobStore{
		blobs:   make(map[string][]byte),
		baseURL: baseURL,
		maxSize: maxSize,
	}
}

func (s *InMemoryBlobStore) Put(_ context.Context, dir, fileName string, content io.Reader) (string, error) {
	key, err := newKey(dir, fileName)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	n, err := copyLimited(&buf, content, s.maxSize)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrEmptyFile
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = buf.Bytes()
	return key, nil
}

func (s *InMemoryBlobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *InMemoryBlobStore) URL(key string) string {
	return joinURL(s.baseURL, key)
}

// Has reports whether key is stored.
func (s *InMemoryBlobStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok
}

// Len returns the number of stored blobs.
func (s *InMemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
