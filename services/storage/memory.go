package storagesvc

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

// MemoryStorage keeps files in process memory. Used in development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	baseURL string
	files   map[string]File
}

type File struct {
	Content     []byte
	ContentType string
}

var _ core.FileStorage = (*MemoryStorage)(nil)

func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "http://localhost/media"
	}
	return &MemoryStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		files:   make(map[string]File),
	}
}

func (s *MemoryStorage) Put(_ context.Context, key string, r io.Reader, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", errors.New("empty key")
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", key)
	}
	s.mu.Lock()
	s.files[key] = File{Content: content, ContentType: contentType}
	s.mu.Unlock()
	return s.baseURL + "/" + key, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.files, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) KeyFromURL(url string) string {
	return keyFromURL(s.baseURL, url)
}

// Get returns the file stored under key.
func (s *MemoryStorage) Get(key string) (File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[key]
	return f, ok
}

func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
