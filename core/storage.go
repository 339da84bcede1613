package core

import (
	"context"
	"io"
	"time"
)

type (
	// FileStorage stores publicly readable files (e.g. profile pictures).
	FileStorage interface {
		// Put stores the content under key and returns its public URL.
		Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
		Delete(ctx context.Context, key string) error
		// KeyFromURL returns the key of a file from its public URL.
		KeyFromURL(url string) string
	}

	// Cache is a JSON value cache with expiry.
	Cache interface {
		// Get decodes the cached value into dest; found is false on a cache miss.
		Get(ctx context.Context, key string, dest interface{}) (found bool, err error)
		Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error
		Delete(ctx context.Context, keys ...string) error
	}
)
