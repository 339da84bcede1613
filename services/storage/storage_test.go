package storagesvc

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyFromURL(t *testing.T) {
	base := "https://bucket.oss-ap-southeast-1.aliyuncs.com"
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "plain", url: base + "/teachers/1/pic.webp", want: "teachers/1/pic.webp"},
		{name: "query string", url: base + "/teachers/1/pic.webp?v=2", want: "teachers/1/pic.webp"},
		{name: "other host", url: "https://example.com/teachers/1/pic.webp", want: ""},
		{name: "empty", url: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyFromURL(base, tt.url))
		})
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage("http://media.test/")

	url, err := s.Put(ctx, "/teachers/1/pic.webp", strings.NewReader("RIFF"), "image/webp")
	assert.NoError(t, err)
	assert.Equal(t, "http://media.test/teachers/1/pic.webp", url)

	key := s.KeyFromURL(url)
	assert.Equal(t, "teachers/1/pic.webp", key)
	f, ok := s.Get(key)
	if assert.True(t, ok) {
		assert.Equal(t, "RIFF", string(f.Content))
		assert.Equal(t, "image/webp", f.ContentType)
	}

	assert.NoError(t, s.Delete(ctx, key))
	assert.Equal(t, 0, s.Len())

	_, err = s.Put(ctx, "", strings.NewReader("x"), "")
	assert.Error(t, err)
}
