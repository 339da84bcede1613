package storagesvc

import (
	"context"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

type ossStorage struct {
	bucket  *oss.Bucket
	baseURL string
}

var _ core.FileStorage = (*ossStorage)(nil)

// NewOSSStorage stores files in an Alibaba Cloud OSS bucket.
// Files are served from conf.PublicBaseURL, or from the bucket's own domain when unset.
func NewOSSStorage(conf core.StorageConfig) (core.FileStorage, error) {
	if conf.OSSEndpoint == "" || conf.OSSAccessKey == "" || conf.OSSSecretKey == "" || conf.OSSBucket == "" {
		return nil, errors.New("oss: endpoint, access key, secret key and bucket are required")
	}
	client, err := oss.New(conf.OSSEndpoint, conf.OSSAccessKey, conf.OSSSecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "oss.New")
	}
	bucket, err := client.Bucket(conf.OSSBucket)
	if err != nil {
		return nil, errors.Wrap(err, "oss.Bucket")
	}

	baseURL := conf.PublicBaseURL
	if baseURL == "" {
		host := strings.TrimPrefix(strings.TrimPrefix(conf.OSSEndpoint, "https://"), "http://")
		baseURL = "https://" + conf.OSSBucket + "." + strings.TrimRight(host, "/")
	}
	return &ossStorage{bucket: bucket, baseURL: baseURL}, nil
}

func (s *ossStorage) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", errors.New("empty key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	err := s.bucket.PutObject(key, r,
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
	)
	if err != nil {
		return "", errors.Wrapf(err, "putting %s", key)
	}
	return s.baseURL + "/" + key, nil
}

func (s *ossStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return errors.Wrapf(err, "deleting %s", key)
	}
	return nil
}

func (s *ossStorage) KeyFromURL(url string) string {
	return keyFromURL(s.baseURL, url)
}

func keyFromURL(baseURL, url string) string {
	prefix := baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	key := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key
}
