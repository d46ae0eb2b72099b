package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSConfig holds Aliyun OSS settings.
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	SecurityToken   string `mapstructure:"security_token"`
	BucketName      string `mapstructure:"bucket_name"`
	Prefix          string `mapstructure:"prefix"`
}

// OSSStore serves objects from an Aliyun OSS bucket. The SDK is not context
// aware; ctx is checked before each request.
type OSSStore struct {
	bucket *oss.Bucket
	config OSSConfig
}

// NewOSSStore creates an OSS backed store.
func NewOSSStore(cfg OSSConfig) (*OSSStore, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("endpoint and bucket name are required")
	}
	var opts []oss.ClientOption
	if cfg.SecurityToken != "" {
		opts = append(opts, oss.SecurityToken(cfg.SecurityToken))
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to open OSS bucket: %w", err)
	}
	return &OSSStore{bucket: bucket, config: cfg}, nil
}

func (s *OSSStore) key(p string) string {
	return scoped(s.config.Prefix, p)
}

func (s *OSSStore) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	prefix := dirPrefix(s.key(dir))
	var objects []ObjectInfo
	marker := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.bucket.ListObjects(oss.Prefix(prefix), oss.Delimiter("/"), oss.Marker(marker), oss.MaxKeys(1000))
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range result.Objects {
			if !directChild(prefix, obj.Key) {
				continue
			}
			objects = append(objects, ObjectInfo{
				Path:    Join(dir, obj.Key[len(prefix):]),
				Size:    obj.Size,
				ModTime: obj.LastModified,
			})
		}
		if !result.IsTruncated {
			return objects, nil
		}
		marker = result.NextMarker
	}
}

func (s *OSSStore) Read(ctx context.Context, p string) ([]byte, error) {
	return s.get(ctx, p)
}

func (s *OSSStore) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	return s.get(ctx, p, oss.Range(offset, offset+length-1))
}

func (s *OSSStore) get(ctx context.Context, p string, opts ...oss.Option) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := s.bucket.GetObject(s.key(p), opts...)
	if err != nil {
		return nil, mapOSSError(p, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", p, err)
	}
	return data, nil
}

func (s *OSSStore) Stat(ctx context.Context, p string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	header, err := s.bucket.GetObjectDetailedMeta(s.key(p))
	if err != nil {
		return ObjectInfo{}, mapOSSError(p, err)
	}
	info := ObjectInfo{Path: p}
	info.Size, _ = strconv.ParseInt(header.Get("Content-Length"), 10, 64)
	info.ModTime, _ = time.Parse(http.TimeFormat, header.Get("Last-Modified"))
	return info, nil
}

func mapOSSError(p string, err error) error {
	var serviceErr oss.ServiceError
	if errors.As(err, &serviceErr) && serviceErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return fmt.Errorf("failed to access object %s: %w", p, err)
}
