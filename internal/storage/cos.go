package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// COSConfig holds Tencent Cloud COS settings.
type COSConfig struct {
	SecretID   string        `mapstructure:"secret_id"`
	SecretKey  string        `mapstructure:"secret_key"`
	Region     string        `mapstructure:"region"` // e.g. ap-guangzhou
	BucketName string        `mapstructure:"bucket_name"`
	Prefix     string        `mapstructure:"prefix"`
	HTTPS      bool          `mapstructure:"https"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// COSStore serves objects from a COS bucket.
type COSStore struct {
	client *cos.Client
	config COSConfig
}

// NewCOSStore creates a COS backed store.
func NewCOSStore(cfg COSConfig) (*COSStore, error) {
	if cfg.Region == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("region and bucket name are required")
	}
	bucketURL, err := cos.NewBucketURL(cfg.BucketName, cfg.Region, cfg.HTTPS)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Timeout: timeout,
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})
	return &COSStore{client: client, config: cfg}, nil
}

func (s *COSStore) key(p string) string {
	return scoped(s.config.Prefix, p)
}

func (s *COSStore) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	prefix := dirPrefix(s.key(dir))
	var objects []ObjectInfo
	marker := ""
	for {
		result, _, err := s.client.Bucket.Get(ctx, &cos.BucketGetOptions{
			Prefix:    prefix,
			Delimiter: "/",
			Marker:    marker,
			MaxKeys:   1000,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range result.Contents {
			if !directChild(prefix, obj.Key) {
				continue
			}
			modTime, _ := time.Parse(time.RFC3339, obj.LastModified)
			objects = append(objects, ObjectInfo{
				Path:    Join(dir, obj.Key[len(prefix):]),
				Size:    obj.Size,
				ModTime: modTime,
			})
		}
		if !result.IsTruncated {
			return objects, nil
		}
		marker = result.NextMarker
	}
}

func (s *COSStore) Read(ctx context.Context, p string) ([]byte, error) {
	return s.get(ctx, p, nil)
}

func (s *COSStore) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	return s.get(ctx, p, &cos.ObjectGetOptions{Range: rangeHeader(offset, length)})
}

func (s *COSStore) get(ctx context.Context, p string, opts *cos.ObjectGetOptions) ([]byte, error) {
	resp, err := s.client.Object.Get(ctx, s.key(p), opts)
	if err != nil {
		return nil, mapCOSError(p, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", p, err)
	}
	return data, nil
}

func (s *COSStore) Stat(ctx context.Context, p string) (ObjectInfo, error) {
	resp, err := s.client.Object.Head(ctx, s.key(p), nil)
	if err != nil {
		return ObjectInfo{}, mapCOSError(p, err)
	}
	info := ObjectInfo{Path: p, Size: resp.ContentLength}
	info.ModTime, _ = time.Parse(http.TimeFormat, resp.Header.Get("Last-Modified"))
	return info, nil
}

func mapCOSError(p string, err error) error {
	if cos.IsNotFoundError(err) {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return fmt.Errorf("failed to access object %s: %w", p, err)
}
