package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds MinIO connection settings.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Token     string `mapstructure:"token"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Secure    bool   `mapstructure:"secure"`
}

// MinIOStore serves objects from a MinIO bucket.
type MinIOStore struct {
	client *minio.Client
	config MinIOConfig
}

// NewMinIOStore creates a MinIO backed store.
func NewMinIOStore(cfg MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.Token),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIOStore{client: client, config: cfg}, nil
}

func (s *MinIOStore) key(p string) string {
	return scoped(s.config.Prefix, p)
}

func (s *MinIOStore) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := dirPrefix(s.key(dir))
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.config.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if !directChild(prefix, obj.Key) {
			continue
		}
		objects = append(objects, ObjectInfo{
			Path:    Join(dir, obj.Key[len(prefix):]),
			Size:    obj.Size,
			ModTime: obj.LastModified,
		})
	}
	return objects, nil
}

func (s *MinIOStore) Read(ctx context.Context, p string) ([]byte, error) {
	return s.get(ctx, p, minio.GetObjectOptions{})
}

func (s *MinIOStore) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(offset, offset+length-1); err != nil {
		return nil, err
	}
	return s.get(ctx, p, opts)
}

func (s *MinIOStore) get(ctx context.Context, p string, opts minio.GetObjectOptions) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.config.Bucket, s.key(p), opts)
	if err != nil {
		return nil, mapMinIOError(p, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinIOError(p, err)
	}
	return data, nil
}

func (s *MinIOStore) Stat(ctx context.Context, p string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.config.Bucket, s.key(p), minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapMinIOError(p, err)
	}
	return ObjectInfo{Path: p, Size: info.Size, ModTime: info.LastModified}, nil
}

func mapMinIOError(p string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return fmt.Errorf("failed to access object %s: %w", p, err)
}
