package storage

import (
	"context"
	"fmt"
)

// Backend names accepted in configuration.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendS3     = "s3"
	BackendMinIO  = "minio"
	BackendAzure  = "azure"
	BackendHDFS   = "hdfs"
	BackendOSS    = "oss"
	BackendCOS    = "cos"
)

// Config selects and configures one storage backend.
type Config struct {
	Backend string      `mapstructure:"backend" validate:"required,oneof=local memory s3 minio azure hdfs oss cos"`
	Root    string      `mapstructure:"root"`
	S3      S3Config    `mapstructure:"s3"`
	MinIO   MinIOConfig `mapstructure:"minio"`
	Azure   AzureConfig `mapstructure:"azure"`
	HDFS    HDFSConfig  `mapstructure:"hdfs"`
	OSS     OSSConfig   `mapstructure:"oss"`
	COS     COSConfig   `mapstructure:"cos"`
}

// NewFromConfig builds the configured backend.
func NewFromConfig(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocalStore(cfg.Root)
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendS3:
		return NewS3Store(ctx, cfg.S3)
	case BackendMinIO:
		return NewMinIOStore(cfg.MinIO)
	case BackendAzure:
		return NewAzureStore(cfg.Azure)
	case BackendHDFS:
		return NewHDFSStore(cfg.HDFS)
	case BackendOSS:
		return NewOSSStore(cfg.OSS)
	case BackendCOS:
		return NewCOSStore(cfg.COS)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
