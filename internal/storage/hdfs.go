package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/colinmarc/hdfs/v2"
)

// HDFSConfig holds HDFS connection settings.
type HDFSConfig struct {
	NameNodes []string `mapstructure:"namenodes"`
	Username  string   `mapstructure:"username"`
	Root      string   `mapstructure:"root"`
}

// HDFSStore serves files from HDFS. The hdfs client has no context support;
// context cancellation is only checked between calls.
type HDFSStore struct {
	client *hdfs.Client
	config HDFSConfig
}

// NewHDFSStore connects to the configured NameNodes.
func NewHDFSStore(cfg HDFSConfig) (*HDFSStore, error) {
	if len(cfg.NameNodes) == 0 {
		return nil, fmt.Errorf("at least one NameNode is required")
	}
	client, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: cfg.NameNodes,
		User:      cfg.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HDFS client: %w", err)
	}
	return &HDFSStore{client: client, config: cfg}, nil
}

// Close closes the HDFS client.
func (s *HDFSStore) Close() error {
	return s.client.Close()
}

func (s *HDFSStore) abs(p string) string {
	return "/" + scoped(s.config.Root, p)
}

func (s *HDFSStore) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.client.ReadDir(s.abs(dir))
	if err != nil {
		return nil, mapHDFSError(dir, err)
	}
	objects := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		objects = append(objects, ObjectInfo{
			Path:    Join(dir, e.Name()),
			Size:    e.Size(),
			ModTime: e.ModTime(),
		})
	}
	return objects, nil
}

func (s *HDFSStore) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.client.ReadFile(s.abs(p))
	if err != nil {
		return nil, mapHDFSError(p, err)
	}
	return data, nil
}

func (s *HDFSStore) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reader, err := s.client.Open(s.abs(p))
	if err != nil {
		return nil, mapHDFSError(p, err)
	}
	defer reader.Close()

	buf := make([]byte, length)
	n, err := reader.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read range of %s: %w", p, err)
	}
	return buf[:n], nil
}

func (s *HDFSStore) Stat(ctx context.Context, p string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	fi, err := s.client.Stat(s.abs(p))
	if err != nil {
		return ObjectInfo{}, mapHDFSError(p, err)
	}
	return ObjectInfo{Path: p, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func mapHDFSError(p string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return fmt.Errorf("failed to access %s: %w", p, err)
}
