package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AferoStore serves objects from an afero filesystem rooted at a directory.
// It covers local disks (afero.OsFs) and in-memory tables (afero.MemMapFs).
type AferoStore struct {
	fs afero.Fs
}

// NewAferoStore creates a store over fs. A non-empty root scopes all paths under it.
func NewAferoStore(fs afero.Fs, root string) *AferoStore {
	if root != "" {
		fs = afero.NewBasePathFs(fs, root)
	}
	return &AferoStore{fs: fs}
}

// NewLocalStore creates a store over the local filesystem.
func NewLocalStore(root string) (*AferoStore, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local root %q: %w", root, err)
	}
	return NewAferoStore(afero.NewOsFs(), abs), nil
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *AferoStore {
	return NewAferoStore(afero.NewMemMapFs(), "")
}

// Fs exposes the underlying filesystem.
func (s *AferoStore) Fs() afero.Fs {
	return s.fs
}

// WriteFile stores data at p, creating parent directories.
func (s *AferoStore) WriteFile(p string, data []byte) error {
	if err := s.fs.MkdirAll(parentDir(p), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, fsPath(p), data, 0o644)
}

func (s *AferoStore) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, fsPath(dir))
	if err != nil {
		return nil, mapFsError(err)
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

func (s *AferoStore) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, fsPath(p))
	if err != nil {
		return nil, mapFsError(err)
	}
	return data, nil
}

func (s *AferoStore) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(fsPath(p))
	if err != nil {
		return nil, mapFsError(err)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read range of %s: %w", p, err)
	}
	return buf[:n], nil
}

func (s *AferoStore) Stat(ctx context.Context, p string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	fi, err := s.fs.Stat(fsPath(p))
	if err != nil {
		return ObjectInfo{}, mapFsError(err)
	}
	if fi.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return ObjectInfo{Path: p, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func fsPath(p string) string {
	if p == "" {
		return "/"
	}
	return "/" + scoped("", p)
}

func parentDir(p string) string {
	dir := fsPath(p)
	for i := len(dir) - 1; i > 0; i-- {
		if dir[i] == '/' {
			return dir[:i]
		}
	}
	return "/"
}

func mapFsError(err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
