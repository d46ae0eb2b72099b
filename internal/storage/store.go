package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidPath is returned for paths that climb above the store root.
	ErrInvalidPath = errors.New("path escapes store root")
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store is the object access a table reader needs. Paths are slash separated
// and relative to the store root.
type Store interface {
	// List returns the objects directly under dir, in no particular order.
	List(ctx context.Context, dir string) ([]ObjectInfo, error)
	Read(ctx context.Context, p string) ([]byte, error)
	ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error)
	Stat(ctx context.Context, p string) (ObjectInfo, error)
}

// Join joins store path elements.
func Join(elem ...string) string {
	return strings.TrimPrefix(path.Join(elem...), "/")
}

// CleanPath normalises a path relative to the store root and rejects paths
// that climb above it.
func CleanPath(p string) (string, error) {
	c := path.Clean(strings.TrimLeft(p, "/"))
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	if c == "." {
		return "", nil
	}
	return c, nil
}

// scoped joins p under base. p is anchored first, so ".." never leaves base.
func scoped(base, p string) string {
	return Join(base, path.Clean("/"+p))
}

// dirPrefix turns a directory into a listing prefix ending in a slash.
func dirPrefix(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return ""
	}
	return dir + "/"
}

// directChild reports whether key lies directly under prefix.
func directChild(prefix, key string) bool {
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	rest := key[len(prefix):]
	return rest != "" && !strings.Contains(rest, "/")
}

func rangeHeader(offset, length int64) string {
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}
