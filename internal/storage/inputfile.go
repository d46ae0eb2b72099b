package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrClosed is returned by operations on a closed InputFile.
var ErrClosed = errors.New("file is closed")

// InputFile is a random access reader over one object. Reads are served with
// ranged requests against the store.
type InputFile struct {
	ctx    context.Context
	store  Store
	path   string
	size   int64
	pos    int64
	closed bool
}

// OpenInputFile stats p and returns a reader positioned at offset 0.
func OpenInputFile(ctx context.Context, store Store, p string) (*InputFile, error) {
	info, err := store.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	return &InputFile{ctx: ctx, store: store, path: p, size: info.Size}, nil
}

// Path returns the object path.
func (f *InputFile) Path() string { return f.path }

// Size returns the object size in bytes.
func (f *InputFile) Size() int64 { return f.size }

// Reopen returns an independent reader over the same object.
func (f *InputFile) Reopen() *InputFile {
	return &InputFile{ctx: f.ctx, store: f.store, path: f.path, size: f.size}
}

func (f *InputFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *InputFile) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= f.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	want := min(int64(len(p)), f.size-off)
	data, err := f.store.ReadRange(f.ctx, f.path, off, want)
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *InputFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = f.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek to negative position %d", abs)
	}
	f.pos = abs
	return abs, nil
}

func (f *InputFile) Close() error {
	f.closed = true
	return nil
}
