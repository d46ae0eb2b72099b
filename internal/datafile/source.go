package datafile

import (
	"context"
	"errors"

	"github.com/xitongsys/parquet-go/source"

	"delta-gateway/internal/storage"
)

var errReadOnly = errors.New("data files are read-only")

// storeFile adapts storage.InputFile to the parquet-go source interface.
// Every Open returns an independent cursor so column readers can run in
// parallel.
type storeFile struct {
	*storage.InputFile
	ctx   context.Context
	store storage.Store
}

var _ source.ParquetFile = (*storeFile)(nil)

func openStoreFile(ctx context.Context, store storage.Store, p string) (*storeFile, error) {
	f, err := storage.OpenInputFile(ctx, store, p)
	if err != nil {
		return nil, err
	}
	return &storeFile{InputFile: f, ctx: ctx, store: store}, nil
}

func (f *storeFile) Open(name string) (source.ParquetFile, error) {
	if name == "" || name == f.Path() {
		return &storeFile{InputFile: f.Reopen(), ctx: f.ctx, store: f.store}, nil
	}
	return openStoreFile(f.ctx, f.store, name)
}

func (f *storeFile) Create(string) (source.ParquetFile, error) {
	return nil, errReadOnly
}

func (f *storeFile) Write([]byte) (int, error) {
	return 0, errReadOnly
}
