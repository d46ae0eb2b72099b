package delta

import (
	"context"
	"errors"

	"delta-gateway/internal/storage"
)

// LogDir returns the log directory of a table root.
func LogDir(tableRoot string) string {
	return storage.Join(tableRoot, LogDirName)
}

// ListLog lists and classifies the log directory of a table. A missing log
// directory yields an empty listing.
func ListLog(ctx context.Context, store storage.Store, tableRoot string) ([]LogFile, error) {
	objects, err := store.List(ctx, LogDir(tableRoot))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, storageError(LogDir(tableRoot), -1, err)
	}
	files := make([]LogFile, 0, len(objects))
	for _, obj := range objects {
		f, ok := ParseLogFile(obj.Path)
		if !ok {
			continue
		}
		f.Size, f.ModTime = obj.Size, obj.ModTime
		files = append(files, f)
	}
	return files, nil
}

func storageError(path string, version int64, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return newLogError(ErrStorageUnavailable, path, version, err)
}
