package delta

import (
	"context"

	"golang.org/x/sync/errgroup"

	"delta-gateway/internal/logging"
	"delta-gateway/internal/storage"
)

type options struct {
	caps        Capabilities
	concurrency int
}

// Option configures Open.
type Option func(*options)

// WithCapabilities sets the reader capabilities checked by the protocol gate.
func WithCapabilities(c Capabilities) Option {
	return func(o *options) { o.caps = c }
}

// WithConcurrency sets how many commit files are fetched at once.
// Commits are still applied in version order.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func buildOptions(opts []Option) options {
	o := options{caps: DefaultCapabilities(), concurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return o
}

// Open resolves req against the log of the table at tableRoot and returns its
// snapshot. A table whose protocol is unsupported still yields a snapshot;
// its file listing returns the gate error.
func Open(ctx context.Context, store storage.Store, tableRoot string, req RequestedVersion, opts ...Option) (*Snapshot, error) {
	files, err := ListLog(ctx, store, tableRoot)
	if err != nil {
		return nil, err
	}
	seg, err := LocateSegment(files, req)
	if err != nil {
		return nil, err
	}
	return Load(ctx, store, tableRoot, seg, opts...)
}

// Load replays an already located segment.
func Load(ctx context.Context, store storage.Store, tableRoot string, seg *LogSegment, opts ...Option) (*Snapshot, error) {
	o := buildOptions(opts)

	cpVersion := int64(-1)
	var cpActions []Action
	if seg.Checkpoint != nil {
		cpVersion = seg.Checkpoint.Version
		var err error
		if cpActions, err = LoadCheckpoint(ctx, store, seg.Checkpoint); err != nil {
			return nil, err
		}
	}
	logging.Debugf(ctx, "table %s: version %d from checkpoint %d with %d commits",
		tableRoot, seg.Version, cpVersion, len(seg.Commits))

	commits, err := fetchCommits(ctx, store, seg.Commits, o.concurrency)
	if err != nil {
		return nil, err
	}

	state := Replay(cpVersion, cpActions, commits)
	snap, err := newSnapshot(tableRoot, seg, state, o.caps)
	if err != nil {
		return nil, err
	}
	if gate := snap.Readable(); gate != nil {
		logging.Debugf(ctx, "table %s: version %d is not readable: %v", tableRoot, snap.Version(), gate)
	}
	return snap, nil
}

// fetchCommits reads and decodes commit files with up to limit in flight.
// The result is in the order of files. Every file is attempted unless ctx is
// cancelled, so on failure the error of the lowest failing version is
// returned regardless of scheduling.
func fetchCommits(ctx context.Context, store storage.Store, files []LogFile, limit int) ([]*Commit, error) {
	commits := make([]*Commit, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := store.Read(ctx, f.Path)
			if err != nil {
				errs[i] = storageError(f.Path, f.Version, err)
				return nil
			}
			if commits[i], err = DecodeCommit(f.Path, f.Version, data); err != nil {
				errs[i] = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return commits, nil
}
