package delta

import (
	"context"
	"fmt"
	"sort"
	"time"

	"delta-gateway/internal/storage"
)

// CommitEntry describes one commit still present in the log.
type CommitEntry struct {
	Version   int64       `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Info      *CommitInfo `json:"commitInfo,omitempty"`
}

// History returns commits newest first. limit <= 0 returns every commit file
// found in the log directory.
func History(ctx context.Context, store storage.Store, tableRoot string, limit int, opts ...Option) ([]CommitEntry, error) {
	o := buildOptions(opts)
	files, err := ListLog(ctx, store, tableRoot)
	if err != nil {
		return nil, err
	}

	var commits []LogFile
	for _, f := range files {
		if f.Kind == KindCommit {
			commits = append(commits, f)
		}
	}
	if len(commits) == 0 {
		return nil, newLogError(ErrTableEmpty, LogDir(tableRoot), -1, nil)
	}
	sort.Slice(commits, func(i, j int) bool { return commits[i].Version > commits[j].Version })
	if limit > 0 && len(commits) > limit {
		commits = commits[:limit]
	}

	decoded, err := fetchCommits(ctx, store, commits, o.concurrency)
	if err != nil {
		return nil, err
	}

	entries := make([]CommitEntry, len(commits))
	for i, c := range decoded {
		entry := CommitEntry{Version: c.Version, Timestamp: commits[i].ModTime}
		for _, a := range c.Actions {
			if info, ok := a.(*CommitInfo); ok {
				entry.Info = info
				if info.Timestamp > 0 {
					entry.Timestamp = time.UnixMilli(info.Timestamp).UTC()
				}
				break
			}
		}
		entries[i] = entry
	}
	return entries, nil
}

// VersionAtTime returns the latest version committed at or before t.
func VersionAtTime(ctx context.Context, store storage.Store, tableRoot string, t time.Time, opts ...Option) (int64, error) {
	entries, err := History(ctx, store, tableRoot, 0, opts...)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if !e.Timestamp.After(t) {
			return e.Version, nil
		}
	}
	return 0, newLogError(ErrVersionNotFound, "", -1,
		fmt.Errorf("no commit at or before %s", t.UTC().Format(time.RFC3339)))
}
