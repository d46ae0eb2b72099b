package delta

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// LogDirName is the transaction log directory under a table root.
const LogDirName = "_delta_log"

// FileKind classifies a file found in the log directory.
type FileKind int

const (
	KindCommit FileKind = iota
	KindCheckpoint
)

// LogFile is one classified entry of the log directory.
type LogFile struct {
	Kind     FileKind
	Version  int64
	Path     string
	Part     int
	NumParts int
	Size     int64
	ModTime  time.Time
}

// IsParquet reports whether a checkpoint part is Parquet encoded.
func (f LogFile) IsParquet() bool {
	return path.Ext(f.Path) == ".parquet"
}

// Checkpoint is a complete checkpoint with its parts ordered by part number.
type Checkpoint struct {
	Version int64
	Parts   []LogFile
}

// LogSegment is everything needed to reconstruct one version.
type LogSegment struct {
	Version    int64
	Checkpoint *Checkpoint
	Commits    []LogFile
}

// RequestedVersion is either the latest version or an exact one.
type RequestedVersion struct {
	exact   bool
	version int64
}

// Latest requests the highest committed version.
func Latest() RequestedVersion { return RequestedVersion{} }

// Exact requests version v.
func Exact(v int64) RequestedVersion { return RequestedVersion{exact: true, version: v} }

// IsLatest reports whether r requests the latest version.
func (r RequestedVersion) IsLatest() bool { return !r.exact }

// Version returns the requested version and whether it is exact.
func (r RequestedVersion) Version() (int64, bool) { return r.version, r.exact }

func (r RequestedVersion) String() string {
	if !r.exact {
		return "latest"
	}
	return strconv.FormatInt(r.version, 10)
}

var (
	commitName     = regexp.MustCompile(`^(\d{20})\.json$`)
	checkpointName = regexp.MustCompile(`^(\d{20})\.checkpoint\.(parquet|json)$`)
	multiPartName  = regexp.MustCompile(`^(\d{20})\.checkpoint\.(\d{10})\.(\d{10})\.parquet$`)
	namedName      = regexp.MustCompile(`^(\d{20})\.checkpoint\.[0-9A-Za-z-]+\.(parquet|json)$`)
)

// CommitFileName returns the log file name of a commit version.
func CommitFileName(version int64) string {
	return fmt.Sprintf("%020d.json", version)
}

// ParseLogFile classifies a log directory entry by name. ok is false for files
// that are not commits or checkpoints.
func ParseLogFile(p string) (f LogFile, ok bool) {
	name := path.Base(p)
	f.Path = p
	switch {
	case commitName.MatchString(name):
		f.Kind = KindCommit
		f.Version, ok = parseVersion(commitName.FindStringSubmatch(name)[1])
	case checkpointName.MatchString(name):
		f.Kind, f.Part, f.NumParts = KindCheckpoint, 1, 1
		f.Version, ok = parseVersion(checkpointName.FindStringSubmatch(name)[1])
	case multiPartName.MatchString(name):
		m := multiPartName.FindStringSubmatch(name)
		f.Kind = KindCheckpoint
		f.Part, _ = strconv.Atoi(m[2])
		f.NumParts, _ = strconv.Atoi(m[3])
		f.Version, ok = parseVersion(m[1])
		ok = ok && f.Part >= 1 && f.Part <= f.NumParts
	case namedName.MatchString(name):
		f.Kind, f.Part, f.NumParts = KindCheckpoint, 1, 1
		f.Version, ok = parseVersion(namedName.FindStringSubmatch(name)[1])
	}
	return f, ok
}

func parseVersion(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// LocateSegment picks the checkpoint and commits that reconstruct req.
// files may be in any order.
func LocateSegment(files []LogFile, req RequestedVersion) (*LogSegment, error) {
	commits := make(map[int64]LogFile)
	groups := make(map[string]*Checkpoint)
	for _, f := range files {
		switch f.Kind {
		case KindCommit:
			commits[f.Version] = f
		case KindCheckpoint:
			key := fmt.Sprintf("%d/%d", f.Version, f.NumParts)
			if f.NumParts == 1 {
				key = f.Path
			}
			g, ok := groups[key]
			if !ok {
				g = &Checkpoint{Version: f.Version}
				groups[key] = g
			}
			g.Parts = append(g.Parts, f)
		}
	}

	var complete []*Checkpoint
	for _, g := range groups {
		if checkpointComplete(g) {
			complete = append(complete, g)
		}
	}
	sort.Slice(complete, func(i, j int) bool {
		a, b := complete[i], complete[j]
		if a.Version != b.Version {
			return a.Version > b.Version
		}
		if len(a.Parts) != len(b.Parts) {
			return len(a.Parts) < len(b.Parts)
		}
		return a.Parts[0].Path < b.Parts[0].Path
	})

	if _, ok := commits[0]; !ok && len(complete) == 0 {
		return nil, newLogError(ErrTableEmpty, "", -1, nil)
	}

	latest := int64(-1)
	for v := range commits {
		latest = max(latest, v)
	}
	if len(complete) > 0 {
		latest = max(latest, complete[0].Version)
	}

	target := latest
	if v, exact := req.Version(); exact {
		if v < 0 || v > latest {
			return nil, newLogError(ErrVersionNotFound, "", v, fmt.Errorf("latest version is %d", latest))
		}
		target = v
	}

	seg := &LogSegment{Version: target}
	start := int64(0)
	for _, cp := range complete {
		if cp.Version <= target {
			seg.Checkpoint = cp
			start = cp.Version + 1
			break
		}
	}
	for v := start; v <= target; v++ {
		c, ok := commits[v]
		if !ok {
			return nil, newLogError(ErrNonContiguousLog, "", v, fmt.Errorf("commit %s is missing", CommitFileName(v)))
		}
		seg.Commits = append(seg.Commits, c)
	}
	return seg, nil
}

func checkpointComplete(cp *Checkpoint) bool {
	sort.Slice(cp.Parts, func(i, j int) bool { return cp.Parts[i].Part < cp.Parts[j].Part })
	n := cp.Parts[0].NumParts
	if len(cp.Parts) != n {
		return false
	}
	for i, p := range cp.Parts {
		if p.Part != i+1 {
			return false
		}
	}
	return true
}
