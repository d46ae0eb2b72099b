package delta

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

// Snapshot is the immutable state of a table at one version.
type Snapshot struct {
	tableRoot  string
	version    int64
	segment    *LogSegment
	protocol   Protocol
	metadata   Metadata
	schema     *StructType
	files      []AddFile
	tombstones []RemoveFile
	txns       map[string]int64
	gateErr    error
}

func newSnapshot(tableRoot string, seg *LogSegment, state *TableState, caps Capabilities) (*Snapshot, error) {
	if state.Protocol == nil {
		return nil, newLogError(ErrMalformedLogEntry, LogDir(tableRoot), seg.Version, fmt.Errorf("no protocol action in log"))
	}
	if state.Metadata == nil {
		return nil, newLogError(ErrMalformedLogEntry, LogDir(tableRoot), seg.Version, fmt.Errorf("no metaData action in log"))
	}

	s := &Snapshot{
		tableRoot: tableRoot,
		version:   state.Version,
		segment:   seg,
		protocol:  clonedProtocol(*state.Protocol),
		metadata:  clonedMetadata(*state.Metadata),
		txns:      make(map[string]int64, len(state.Txns)),
		gateErr:   caps.Check(state.Protocol),
	}

	schema, err := ParseSchema(s.metadata.SchemaString)
	if err != nil && s.gateErr == nil {
		return nil, newLogError(ErrMalformedLogEntry, LogDir(tableRoot), seg.Version, fmt.Errorf("invalid schema: %w", err))
	}
	s.schema = schema

	s.files = make([]AddFile, 0, len(state.Files))
	for _, f := range state.Files {
		s.files = append(s.files, clonedAdd(*f))
	}
	slices.SortFunc(s.files, func(a, b AddFile) int { return strings.Compare(a.Path, b.Path) })

	s.tombstones = make([]RemoveFile, 0, len(state.Tombstones))
	for _, r := range state.Tombstones {
		s.tombstones = append(s.tombstones, clonedRemove(*r))
	}
	slices.SortFunc(s.tombstones, func(a, b RemoveFile) int { return strings.Compare(a.Path, b.Path) })

	for app, v := range state.Txns {
		s.txns[app] = v
	}
	return s, nil
}

// Version returns the resolved table version.
func (s *Snapshot) Version() int64 { return s.version }

// TableRoot returns the table root the snapshot was loaded from.
func (s *Snapshot) TableRoot() string { return s.tableRoot }

// Protocol returns the active protocol. It is available for unreadable tables.
func (s *Snapshot) Protocol() Protocol { return clonedProtocol(s.protocol) }

// Metadata returns the active table metadata.
func (s *Snapshot) Metadata() Metadata { return clonedMetadata(s.metadata) }

// Schema returns the parsed table schema. It is nil only when the table is
// unreadable and its schema uses types this reader does not know.
func (s *Snapshot) Schema() *StructType { return s.schema.Clone() }

// CheckpointVersion returns the version of the checkpoint used, or -1.
func (s *Snapshot) CheckpointVersion() int64 {
	if s.segment == nil || s.segment.Checkpoint == nil {
		return -1
	}
	return s.segment.Checkpoint.Version
}

// ReplayedCommits returns the number of commit files folded on top of the checkpoint.
func (s *Snapshot) ReplayedCommits() int {
	if s.segment == nil {
		return 0
	}
	return len(s.segment.Commits)
}

// Readable returns the protocol gate result.
func (s *Snapshot) Readable() error { return s.gateErr }

// ActiveFiles returns copies of the active data files ordered by path. The
// sequence can be iterated any number of times. It fails when the protocol is
// unsupported.
func (s *Snapshot) ActiveFiles() (iter.Seq[AddFile], error) {
	if s.gateErr != nil {
		return nil, s.gateErr
	}
	return func(yield func(AddFile) bool) {
		for _, f := range s.files {
			if !yield(clonedAdd(f)) {
				return
			}
		}
	}, nil
}

// Files returns a copy of the active files ordered by path.
func (s *Snapshot) Files() ([]AddFile, error) {
	if s.gateErr != nil {
		return nil, s.gateErr
	}
	files := make([]AddFile, len(s.files))
	for i, f := range s.files {
		files[i] = clonedAdd(f)
	}
	return files, nil
}

// NumFiles returns the number of active files.
func (s *Snapshot) NumFiles() int { return len(s.files) }

// SizeBytes returns the total size of active files.
func (s *Snapshot) SizeBytes() int64 {
	var total int64
	for _, f := range s.files {
		total += f.Size
	}
	return total
}

// NumRecords sums numRecords over active files. ok is false when any file has
// no usable statistics.
func (s *Snapshot) NumRecords() (n int64, ok bool) {
	for i := range s.files {
		stats, err := s.files[i].ParseStats()
		if err != nil || stats == nil {
			return 0, false
		}
		n += stats.NumRecords
	}
	return n, true
}

// Tombstones returns removed files that were not re-added, ordered by path.
func (s *Snapshot) Tombstones() []RemoveFile {
	out := make([]RemoveFile, len(s.tombstones))
	for i, r := range s.tombstones {
		out[i] = clonedRemove(r)
	}
	return out
}

// TxnVersion returns the last version recorded by an application transaction.
func (s *Snapshot) TxnVersion(appID string) (int64, bool) {
	v, ok := s.txns[appID]
	return v, ok
}

func clonedAdd(f AddFile) AddFile {
	f.PartitionValues = maps.Clone(f.PartitionValues)
	f.Tags = maps.Clone(f.Tags)
	if f.DeletionVector != nil {
		dv := *f.DeletionVector
		if dv.Offset != nil {
			off := *dv.Offset
			dv.Offset = &off
		}
		f.DeletionVector = &dv
	}
	return f
}

func clonedRemove(r RemoveFile) RemoveFile {
	r.PartitionValues = maps.Clone(r.PartitionValues)
	return r
}

func clonedMetadata(m Metadata) Metadata {
	m.Format.Options = maps.Clone(m.Format.Options)
	m.PartitionColumns = slices.Clone(m.PartitionColumns)
	m.Configuration = maps.Clone(m.Configuration)
	return m
}
