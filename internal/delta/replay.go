package delta

// TableState accumulates the effect of log actions.
type TableState struct {
	Version    int64
	Files      map[string]*AddFile
	Tombstones map[string]*RemoveFile
	Metadata   *Metadata
	Protocol   *Protocol
	Txns       map[string]int64

	// CommitInfos holds provenance of replayed commits keyed by version.
	CommitInfos map[int64]*CommitInfo
}

// NewTableState returns an empty state before version 0.
func NewTableState() *TableState {
	return &TableState{
		Version:     -1,
		Files:       make(map[string]*AddFile),
		Tombstones:  make(map[string]*RemoveFile),
		Txns:        make(map[string]int64),
		CommitInfos: make(map[int64]*CommitInfo),
	}
}

// Apply folds one action of the given version into the state.
func (s *TableState) Apply(version int64, action Action) {
	switch a := action.(type) {
	case *AddFile:
		s.Files[a.Path] = a
		delete(s.Tombstones, a.Path)
	case *RemoveFile:
		delete(s.Files, a.Path)
		s.Tombstones[a.Path] = a
	case *Metadata:
		s.Metadata = a
	case *Protocol:
		s.Protocol = a
	case *Txn:
		s.Txns[a.AppID] = a.Version
	case *CommitInfo:
		s.CommitInfos[version] = a
	}
}

// ApplyCommit folds all actions of a commit and advances the version.
func (s *TableState) ApplyCommit(c *Commit) {
	for _, a := range c.Actions {
		s.Apply(c.Version, a)
	}
	s.Version = c.Version
}

// Replay folds checkpoint actions followed by commits, which must be in
// increasing version order. A negative checkpointVersion means no checkpoint.
func Replay(checkpointVersion int64, checkpointActions []Action, commits []*Commit) *TableState {
	state := NewTableState()
	if checkpointVersion >= 0 {
		for _, a := range checkpointActions {
			state.Apply(checkpointVersion, a)
		}
		state.Version = checkpointVersion
	}
	for _, c := range commits {
		state.ApplyCommit(c)
	}
	return state
}
