package service

import (
	"context"
	"errors"
	"time"

	"delta-gateway/internal/config"
	"delta-gateway/internal/delta"
	"delta-gateway/internal/logging"
	"delta-gateway/internal/middleware"
	"delta-gateway/internal/storage"
	"delta-gateway/internal/utils"
)

type TableService interface {
	GetSnapshot(ctx context.Context, tableRoot string, req delta.RequestedVersion) (*SnapshotSummary, error)
	ListFiles(ctx context.Context, tableRoot string, req delta.RequestedVersion) (*FilesResponse, error)
	GetProtocol(ctx context.Context, tableRoot string, req delta.RequestedVersion) (*ProtocolResponse, error)
	History(ctx context.Context, tableRoot string, limit int) ([]delta.CommitEntry, error)
	VersionAtTime(ctx context.Context, tableRoot string, t time.Time) (*VersionAtResponse, error)
}

type tableService struct {
	store storage.Store
	opts  []delta.Option
}

// SnapshotSummary describes a loaded snapshot. File-level fields are only
// filled when the reader supports the table protocol.
type SnapshotSummary struct {
	TableRoot         string            `json:"tableRoot"`
	Version           int64             `json:"version"`
	CheckpointVersion *int64            `json:"checkpointVersion,omitempty"`
	Protocol          delta.Protocol    `json:"protocol"`
	Metadata          delta.Metadata    `json:"metadata"`
	Schema            *delta.StructType `json:"schema,omitempty"`
	Readable          bool              `json:"readable"`
	NumFiles          int               `json:"numFiles"`
	SizeBytes         int64             `json:"sizeBytes"`
	NumRecords        *int64            `json:"numRecords,omitempty"`
}

type FilesResponse struct {
	Version int64           `json:"version"`
	Files   []delta.AddFile `json:"files"`
}

type ProtocolResponse struct {
	Version         int64          `json:"version"`
	Protocol        delta.Protocol `json:"protocol"`
	Readable        bool           `json:"readable"`
	MissingFeatures []string       `json:"missingFeatures,omitempty"`
	Reason          string         `json:"reason,omitempty"`
}

type VersionAtResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Version   int64     `json:"version"`
}

// NewTableService creates a TableService reading through store with the
// engine settings in cfg.
func NewTableService(store storage.Store, cfg config.EngineConfig) TableService {
	caps := delta.Capabilities{
		MaxReaderVersion: cfg.MaxReaderVersion,
		ReaderFeatures:   cfg.ReaderFeatures,
	}
	return &tableService{
		store: store,
		opts:  []delta.Option{delta.WithCapabilities(caps), delta.WithConcurrency(cfg.FetchConcurrency)},
	}
}

func (s *tableService) open(ctx context.Context, tableRoot string, req delta.RequestedVersion) (*delta.Snapshot, error) {
	start := time.Now()
	snap, err := delta.Open(ctx, s.store, tableRoot, req, s.opts...)
	if err != nil {
		appErr := utils.FromDeltaError(err)
		middleware.RecordSnapshotError(appErr.Code, time.Since(start))
		logging.Warnf(ctx, "open table %s at %s: %v", tableRoot, req, err)
		return nil, err
	}

	middleware.RecordSnapshotLoad(time.Since(start), snap.ReplayedCommits(), snap.NumFiles())
	logging.Debugf(ctx, "opened table %s at version %d in %s", tableRoot, snap.Version(), time.Since(start))
	return snap, nil
}

func (s *tableService) GetSnapshot(ctx context.Context, tableRoot string, req delta.RequestedVersion) (*SnapshotSummary, error) {
	snap, err := s.open(ctx, tableRoot, req)
	if err != nil {
		return nil, err
	}

	summary := &SnapshotSummary{
		TableRoot: tableRoot,
		Version:   snap.Version(),
		Protocol:  snap.Protocol(),
		Metadata:  snap.Metadata(),
		Schema:    snap.Schema(),
		Readable:  snap.Readable() == nil,
	}
	if cp := snap.CheckpointVersion(); cp >= 0 {
		summary.CheckpointVersion = &cp
	}
	if summary.Readable {
		summary.NumFiles = snap.NumFiles()
		summary.SizeBytes = snap.SizeBytes()
		if n, ok := snap.NumRecords(); ok {
			summary.NumRecords = &n
		}
	}
	return summary, nil
}

func (s *tableService) ListFiles(ctx context.Context, tableRoot string, req delta.RequestedVersion) (*FilesResponse, error) {
	snap, err := s.open(ctx, tableRoot, req)
	if err != nil {
		return nil, err
	}
	files, err := snap.Files()
	if err != nil {
		return nil, err
	}
	return &FilesResponse{Version: snap.Version(), Files: files}, nil
}

func (s *tableService) GetProtocol(ctx context.Context, tableRoot string, req delta.RequestedVersion) (*ProtocolResponse, error) {
	snap, err := s.open(ctx, tableRoot, req)
	if err != nil {
		return nil, err
	}

	resp := &ProtocolResponse{
		Version:  snap.Version(),
		Protocol: snap.Protocol(),
		Readable: true,
	}
	if gateErr := snap.Readable(); gateErr != nil {
		resp.Readable = false
		resp.Reason = gateErr.Error()
		var up *delta.UnsupportedProtocolError
		if errors.As(gateErr, &up) {
			resp.MissingFeatures = up.MissingFeatures
		}
	}
	return resp, nil
}

func (s *tableService) History(ctx context.Context, tableRoot string, limit int) ([]delta.CommitEntry, error) {
	entries, err := delta.History(ctx, s.store, tableRoot, limit, s.opts...)
	if err != nil {
		logging.Warnf(ctx, "history of %s: %v", tableRoot, err)
		return nil, err
	}
	return entries, nil
}

func (s *tableService) VersionAtTime(ctx context.Context, tableRoot string, t time.Time) (*VersionAtResponse, error) {
	v, err := delta.VersionAtTime(ctx, s.store, tableRoot, t, s.opts...)
	if err != nil {
		return nil, err
	}
	return &VersionAtResponse{Timestamp: t, Version: v}, nil
}
