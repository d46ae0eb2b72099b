package delta

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFiles(versions ...int64) []LogFile {
	files := make([]LogFile, 0, len(versions))
	for _, v := range versions {
		files = append(files, LogFile{Kind: KindCommit, Version: v, Path: fmt.Sprintf("_delta_log/%020d.json", v)})
	}
	return files
}

func checkpointFile(v int64, part, parts int) LogFile {
	name := fmt.Sprintf("_delta_log/%020d.checkpoint.parquet", v)
	if parts > 1 {
		name = fmt.Sprintf("_delta_log/%020d.checkpoint.%010d.%010d.parquet", v, part, parts)
	}
	return LogFile{Kind: KindCheckpoint, Version: v, Path: name, Part: part, NumParts: parts}
}

func versionsOf(files []LogFile) []int64 {
	out := make([]int64, 0, len(files))
	for _, f := range files {
		out = append(out, f.Version)
	}
	return out
}

func TestParseLogFile(t *testing.T) {
	tests := []struct {
		name    string
		ok      bool
		kind    FileKind
		version int64
		part    int
		parts   int
	}{
		{"00000000000000000007.json", true, KindCommit, 7, 0, 0},
		{"00000000000000000010.checkpoint.parquet", true, KindCheckpoint, 10, 1, 1},
		{"00000000000000000010.checkpoint.json", true, KindCheckpoint, 10, 1, 1},
		{"00000000000000000010.checkpoint.0000000002.0000000003.parquet", true, KindCheckpoint, 10, 2, 3},
		{"00000000000000000010.checkpoint.80a083e8-7026-4e79-81be-64bd76c43a11.parquet", true, KindCheckpoint, 10, 1, 1},
		{"00000000000000000010.checkpoint.0000000004.0000000003.parquet", false, 0, 0, 0, 0},
		{"00000000000000000007.crc", false, 0, 0, 0, 0},
		{"_last_checkpoint", false, 0, 0, 0, 0},
		{"7.json", false, 0, 0, 0, 0},
		{".00000000000000000007.json.tmp", false, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := ParseLogFile("tbl/_delta_log/" + tt.name)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.version, f.Version)
			assert.Equal(t, tt.part, f.Part)
			assert.Equal(t, tt.parts, f.NumParts)
		})
	}
}

func TestLocateSegment(t *testing.T) {
	t.Run("latest without checkpoint", func(t *testing.T) {
		seg, err := LocateSegment(commitFiles(2, 0, 1), Latest())
		require.NoError(t, err)
		assert.Equal(t, int64(2), seg.Version)
		assert.Nil(t, seg.Checkpoint)
		assert.Equal(t, []int64{0, 1, 2}, versionsOf(seg.Commits))
	})

	t.Run("exact before latest", func(t *testing.T) {
		seg, err := LocateSegment(commitFiles(0, 1, 2, 3), Exact(1))
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1}, versionsOf(seg.Commits))
	})

	t.Run("highest checkpoint at or below target", func(t *testing.T) {
		files := append(commitFiles(0, 1, 2, 3, 4, 5, 6), checkpointFile(2, 1, 1), checkpointFile(5, 1, 1))
		seg, err := LocateSegment(files, Exact(4))
		require.NoError(t, err)
		require.NotNil(t, seg.Checkpoint)
		assert.Equal(t, int64(2), seg.Checkpoint.Version)
		assert.Equal(t, []int64{3, 4}, versionsOf(seg.Commits))

		seg, err = LocateSegment(files, Latest())
		require.NoError(t, err)
		assert.Equal(t, int64(5), seg.Checkpoint.Version)
		assert.Equal(t, []int64{6}, versionsOf(seg.Commits))
	})

	t.Run("checkpoint at target needs no commits", func(t *testing.T) {
		files := append(commitFiles(0, 1, 2), checkpointFile(2, 1, 1))
		seg, err := LocateSegment(files, Exact(2))
		require.NoError(t, err)
		assert.Equal(t, int64(2), seg.Checkpoint.Version)
		assert.Empty(t, seg.Commits)
	})

	t.Run("incomplete multi-part checkpoint is skipped", func(t *testing.T) {
		files := append(commitFiles(0, 1, 2, 3, 4), checkpointFile(2, 1, 1), checkpointFile(4, 1, 2))
		seg, err := LocateSegment(files, Latest())
		require.NoError(t, err)
		assert.Equal(t, int64(2), seg.Checkpoint.Version)
		assert.Equal(t, []int64{3, 4}, versionsOf(seg.Commits))
	})

	t.Run("complete multi-part checkpoint", func(t *testing.T) {
		files := append(commitFiles(0, 1, 2, 3), checkpointFile(3, 2, 2), checkpointFile(3, 1, 2))
		seg, err := LocateSegment(files, Latest())
		require.NoError(t, err)
		require.Len(t, seg.Checkpoint.Parts, 2)
		assert.Equal(t, 1, seg.Checkpoint.Parts[0].Part)
		assert.Empty(t, seg.Commits)
	})

	t.Run("cleaned up history with checkpoint", func(t *testing.T) {
		files := append(commitFiles(10, 11, 12), checkpointFile(10, 1, 1))
		seg, err := LocateSegment(files, Latest())
		require.NoError(t, err)
		assert.Equal(t, int64(12), seg.Version)
		assert.Equal(t, []int64{11, 12}, versionsOf(seg.Commits))

		_, err = LocateSegment(files, Exact(5))
		assert.True(t, errors.Is(err, ErrNonContiguousLog))
	})
}

func TestLocateSegmentErrors(t *testing.T) {
	tests := []struct {
		name  string
		files []LogFile
		req   RequestedVersion
		kind  error
	}{
		{"empty listing", nil, Latest(), ErrTableEmpty},
		{"no commit zero", commitFiles(1, 2), Latest(), ErrTableEmpty},
		{"version beyond latest", commitFiles(0, 1, 2), Exact(3), ErrVersionNotFound},
		{"negative version", commitFiles(0), Exact(-1), ErrVersionNotFound},
		{"gap", commitFiles(0, 1, 2, 4), Exact(4), ErrNonContiguousLog},
		{"gap below latest", commitFiles(0, 2, 3), Latest(), ErrNonContiguousLog},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, err := LocateSegment(tt.files, tt.req)
			assert.Nil(t, seg)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}

	_, err := LocateSegment(commitFiles(0, 1, 2, 4), Exact(4))
	var le *LogError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, int64(3), le.Version)

	seg, err := LocateSegment(commitFiles(0, 1, 2, 4), Exact(2))
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, versionsOf(seg.Commits))
}

func TestRequestedVersion(t *testing.T) {
	assert.True(t, Latest().IsLatest())
	assert.Equal(t, "latest", Latest().String())
	v, exact := Exact(3).Version()
	assert.True(t, exact)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, "3", Exact(3).String())
}
