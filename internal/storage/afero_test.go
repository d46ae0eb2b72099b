package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAferoStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.WriteFile("tbl/_delta_log/00000000000000000000.json", []byte("{}")))
	require.NoError(t, s.WriteFile("tbl/_delta_log/00000000000000000001.json", []byte("{}\n{}")))
	require.NoError(t, s.WriteFile("tbl/_delta_log/nested/x.json", []byte("{}")))
	require.NoError(t, s.WriteFile("tbl/part-0.parquet", []byte("PAR1")))

	objects, err := s.List(ctx, "tbl/_delta_log")
	require.NoError(t, err)

	var paths []string
	for _, o := range objects {
		paths = append(paths, o.Path)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{
		"tbl/_delta_log/00000000000000000000.json",
		"tbl/_delta_log/00000000000000000001.json",
	}, paths)
}

func TestAferoStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Read(ctx, "missing.json")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.List(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Stat(ctx, "missing.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAferoStoreReadRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.WriteFile("a/b.bin", []byte("0123456789")))

	tests := []struct {
		name   string
		offset int64
		length int64
		want   string
	}{
		{"head", 0, 3, "012"},
		{"middle", 4, 2, "45"},
		{"past end", 8, 10, "89"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ReadRange(ctx, "a/b.bin", tt.offset, tt.length)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestInputFile(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.WriteFile("f.bin", []byte("hello world")))

	f, err := OpenInputFile(ctx, s, "f.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(11), f.Size())

	buf := make([]byte, 5)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	pos, err := f.Seek(-5, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "world", string(rest))

	n, err = f.ReadAt(buf[:3], 2)
	require.NoError(t, err)
	assert.Equal(t, "llo", string(buf[:n]))

	_, err = f.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	other := f.Reopen()
	require.NoError(t, f.Close())
	_, err = f.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)

	n, err = other.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestDirectChild(t *testing.T) {
	assert.True(t, directChild("a/", "a/b"))
	assert.False(t, directChild("a/", "a/b/c"))
	assert.False(t, directChild("a/", "a/"))
	assert.False(t, directChild("a/", "b/c"))
	assert.Equal(t, "", dirPrefix("/"))
	assert.Equal(t, "a/b/", dirPrefix("/a/b/"))
}

func TestNewFromConfig(t *testing.T) {
	s, err := NewFromConfig(context.Background(), Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &AferoStore{}, s)

	_, err = NewFromConfig(context.Background(), Config{Backend: "ftp"})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), Config{Backend: BackendS3})
	assert.Error(t, err)
}

func TestCleanPath(t *testing.T) {
	for in, want := range map[string]string{
		"":               "",
		"/":              "",
		"lake/events":    "lake/events",
		"/lake/./events": "lake/events",
		"a/../b":         "b",
	} {
		got, err := CleanPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"..", "../other", "/a/../../b"} {
		_, err := CleanPath(in)
		assert.ErrorIs(t, err, ErrInvalidPath, in)
	}
}

func TestKeysStayUnderPrefix(t *testing.T) {
	s3Store := &S3Store{config: S3Config{Prefix: "warehouse"}}
	assert.Equal(t, "warehouse/other/_delta_log", s3Store.key("../other/_delta_log"))
	assert.Equal(t, "warehouse/t/x.json", s3Store.key("/t/x.json"))
	assert.Equal(t, "warehouse", s3Store.key(""))

	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.WriteFile("secret.json", []byte("{}")))
	data, err := s.Read(ctx, "../secret.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), data)
}
