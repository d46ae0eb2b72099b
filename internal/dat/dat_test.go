package dat

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go/writer"

	"delta-gateway/internal/datafile"
	"delta-gateway/internal/delta"
	"delta-gateway/internal/deltatest"
	"delta-gateway/internal/storage"
)

type letterRow struct {
	Letter string `parquet:"name=letter, type=BYTE_ARRAY, convertedtype=UTF8"`
	Number int64  `parquet:"name=number, type=INT64"`
}

func parquetBytes(t *testing.T, rows ...letterRow) []byte {
	t.Helper()
	var buf bytes.Buffer
	pw, err := writer.NewParquetWriterFromWriter(&buf, new(letterRow), 1)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, pw.Write(r))
	}
	require.NoError(t, pw.WriteStop())
	return buf.Bytes()
}

type caseBuilder struct {
	t     *testing.T
	store *storage.AferoStore
	dir   string
	table *deltatest.Table
}

func newCase(t *testing.T, fs afero.Fs, name string) *caseBuilder {
	store := storage.NewAferoStore(fs, "")
	dir := "reader_tests/generated/" + name
	cb := &caseBuilder{t: t, store: store, dir: dir, table: &deltatest.Table{Store: store, Root: dir + "/delta"}}
	cb.write("test_case_info.json", `{"name":"`+name+`","description":"test"}`)
	return cb
}

func (cb *caseBuilder) write(name, body string) {
	require.NoError(cb.t, cb.store.WriteFile(cb.dir+"/"+name, []byte(body)))
}

func (cb *caseBuilder) expect(version string, meta string, rows ...letterRow) {
	cb.write("expected/"+version+"/table_version_metadata.json", meta)
	if rows != nil {
		require.NoError(cb.t, cb.store.WriteFile(cb.dir+"/expected/"+version+"/table_content/part-0.parquet", parquetBytes(cb.t, rows...)))
	}
}

func buildCases(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()

	basic := newCase(t, fs, "basic_append")
	basic.table.WriteFile(t, "part-0.parquet", parquetBytes(t, letterRow{"a", 1}, letterRow{"b", 2}))
	basic.table.WriteFile(t, "part-1.parquet", parquetBytes(t, letterRow{"c", 3}))
	basic.table.Commit(t, 0, deltatest.Protocol(1, 2), deltatest.Metadata(deltatest.SimpleSchema), deltatest.Add("part-0.parquet", 10, nil))
	basic.table.Commit(t, 1, deltatest.Add("part-1.parquet", 10, nil))
	basic.expect("latest", `{"version":1,"min_reader_version":1,"min_writer_version":2}`,
		letterRow{"c", 3}, letterRow{"a", 1}, letterRow{"b", 2})
	basic.expect("v0", `{"version":0,"min_reader_version":1,"min_writer_version":2}`,
		letterRow{"b", 2}, letterRow{"a", 1})

	dv := newCase(t, fs, "deletion_vectors")
	dv.table.Commit(t, 0, deltatest.Protocol(3, 7, "deletionVectors"), deltatest.Metadata(deltatest.SimpleSchema), deltatest.Add("part-0.parquet", 10, nil))
	dv.expect("latest", `{"version":0,"min_reader_version":3,"min_writer_version":7}`)

	return fs
}

func TestDiscover(t *testing.T) {
	r := NewRunner(buildCases(t), delta.DefaultCapabilities())

	cases, err := r.Discover("reader_tests/generated")
	require.NoError(t, err)
	require.Len(t, cases, 3)

	assert.Equal(t, "basic_append (version=latest)", cases[0].String())
	assert.True(t, cases[0].Version.IsLatest())
	assert.Equal(t, "basic_append (version=v0)", cases[1].String())
	v, exact := cases[1].Version.Version()
	assert.True(t, exact)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, 3, cases[2].Metadata.MinReaderVersion)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(buildCases(t), delta.DefaultCapabilities())
	cases, err := r.Discover("reader_tests/generated")
	require.NoError(t, err)

	results := r.Run(ctx, cases)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.True(t, res.Passed(), "%s: %v", res.Case, res.Err)
	}
	assert.Equal(t, 3, results[0].Rows)
	assert.Equal(t, 2, results[1].Rows)
}

func TestRunDetectsMismatch(t *testing.T) {
	ctx := context.Background()
	fs := buildCases(t)
	store := storage.NewAferoStore(fs, "")
	base := "reader_tests/generated/basic_append/expected/latest/"

	require.NoError(t, store.WriteFile(base+"table_content/part-0.parquet", parquetBytes(t, letterRow{"a", 1}, letterRow{"b", 2}, letterRow{"x", 3})))
	r := NewRunner(fs, delta.DefaultCapabilities())
	cases, err := r.Discover("reader_tests/generated")
	require.NoError(t, err)
	res := r.RunCase(ctx, cases[0])
	assert.ErrorContains(t, res.Err, "row mismatch")

	require.NoError(t, store.WriteFile(base+"table_version_metadata.json", []byte(`{"version":1,"min_reader_version":1,"min_writer_version":5}`)))
	cases, err = r.Discover("reader_tests/generated")
	require.NoError(t, err)
	res = r.RunCase(ctx, cases[0])
	assert.ErrorContains(t, res.Err, "protocol")
}

type narrowRow struct {
	Letter string `parquet:"name=letter, type=BYTE_ARRAY, convertedtype=UTF8"`
	Number int32  `parquet:"name=number, type=INT32"`
}

func TestRunDetectsSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	fs := buildCases(t)
	store := storage.NewAferoStore(fs, "")

	var buf bytes.Buffer
	pw, err := writer.NewParquetWriterFromWriter(&buf, new(narrowRow), 1)
	require.NoError(t, err)
	for _, r := range []narrowRow{{"a", 1}, {"b", 2}, {"c", 3}} {
		require.NoError(t, pw.Write(r))
	}
	require.NoError(t, pw.WriteStop())
	require.NoError(t, store.WriteFile("reader_tests/generated/basic_append/expected/latest/table_content/part-0.parquet", buf.Bytes()))

	r := NewRunner(fs, delta.DefaultCapabilities())
	cases, err := r.Discover("reader_tests/generated")
	require.NoError(t, err)
	res := r.RunCase(ctx, cases[0])
	assert.ErrorContains(t, res.Err, "schema mismatch: column number is INT32")
}

func TestCompareSchema(t *testing.T) {
	schema, err := delta.ParseSchema(deltatest.SimpleSchema)
	require.NoError(t, err)

	assert.NoError(t, compareSchema(schema, []datafile.Column{{Name: "letter", Type: "BYTE_ARRAY"}, {Name: "number", Type: "INT64"}}))
	assert.ErrorContains(t, compareSchema(schema, []datafile.Column{{Name: "letter", Type: "BYTE_ARRAY"}}), "got 1 columns")
	assert.ErrorContains(t, compareSchema(schema, []datafile.Column{{Name: "letter", Type: "BYTE_ARRAY"}, {Name: "count", Type: "INT64"}}), "number is missing")
	assert.ErrorContains(t, compareSchema(schema, []datafile.Column{{Name: "letter", Type: "INT64"}, {Name: "number", Type: "INT64"}}), "letter is INT64")
}

func TestRunReportsMissingTable(t *testing.T) {
	fs := afero.NewMemMapFs()
	cb := newCase(t, fs, "empty")
	cb.expect("latest", `{"version":0,"min_reader_version":1,"min_writer_version":2}`)

	r := NewRunner(fs, delta.DefaultCapabilities())
	cases, err := r.Discover("reader_tests/generated")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	res := r.RunCase(context.Background(), cases[0])
	assert.ErrorIs(t, res.Err, delta.ErrTableEmpty)
}
