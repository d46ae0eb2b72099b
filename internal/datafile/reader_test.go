package datafile

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go/writer"

	"delta-gateway/internal/delta"
	"delta-gateway/internal/deltatest"
)

type letterRow struct {
	Letter *string `parquet:"name=letter, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Number int64   `parquet:"name=number, type=INT64"`
}

func strPtr(s string) *string { return &s }

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

const partitionedSchema = `{"type":"struct","fields":[` +
	`{"name":"letter","type":"string","nullable":true,"metadata":{}},` +
	`{"name":"number","type":"long","nullable":true,"metadata":{}},` +
	`{"name":"year","type":"integer","nullable":true,"metadata":{}}]}`

func TestReadTable(t *testing.T) {
	ctx := context.Background()
	tb := deltatest.New("lake/letters")
	tb.WriteFile(t, "year=2021/part-0.parquet", parquetBytes(t,
		letterRow{Letter: strPtr("a"), Number: 1},
		letterRow{Letter: nil, Number: 2},
	))
	tb.WriteFile(t, "year=2022/part 1.parquet", parquetBytes(t,
		letterRow{Letter: strPtr("c"), Number: 3},
	))
	tb.WriteFile(t, "year=2020/old.parquet", parquetBytes(t,
		letterRow{Letter: strPtr("z"), Number: 9},
	))

	tb.Commit(t, 0, deltatest.Protocol(1, 2), deltatest.Metadata(partitionedSchema, "year"))
	tb.Commit(t, 1,
		deltatest.Add("year=2020/old.parquet", 100, map[string]string{"year": "2020"}),
		deltatest.Add("year=2021/part-0.parquet", 100, map[string]string{"year": "2021"}),
		deltatest.Add("year=2022/part%201.parquet", 100, map[string]string{"year": "2022"}),
	)
	tb.Commit(t, 2, deltatest.Remove("year=2020/old.parquet"))

	snap, err := delta.Open(ctx, tb.Store, tb.Root, delta.Latest())
	require.NoError(t, err)

	rows, err := NewReader(tb.Store, WithBatchSize(1)).ReadTable(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"letter": "a", "number": int64(1), "year": int64(2021)},
		{"letter": nil, "number": int64(2), "year": int64(2021)},
		{"letter": "c", "number": int64(3), "year": int64(2022)},
	}, rows)
}

func TestReadTableUnsupportedProtocol(t *testing.T) {
	ctx := context.Background()
	tb := deltatest.New("lake/dv")
	tb.Commit(t, 0, deltatest.Protocol(3, 7, "deletionVectors"), deltatest.Metadata(deltatest.SimpleSchema))
	tb.Commit(t, 1, deltatest.Add("a.parquet", 10, nil))

	snap, err := delta.Open(ctx, tb.Store, tb.Root, delta.Latest())
	require.NoError(t, err)

	_, err = NewReader(tb.Store).ReadTable(ctx, snap)
	assert.ErrorIs(t, err, delta.ErrUnsupportedProtocol)
}

func TestReadMissingFile(t *testing.T) {
	ctx := context.Background()
	tb := deltatest.New("lake/missing")
	tb.Commit(t, 0, deltatest.Protocol(1, 2), deltatest.Metadata(deltatest.SimpleSchema), deltatest.Add("gone.parquet", 10, nil))

	snap, err := delta.Open(ctx, tb.Store, tb.Root, delta.Latest())
	require.NoError(t, err)

	_, err = NewReader(tb.Store).ReadTable(ctx, snap)
	assert.ErrorContains(t, err, "gone.parquet")
}

func TestResolvePath(t *testing.T) {
	p, err := ResolvePath("lake/t", "a%3Db/part%201.parquet")
	require.NoError(t, err)
	assert.Equal(t, "lake/t/a=b/part 1.parquet", p)

	_, err = ResolvePath("lake/t", "s3://bucket/x.parquet")
	assert.Error(t, err)
}

func TestPartitionValue(t *testing.T) {
	long := &delta.PrimitiveType{Name: "long"}
	ts := &delta.PrimitiveType{Name: "timestamp"}

	v, err := partitionValue(long, "42", true)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = partitionValue(long, "", true)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = partitionValue(ts, "2021-09-08 11:11:11", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 9, 8, 11, 11, 11, 0, time.UTC), v)

	v, err = partitionValue(&delta.PrimitiveType{Name: "date"}, "2021-09-08", true)
	require.NoError(t, err)
	assert.Equal(t, "2021-09-08", v)

	_, err = partitionValue(long, "x", true)
	assert.Error(t, err)
}

func TestColumns(t *testing.T) {
	ctx := context.Background()
	tb := deltatest.New("lake/letters")
	tb.WriteFile(t, "part-0.parquet", parquetBytes(t, letterRow{Letter: strPtr("a"), Number: 1}))

	cols, err := NewReader(tb.Store).Columns(ctx, "lake/letters/part-0.parquet")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, Column{Name: "letter", Type: "BYTE_ARRAY", ConvertedType: "UTF8", RepetitionType: "OPTIONAL"}, cols[0])
	assert.Equal(t, "number", cols[1].Name)
	assert.Equal(t, "INT64", cols[1].Type)
}
