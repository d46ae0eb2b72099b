// Package deltatest builds Delta tables in memory for tests.
package deltatest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"delta-gateway/internal/storage"
)

// SimpleSchema is a two column schema used by most fixtures.
const SimpleSchema = `{"type":"struct","fields":[` +
	`{"name":"letter","type":"string","nullable":true,"metadata":{}},` +
	`{"name":"number","type":"long","nullable":true,"metadata":{}}]}`

// Table is a table under Root in an in-memory store.
type Table struct {
	Store *storage.AferoStore
	Root  string
}

// New creates an empty table rooted at root in a fresh memory store.
func New(root string) *Table {
	return &Table{Store: storage.NewMemoryStore(), Root: root}
}

// LogPath returns the path of a file in the log directory.
func (tb *Table) LogPath(name string) string {
	return storage.Join(tb.Root, "_delta_log", name)
}

// WriteLog writes a raw file into the log directory.
func (tb *Table) WriteLog(t testing.TB, name string, data []byte) {
	t.Helper()
	if err := tb.Store.WriteFile(tb.LogPath(name), data); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// WriteFile writes a file relative to the table root.
func (tb *Table) WriteFile(t testing.TB, name string, data []byte) {
	t.Helper()
	if err := tb.Store.WriteFile(storage.Join(tb.Root, name), data); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// Commit writes commit version with one record per line.
func (tb *Table) Commit(t testing.TB, version int64, records ...string) {
	t.Helper()
	tb.WriteLog(t, fmt.Sprintf("%020d.json", version), []byte(strings.Join(records, "\n")+"\n"))
}

// JSONCheckpoint writes a single-part NDJSON checkpoint.
func (tb *Table) JSONCheckpoint(t testing.TB, version int64, records ...string) {
	t.Helper()
	tb.WriteLog(t, fmt.Sprintf("%020d.checkpoint.json", version), []byte(strings.Join(records, "\n")+"\n"))
}

// ParquetCheckpoint writes a single-part Parquet checkpoint.
func (tb *Table) ParquetCheckpoint(t testing.TB, version int64, records ...string) {
	t.Helper()
	data, err := ParquetCheckpointBytes(records)
	if err != nil {
		t.Fatalf("encode checkpoint: %v", err)
	}
	tb.WriteLog(t, fmt.Sprintf("%020d.checkpoint.parquet", version), data)
}

// MultiPartCheckpoint writes one Parquet part per element of parts.
func (tb *Table) MultiPartCheckpoint(t testing.TB, version int64, parts ...[]string) {
	t.Helper()
	for i, records := range parts {
		data, err := ParquetCheckpointBytes(records)
		if err != nil {
			t.Fatalf("encode checkpoint part %d: %v", i+1, err)
		}
		tb.WriteLog(t, fmt.Sprintf("%020d.checkpoint.%010d.%010d.parquet", version, i+1, len(parts)), data)
	}
}

func Add(path string, size int64, partitionValues map[string]string) string {
	if partitionValues == nil {
		partitionValues = map[string]string{}
	}
	return record("add", map[string]interface{}{
		"path":             path,
		"size":             size,
		"partitionValues":  partitionValues,
		"modificationTime": int64(1700000000000),
		"dataChange":       true,
	})
}

// AddWithStats is Add with a numRecords statistic.
func AddWithStats(path string, size, numRecords int64) string {
	return record("add", map[string]interface{}{
		"path":             path,
		"size":             size,
		"partitionValues":  map[string]string{},
		"modificationTime": int64(1700000000000),
		"dataChange":       true,
		"stats":            fmt.Sprintf(`{"numRecords":%d}`, numRecords),
	})
}

func Remove(path string) string {
	return record("remove", map[string]interface{}{
		"path":              path,
		"deletionTimestamp": int64(1700000000001),
		"dataChange":        true,
	})
}

func Protocol(minReader, minWriter int, readerFeatures ...string) string {
	body := map[string]interface{}{
		"minReaderVersion": minReader,
		"minWriterVersion": minWriter,
	}
	if len(readerFeatures) > 0 {
		body["readerFeatures"] = readerFeatures
		body["writerFeatures"] = readerFeatures
	}
	return record("protocol", body)
}

func Metadata(schema string, partitionColumns ...string) string {
	if partitionColumns == nil {
		partitionColumns = []string{}
	}
	return record("metaData", map[string]interface{}{
		"id":               "5fba94ed-9794-4965-ba6e-6ee3c0d22af9",
		"format":           map[string]interface{}{"provider": "parquet", "options": map[string]string{}},
		"schemaString":     schema,
		"partitionColumns": partitionColumns,
		"configuration":    map[string]string{},
		"createdTime":      int64(1700000000000),
	})
}

func CommitInfo(timestampMillis int64, operation string) string {
	return record("commitInfo", map[string]interface{}{
		"timestamp": timestampMillis,
		"operation": operation,
	})
}

func Txn(appID string, version int64) string {
	return record("txn", map[string]interface{}{"appId": appID, "version": version})
}

func record(key string, body map[string]interface{}) string {
	data, err := json.Marshal(map[string]interface{}{key: body})
	if err != nil {
		panic(err)
	}
	return string(data)
}

var (
	stringMap  = arrow.MapOf(arrow.BinaryTypes.String, arrow.BinaryTypes.String)
	stringList = arrow.ListOf(arrow.BinaryTypes.String)

	checkpointSchema = arrow.NewSchema([]arrow.Field{
		{Name: "txn", Nullable: true, Type: arrow.StructOf(
			arrow.Field{Name: "appId", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "version", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			arrow.Field{Name: "lastUpdated", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		)},
		{Name: "add", Nullable: true, Type: arrow.StructOf(
			arrow.Field{Name: "path", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "partitionValues", Type: stringMap, Nullable: true},
			arrow.Field{Name: "size", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			arrow.Field{Name: "modificationTime", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			arrow.Field{Name: "dataChange", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
			arrow.Field{Name: "stats", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "tags", Type: stringMap, Nullable: true},
		)},
		{Name: "remove", Nullable: true, Type: arrow.StructOf(
			arrow.Field{Name: "path", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "deletionTimestamp", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			arrow.Field{Name: "dataChange", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		)},
		{Name: "metaData", Nullable: true, Type: arrow.StructOf(
			arrow.Field{Name: "id", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "description", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "format", Nullable: true, Type: arrow.StructOf(
				arrow.Field{Name: "provider", Type: arrow.BinaryTypes.String, Nullable: true},
				arrow.Field{Name: "options", Type: stringMap, Nullable: true},
			)},
			arrow.Field{Name: "schemaString", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "partitionColumns", Type: stringList, Nullable: true},
			arrow.Field{Name: "configuration", Type: stringMap, Nullable: true},
			arrow.Field{Name: "createdTime", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		)},
		{Name: "protocol", Nullable: true, Type: arrow.StructOf(
			arrow.Field{Name: "minReaderVersion", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
			arrow.Field{Name: "minWriterVersion", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
			arrow.Field{Name: "readerFeatures", Type: stringList, Nullable: true},
			arrow.Field{Name: "writerFeatures", Type: stringList, Nullable: true},
		)},
	}, nil)

	// map columns per action, encoded as key/value entry lists for arrow's JSON reader
	mapColumns = map[string][]string{
		"add":      {"partitionValues", "tags"},
		"metaData": {"configuration"},
	}
)

// ParquetCheckpointBytes encodes log records into a Parquet checkpoint with the
// standard checkpoint layout of one action struct column per action kind.
func ParquetCheckpointBytes(records []string) ([]byte, error) {
	rows := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		var row map[string]map[string]interface{}
		if err := json.Unmarshal([]byte(r), &row); err != nil {
			return nil, fmt.Errorf("record %q: %w", r, err)
		}
		out := make(map[string]interface{}, len(row))
		for key, body := range row {
			for _, col := range mapColumns[key] {
				if v, ok := body[col]; ok {
					body[col] = mapEntries(v)
				}
			}
			if format, ok := body["format"].(map[string]interface{}); ok {
				if v, ok := format["options"]; ok {
					format["options"] = mapEntries(v)
				}
			}
			out[key] = body
		}
		rows = append(rows, out)
	}
	rowJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}

	mem := memory.NewGoAllocator()
	rec, _, err := array.RecordFromJSON(mem, checkpointSchema, bytes.NewReader(rowJSON))
	if err != nil {
		return nil, fmt.Errorf("build record: %w", err)
	}
	defer rec.Release()

	tbl := array.NewTableFromRecords(checkpointSchema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	if err := pqarrow.WriteTable(tbl, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()); err != nil {
		return nil, fmt.Errorf("write parquet: %w", err)
	}
	return buf.Bytes(), nil
}

func mapEntries(v interface{}) []map[string]interface{} {
	m, _ := v.(map[string]interface{})
	entries := make([]map[string]interface{}, 0, len(m))
	for k, val := range m {
		entries = append(entries, map[string]interface{}{"key": k, "value": val})
	}
	return entries
}
