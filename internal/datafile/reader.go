// Package datafile decodes the Parquet data files of a snapshot into rows.
package datafile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go/reader"

	"delta-gateway/internal/delta"
	"delta-gateway/internal/logging"
	"delta-gateway/internal/storage"
)

// Row maps column names to values. Integral columns hold int64, floating
// columns float64, dates "YYYY-MM-DD" strings and timestamps UTC time.Time.
type Row map[string]interface{}

type Reader struct {
	store     storage.Store
	parallel  int64
	batchSize int
}

type Option func(*Reader)

// WithParallelism sets the number of column readers per file.
func WithParallelism(n int64) Option {
	return func(r *Reader) {
		if n > 0 {
			r.parallel = n
		}
	}
}

// WithBatchSize sets how many rows are decoded per read call.
func WithBatchSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewReader(store storage.Store, opts ...Option) *Reader {
	r := &Reader{store: store, parallel: 4, batchSize: 1024}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadTable returns every row of the snapshot, file by file in path order.
// It fails with the protocol gate error when the snapshot is not readable.
func (r *Reader) ReadTable(ctx context.Context, snap *delta.Snapshot) ([]Row, error) {
	files, err := snap.ActiveFiles()
	if err != nil {
		return nil, err
	}

	var rows []Row
	for add := range files {
		fileRows, err := r.ReadFile(ctx, snap, add)
		if err != nil {
			return nil, err
		}
		rows = append(rows, fileRows...)
	}
	logging.Debugf(ctx, "read %d rows from %s at version %d", len(rows), snap.TableRoot(), snap.Version())
	return rows, nil
}

// ReadFile decodes one active file and adds its partition values.
func (r *Reader) ReadFile(ctx context.Context, snap *delta.Snapshot, add delta.AddFile) ([]Row, error) {
	p, err := ResolvePath(snap.TableRoot(), add.Path)
	if err != nil {
		return nil, err
	}

	schema := snap.Schema()
	rows, err := r.ReadParquet(ctx, p, schema)
	if err != nil {
		return nil, err
	}

	partitions := make(map[string]interface{}, len(snap.Metadata().PartitionColumns))
	for _, col := range snap.Metadata().PartitionColumns {
		raw, ok := add.PartitionValues[col]
		var typ delta.DataType
		if schema != nil {
			if f, found := schema.Field(col); found {
				typ = f.Type
			}
		}
		v, err := partitionValue(typ, raw, ok)
		if err != nil {
			return nil, fmt.Errorf("%s: partition column %s: %w", add.Path, col, err)
		}
		partitions[col] = v
	}
	for _, row := range rows {
		for col, v := range partitions {
			row[col] = v
		}
	}
	return rows, nil
}

// ReadParquet decodes the Parquet file at p. When schema is non-nil, values
// are converted to the schema's types and absent columns are set to nil.
func (r *Reader) ReadParquet(ctx context.Context, p string, schema *delta.StructType) ([]Row, error) {
	pf, err := openStoreFile(ctx, r.store, p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer pf.Close()

	pr, err := reader.NewParquetReader(pf, nil, r.parallel)
	if err != nil {
		return nil, fmt.Errorf("read parquet footer %s: %w", p, err)
	}
	defer pr.ReadStop()

	total := int(pr.GetNumRows())
	rows := make([]Row, 0, total)
	for len(rows) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := pr.ReadByNumber(min(r.batchSize, total-len(rows)))
		if err != nil {
			return nil, fmt.Errorf("read rows %s: %w", p, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, obj := range batch {
			row, err := toRow(obj, schema)
			if err != nil {
				return nil, fmt.Errorf("decode row %s: %w", p, err)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ResolvePath maps an add path to a store path. Relative paths are URL
// encoded and relative to the table root.
func ResolvePath(tableRoot, addPath string) (string, error) {
	u, err := url.Parse(addPath)
	if err != nil {
		return "", fmt.Errorf("invalid file path %q: %w", addPath, err)
	}
	if u.Scheme != "" {
		return "", fmt.Errorf("absolute file URI %q is not supported", addPath)
	}
	decoded, err := url.PathUnescape(addPath)
	if err != nil {
		return "", fmt.Errorf("invalid file path %q: %w", addPath, err)
	}
	return storage.Join(tableRoot, decoded), nil
}

// toRow converts a reflection-built parquet-go record. The generated struct
// carries json tags with the original column names.
func toRow(obj interface{}, schema *delta.StructType) (Row, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	raw := map[string]interface{}{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	row := make(Row, len(raw))
	if schema == nil {
		for k, v := range raw {
			row[k] = plainValue(v)
		}
		return row, nil
	}
	for _, f := range schema.Fields {
		v, ok := lookup(raw, f.Name)
		if !ok {
			row[f.Name] = nil
			continue
		}
		row[f.Name] = typedValue(f.Type, v)
	}
	return row, nil
}

// lookup matches column names case-insensitively; parquet-go may alter case.
func lookup(raw map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := raw[name]; ok {
		return v, true
	}
	for k, v := range raw {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func typedValue(t delta.DataType, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	n, isNum := v.(json.Number)
	switch t.TypeName() {
	case "long", "integer", "short", "byte":
		if isNum {
			if i, err := n.Int64(); err == nil {
				return i
			}
		}
	case "float", "double":
		if isNum {
			if f, err := n.Float64(); err == nil {
				return f
			}
		}
	case "date":
		if isNum {
			if days, err := n.Int64(); err == nil {
				return time.Unix(days*86400, 0).UTC().Format(time.DateOnly)
			}
		}
	case "timestamp", "timestamp_ntz":
		if isNum {
			if micros, err := n.Int64(); err == nil {
				return time.UnixMicro(micros).UTC()
			}
		}
	}
	return plainValue(v)
}

func plainValue(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]interface{}:
		for k, e := range x {
			x[k] = plainValue(e)
		}
		return x
	case []interface{}:
		for i, e := range x {
			x[i] = plainValue(e)
		}
		return x
	default:
		return v
	}
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05.999999Z07:00",
	"2006-01-02 15:04:05.999999Z07:00",
}

// partitionValue parses a serialized partition value. Missing and empty
// values are null.
func partitionValue(t delta.DataType, raw string, present bool) (interface{}, error) {
	if !present || raw == "" {
		return nil, nil
	}
	if t == nil {
		return raw, nil
	}
	switch t.TypeName() {
	case "long", "integer", "short", "byte":
		return strconv.ParseInt(raw, 10, 64)
	case "float", "double":
		return strconv.ParseFloat(raw, 64)
	case "boolean":
		return strconv.ParseBool(raw)
	case "date":
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, err
		}
		return d.Format(time.DateOnly), nil
	case "timestamp", "timestamp_ntz":
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, fmt.Errorf("invalid timestamp %q", raw)
	default:
		return raw, nil
	}
}
