package delta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"delta-gateway/internal/storage"
)

// LoadCheckpoint reads every part of cp and returns its actions in file order.
// Actions are not deduplicated.
func LoadCheckpoint(ctx context.Context, store storage.Store, cp *Checkpoint) ([]Action, error) {
	var actions []Action
	for _, part := range cp.Parts {
		data, err := store.Read(ctx, part.Path)
		if err != nil {
			return nil, storageError(part.Path, cp.Version, err)
		}

		var partActions []Action
		if part.IsParquet() {
			partActions, err = decodeParquetCheckpoint(ctx, data)
		} else {
			var commit *Commit
			commit, err = DecodeCommit(part.Path, cp.Version, data)
			if commit != nil {
				partActions = commit.Actions
			}
		}
		if err != nil {
			return nil, newLogError(ErrCheckpointUnreadable, part.Path, cp.Version, err)
		}
		actions = append(actions, partActions...)
	}
	return actions, nil
}

type checkpointRow struct {
	row    int64
	action Action
}

// decodeParquetCheckpoint turns every non-null top-level action struct into its
// JSON form and runs it through DecodeAction.
func decodeParquetCheckpoint(ctx context.Context, data []byte) ([]Action, error) {
	mem := memory.DefaultAllocator
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data), parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet: %w", err)
	}
	defer tbl.Release()

	var rows []checkpointRow
	for c := 0; c < int(tbl.NumCols()); c++ {
		name := tbl.Schema().Field(c).Name
		var offset int64
		for _, chunk := range tbl.Column(c).Data().Chunks() {
			for r := 0; r < chunk.Len(); r++ {
				if chunk.IsNull(r) {
					continue
				}
				record, err := json.Marshal(map[string]interface{}{name: arrowValue(chunk, r)})
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", offset+int64(r), err)
				}
				action, err := DecodeAction(record)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", offset+int64(r), err)
				}
				rows = append(rows, checkpointRow{row: offset + int64(r), action: action})
			}
			offset += int64(chunk.Len())
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].row < rows[j].row })
	actions := make([]Action, len(rows))
	for i, r := range rows {
		actions[i] = r.action
	}
	return actions, nil
}

// arrowValue converts one cell into plain Go values that encode to the JSON
// shape of a log record. Maps become objects keyed by the key's string form.
func arrowValue(arr arrow.Array, i int) interface{} {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		out := make(map[string]interface{}, a.NumField())
		for f := 0; f < a.NumField(); f++ {
			if v := arrowValue(a.Field(f), i); v != nil {
				out[st.Field(f).Name] = v
			}
		}
		return out
	case *array.Map:
		start, end := a.ValueOffsets(i)
		keys, items := a.Keys(), a.Items()
		out := make(map[string]interface{}, end-start)
		for j := start; j < end; j++ {
			out[fmt.Sprint(arrowValue(keys, int(j)))] = arrowValue(items, int(j))
		}
		return out
	case array.ListLike:
		start, end := a.ValueOffsets(i)
		values := a.ListValues()
		out := make([]interface{}, 0, end-start)
		for j := start; j < end; j++ {
			out = append(out, arrowValue(values, int(j)))
		}
		return out
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return a.Value(i)
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return a.Value(i)
	case *array.Uint16:
		return a.Value(i)
	case *array.Uint32:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Timestamp:
		return int64(a.Value(i))
	case *array.Date32:
		return int32(a.Value(i))
	default:
		return arr.GetOneForMarshal(i)
	}
}
