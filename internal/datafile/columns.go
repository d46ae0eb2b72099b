package datafile

import (
	"context"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
)

// GroupType is the Type of a Column that has nested children.
const GroupType = "GROUP"

// Column is one top-level column of a Parquet file.
type Column struct {
	Name           string
	Type           string // physical type such as INT64, or GroupType
	ConvertedType  string
	RepetitionType string // REQUIRED, OPTIONAL, REPEATED
}

// Columns returns the top-level columns of the Parquet file at p in file order.
func (r *Reader) Columns(ctx context.Context, p string) ([]Column, error) {
	pf, err := openStoreFile(ctx, r.store, p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer pf.Close()

	pr, err := reader.NewParquetReader(pf, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("read parquet footer %s: %w", p, err)
	}
	defer pr.ReadStop()

	return topLevelColumns(pr.SchemaHandler.SchemaElements), nil
}

func topLevelColumns(elems []*parquet.SchemaElement) []Column {
	if len(elems) == 0 {
		return nil
	}
	root := elems[0]
	cols := make([]Column, 0, root.GetNumChildren())
	i := 1
	for n := int32(0); n < root.GetNumChildren() && i < len(elems); n++ {
		el := elems[i]
		col := Column{Name: el.GetName(), Type: GroupType}
		if el.IsSetType() {
			col.Type = el.GetType().String()
		}
		if el.IsSetConvertedType() {
			col.ConvertedType = el.GetConvertedType().String()
		}
		if el.IsSetRepetitionType() {
			col.RepetitionType = el.GetRepetitionType().String()
		}
		cols = append(cols, col)
		i = skipSubtree(elems, i)
	}
	return cols
}

// skipSubtree returns the index just past the element at i and its descendants.
func skipSubtree(elems []*parquet.SchemaElement, i int) int {
	children := elems[i].GetNumChildren()
	i++
	for n := int32(0); n < children && i < len(elems); n++ {
		i = skipSubtree(elems, i)
	}
	return i
}
