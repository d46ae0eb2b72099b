// Package dat runs the Delta Acceptance Testing reader cases against the
// snapshot engine and the data file decoder.
package dat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"delta-gateway/internal/datafile"
	"delta-gateway/internal/delta"
	"delta-gateway/internal/logging"
	"delta-gateway/internal/storage"
)

// VersionMetadata is expected/<v>/table_version_metadata.json.
type VersionMetadata struct {
	Version          int64 `json:"version"`
	MinReaderVersion int   `json:"min_reader_version"`
	MinWriterVersion int   `json:"min_writer_version"`
}

// Case is one expected version of one generated table.
type Case struct {
	Name     string
	Dir      string
	Info     map[string]interface{}
	Expected string // "latest" or "vN"
	Version  delta.RequestedVersion
	Metadata VersionMetadata
}

func (c Case) String() string {
	return fmt.Sprintf("%s (version=%s)", c.Name, c.Expected)
}

// Result is the outcome of one case. Err is nil when the case passed.
type Result struct {
	Case Case
	Rows int
	Err  error
}

func (r Result) Passed() bool { return r.Err == nil }

// Runner executes cases read from fs.
type Runner struct {
	fs     afero.Fs
	store  storage.Store
	caps   delta.Capabilities
	reader *datafile.Reader
}

func NewRunner(fs afero.Fs, caps delta.Capabilities) *Runner {
	store := storage.NewAferoStore(fs, "")
	return &Runner{
		fs:     fs,
		store:  store,
		caps:   caps,
		reader: datafile.NewReader(store),
	}
}

// Discover lists the cases under dir. Each subdirectory holding a
// test_case_info.json is a table; each directory under its expected/ folder
// is a version to check.
func (r *Runner) Discover(dir string) ([]Case, error) {
	entries, err := afero.ReadDir(r.fs, fsPath(dir))
	if err != nil {
		return nil, fmt.Errorf("read case directory %s: %w", dir, err)
	}

	var cases []Case
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		caseDir := path.Join(dir, e.Name())
		infoData, err := afero.ReadFile(r.fs, fsPath(path.Join(caseDir, "test_case_info.json")))
		if err != nil {
			continue
		}
		info := map[string]interface{}{}
		if err := json.Unmarshal(infoData, &info); err != nil {
			return nil, fmt.Errorf("%s: invalid test_case_info.json: %w", caseDir, err)
		}
		name, _ := info["name"].(string)
		if name == "" {
			name = e.Name()
		}

		versions, err := afero.ReadDir(r.fs, fsPath(path.Join(caseDir, "expected")))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", caseDir, err)
		}
		for _, v := range versions {
			if !v.IsDir() {
				continue
			}
			c, err := r.loadCase(caseDir, name, info, v.Name())
			if err != nil {
				return nil, err
			}
			cases = append(cases, c)
		}
	}
	slices.SortFunc(cases, func(a, b Case) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Expected, b.Expected)
	})
	return cases, nil
}

func (r *Runner) loadCase(caseDir, name string, info map[string]interface{}, expected string) (Case, error) {
	c := Case{Name: name, Dir: caseDir, Info: info, Expected: expected, Version: delta.Latest()}
	if expected != "latest" {
		v, err := strconv.ParseInt(strings.TrimPrefix(expected, "v"), 10, 64)
		if err != nil || !strings.HasPrefix(expected, "v") {
			return Case{}, fmt.Errorf("%s: unexpected version directory %q", caseDir, expected)
		}
		c.Version = delta.Exact(v)
	}

	metaPath := path.Join(caseDir, "expected", expected, "table_version_metadata.json")
	data, err := afero.ReadFile(r.fs, fsPath(metaPath))
	if err != nil {
		return Case{}, fmt.Errorf("read %s: %w", metaPath, err)
	}
	if err := json.Unmarshal(data, &c.Metadata); err != nil {
		return Case{}, fmt.Errorf("%s: %w", metaPath, err)
	}
	return c, nil
}

// Run executes every case and returns one result per case.
func (r *Runner) Run(ctx context.Context, cases []Case) []Result {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		res := r.RunCase(ctx, c)
		if res.Err != nil {
			logging.Warnf(ctx, "dat case %s failed: %v", c, res.Err)
		} else {
			logging.Infof(ctx, "dat case %s passed (%d rows)", c, res.Rows)
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) RunCase(ctx context.Context, c Case) Result {
	res := Result{Case: c}
	root := path.Join(c.Dir, "delta")

	snap, err := delta.Open(ctx, r.store, root, c.Version, delta.WithCapabilities(r.caps))
	if err != nil {
		res.Err = fmt.Errorf("open table: %w", err)
		return res
	}

	if snap.Version() != c.Metadata.Version {
		res.Err = fmt.Errorf("version: got %d, want %d", snap.Version(), c.Metadata.Version)
		return res
	}
	p := snap.Protocol()
	if p.MinReaderVersion != c.Metadata.MinReaderVersion || p.MinWriterVersion != c.Metadata.MinWriterVersion {
		res.Err = fmt.Errorf("protocol: got (%d, %d), want (%d, %d)",
			p.MinReaderVersion, p.MinWriterVersion, c.Metadata.MinReaderVersion, c.Metadata.MinWriterVersion)
		return res
	}

	actual, err := r.reader.ReadTable(ctx, snap)
	if snap.Readable() != nil {
		if !errors.Is(err, delta.ErrUnsupportedProtocol) {
			res.Err = fmt.Errorf("expected unsupported protocol error, got %v", err)
		}
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("read table: %w", err)
		return res
	}

	expected, err := r.expectedRows(ctx, c, snap.Schema())
	if err != nil {
		res.Err = err
		return res
	}
	res.Rows = len(actual)
	res.Err = compareRows(expected, actual)
	return res
}

// expectedRows reads expected/<v>/table_content, either one Parquet file or a
// directory of them.
func (r *Runner) expectedRows(ctx context.Context, c Case, schema *delta.StructType) ([]datafile.Row, error) {
	base := path.Join(c.Dir, "expected", c.Expected)
	var files []string
	if ok, _ := afero.Exists(r.fs, fsPath(path.Join(base, "table_content.parquet"))); ok {
		files = append(files, path.Join(base, "table_content.parquet"))
	} else {
		entries, err := afero.ReadDir(r.fs, fsPath(path.Join(base, "table_content")))
		if err != nil {
			return nil, fmt.Errorf("read expected content: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".parquet") {
				files = append(files, path.Join(base, "table_content", e.Name()))
			}
		}
	}

	var rows []datafile.Row
	for _, f := range files {
		cols, err := r.reader.Columns(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("read expected schema: %w", err)
		}
		if err := compareSchema(schema, cols); err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(f), err)
		}
		got, err := r.reader.ReadParquet(ctx, f, schema)
		if err != nil {
			return nil, fmt.Errorf("read expected content: %w", err)
		}
		rows = append(rows, got...)
	}
	return rows, nil
}

// fsPath anchors p at the filesystem root, matching the store's layout.
func fsPath(p string) string {
	return path.Clean("/" + p)
}

// physicalTypes lists the Parquet physical types a table column type may be
// stored as.
func physicalTypes(dt delta.DataType) []string {
	switch t := dt.(type) {
	case *delta.DecimalType:
		return []string{"INT32", "INT64", "FIXED_LEN_BYTE_ARRAY", "BYTE_ARRAY"}
	case *delta.PrimitiveType:
		switch t.Name {
		case "string", "binary":
			return []string{"BYTE_ARRAY"}
		case "long":
			return []string{"INT64"}
		case "integer", "short", "byte", "date":
			return []string{"INT32"}
		case "float":
			return []string{"FLOAT"}
		case "double":
			return []string{"DOUBLE"}
		case "boolean":
			return []string{"BOOLEAN"}
		case "timestamp", "timestamp_ntz":
			return []string{"INT64", "INT96"}
		}
	}
	return []string{datafile.GroupType}
}

// compareSchema checks that cols hold exactly the table columns with
// compatible storage types.
func compareSchema(schema *delta.StructType, cols []datafile.Column) error {
	if schema == nil {
		return errors.New("schema mismatch: table schema is unknown")
	}
	byName := make(map[string]datafile.Column, len(cols))
	for _, c := range cols {
		byName[strings.ToLower(c.Name)] = c
	}
	if len(byName) != len(schema.Fields) {
		return fmt.Errorf("schema mismatch: got %d columns, table has %d", len(byName), len(schema.Fields))
	}
	for _, f := range schema.Fields {
		c, ok := byName[strings.ToLower(f.Name)]
		if !ok {
			return fmt.Errorf("schema mismatch: column %s is missing", f.Name)
		}
		if want := physicalTypes(f.Type); !slices.Contains(want, c.Type) {
			return fmt.Errorf("schema mismatch: column %s is %s, table type %s needs one of %v",
				f.Name, c.Type, f.Type.TypeName(), want)
		}
	}
	return nil
}

func compareRows(expected, actual []datafile.Row) error {
	if len(expected) != len(actual) {
		return fmt.Errorf("row count: got %d, want %d", len(actual), len(expected))
	}
	want, err := canonical(expected)
	if err != nil {
		return err
	}
	got, err := canonical(actual)
	if err != nil {
		return err
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("row mismatch: got %s, want %s", got[i], want[i])
		}
	}
	return nil
}

// canonical renders rows as sorted JSON strings; map keys marshal in order.
func canonical(rows []datafile.Row) ([]string, error) {
	out := make([]string, len(rows))
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		out[i] = string(data)
	}
	slices.Sort(out)
	return out, nil
}
