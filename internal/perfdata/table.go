// Package perfdata loads performance measurement CSV files and arranges
// their rows into plot series
package perfdata

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// NumericColumns must hold numbers wherever they appear
var NumericColumns = []string{"futures", "time", "ftime", "numa", "threads"}

// Value is one cell. Cells that parse as numbers keep both forms.
type Value struct {
	Str   string
	Num   float64
	IsNum bool
}

// NewValue parses s into a Value
func NewValue(s string) Value {
	v := Value{Str: s}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		v.Num = f
		v.IsNum = true
	}
	return v
}

func (v Value) String() string {
	return v.Str
}

// Row maps column names to cells
type Row map[string]Value

// Table is an ordered set of columns and their rows
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the table has the named column
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Append adds the rows of other. Columns new to t are added in the order they
// appear in other; rows missing a column read as empty cells.
func (t *Table) Append(other *Table) {
	for _, c := range other.Columns {
		if !t.HasColumn(c) {
			t.Columns = append(t.Columns, c)
		}
	}
	t.Rows = append(t.Rows, other.Rows...)
}

// Unique returns the distinct values of a column sorted numerically when
// every value is a number and lexically otherwise
func (t *Table) Unique(column string) []Value {
	seen := mapset.NewThreadUnsafeSet[string]()
	var values []Value
	for _, row := range t.Rows {
		v := row[column]
		if seen.Add(v.Str) {
			values = append(values, v)
		}
	}
	sortValues(values)
	return values
}

func sortValues(values []Value) {
	numeric := true
	for _, v := range values {
		if !v.IsNum {
			numeric = false
			break
		}
	}
	sort.SliceStable(values, func(i, j int) bool {
		if numeric {
			return values[i].Num < values[j].Num
		}
		return values[i].Str < values[j].Str
	})
}

// where returns the rows for which keep is true
func (t *Table) where(keep func(Row) bool) *Table {
	out := &Table{Columns: t.Columns}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// ParseCSV reads a table with a header row. The first column is a row index
// and is dropped.
func ParseCSV(r io.Reader, name string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: missing header", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%s: expected an index column and at least one data column", name)
	}
	t := &Table{Columns: append([]string(nil), header[1:]...)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		line, _ := reader.FieldPos(0)
		row := make(Row, len(t.Columns))
		for i, col := range t.Columns {
			v := NewValue(record[i+1])
			if !v.IsNum && slices.Contains(NumericColumns, col) {
				return nil, fmt.Errorf("%s:%d: column %s: %q is not a number", name, line, col, record[i+1])
			}
			row[col] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadCSV reads a perf data file
func ReadCSV(path string) (*Table, error) {
	slog.Info("reading perf data", slog.String("file", path))
	file, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseCSV(file, path)
}

// LoadDir reads and concatenates every *-*.csv file in dir
func LoadDir(dir string) (*Table, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*-*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no *-*.csv files in %s", dir)
	}
	sort.Strings(paths)
	all := &Table{}
	for _, path := range paths {
		t, err := ReadCSV(path)
		if err != nil {
			return nil, err
		}
		all.Append(t)
	}
	slog.Debug("loaded perf data directory", slog.String("dir", dir), slog.Int("files", len(paths)), slog.Int("rows", all.Len()))
	return all, nil
}

// Dataset accumulates tables from several sources, loading each source once
type Dataset struct {
	Out     io.Writer
	table   Table
	sources mapset.Set[string]
}

// NewDataset returns an empty dataset that reports loads to out
func NewDataset(out io.Writer) *Dataset {
	if out == nil {
		out = io.Discard
	}
	return &Dataset{Out: out, sources: mapset.NewThreadUnsafeSet[string]()}
}

// Add appends t under the given source name. It returns false, and leaves
// the dataset unchanged, when the source was loaded before.
func (d *Dataset) Add(source string, t *Table) bool {
	if !d.sources.Add(source) {
		fmt.Fprintf(d.Out, "Data previously loaded %d lines\n", d.table.Len())
		return false
	}
	d.table.Append(t)
	fmt.Fprintf(d.Out, "Total data loaded %d lines\n", d.table.Len())
	return true
}

// Load reads a file or a directory of files and adds it under its path
func (d *Dataset) Load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if d.sources.Contains(path) {
		d.Add(path, nil)
		return nil
	}
	var t *Table
	if info.IsDir() {
		t, err = LoadDir(path)
	} else {
		t, err = ReadCSV(path)
	}
	if err != nil {
		return err
	}
	d.Add(path, t)
	return nil
}

// Table returns the accumulated rows
func (d *Dataset) Table() *Table {
	return &d.table
}
