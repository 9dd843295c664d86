package perfdata

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `,name,threads,futures,time,ftime,numa
0,async,1,1000,2.0,0.5,0
1,async,2,1000,1.0,0.5,0
2,async,2,1000,3.0,0.5,0
3,apply,1,1000,4.0,0.5,1
4,apply,2,1000,2.0,0.5,1
5,async,4,2000,0.5,0.5,1
`

func parseSample(t *testing.T) *Table {
	t.Helper()
	table, err := ParseCSV(strings.NewReader(sample), "sample.csv")
	require.NoError(t, err)
	return table
}

func TestParseCSVDropsIndexColumn(t *testing.T) {
	table := parseSample(t)
	assert.Equal(t, []string{"name", "threads", "futures", "time", "ftime", "numa"}, table.Columns)
	require.Equal(t, 6, table.Len())
	row := table.Rows[0]
	assert.Equal(t, "async", row["name"].Str)
	assert.False(t, row["name"].IsNum)
	assert.True(t, row["threads"].IsNum)
	assert.Equal(t, 2.0, row["time"].Num)
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "missing header"},
		{"index only", "idx\n0\n", "index column"},
		{"numeric column", ",threads\n0,many\n", "bad.csv:2: column threads"},
		{"field count", ",a,b\n0,1\n", "bad.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input), "bad.csv")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUniqueSortsNumerically(t *testing.T) {
	table := parseSample(t)
	assert.Equal(t, []string{"1", "2", "4"}, strs(table.Unique("threads")))
	assert.Equal(t, []string{"apply", "async"}, strs(table.Unique("name")))
}

func TestLoadDirAndDataset(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run-1.csv"), []byte(sample), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run-2.csv"), []byte(sample), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.csv"), []byte(sample), 0644))

	table, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 12, table.Len())

	var out bytes.Buffer
	ds := NewDataset(&out)
	require.NoError(t, ds.Load(dir))
	require.NoError(t, ds.Load(dir))
	assert.Equal(t, 12, ds.Table().Len())
	assert.Contains(t, out.String(), "Total data loaded 12 lines")
	assert.Contains(t, out.String(), "Data previously loaded 12 lines")

	assert.False(t, ds.Add(dir, table))
	assert.True(t, ds.Add("other", table))
	assert.Equal(t, 24, ds.Table().Len())

	_, err = LoadDir(t.TempDir())
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	table := parseSample(t)
	tests := []struct {
		name    string
		filter  Filter
		want    int
		wantErr bool
	}{
		{name: "none", filter: Filter{}, want: 6},
		{name: "select string", filter: Filter{Select: map[string][]string{"name": {"apply"}}}, want: 2},
		{name: "select numbers", filter: Filter{Select: map[string][]string{"threads": {"1", "4.0"}}}, want: 3},
		{name: "where", filter: Filter{Where: "threads > 1 && name == 'async'"}, want: 3},
		{name: "select and where", filter: Filter{Select: map[string][]string{"numa": {"1"}}, Where: "time >= 2"}, want: 2},
		{name: "invalid expression", filter: Filter{Where: "threads >"}, wantErr: true},
		{name: "unknown column", filter: Filter{Where: "cores > 1"}, wantErr: true},
		{name: "not boolean", filter: Filter{Where: "threads + 1"}, wantErr: true},
		{name: "unknown select column", filter: Filter{Select: map[string][]string{"cores": {"1"}}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.filter.Apply(table)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Len())
		})
	}
}

func TestParseSelect(t *testing.T) {
	sel, err := ParseSelect([]string{"name=async|apply", "numa = 0"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"name": {"async", "apply"}, "numa": {"0"}}, sel)

	for _, bad := range []string{"name", "=x", "name="} {
		_, err := ParseSelect([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestBuildFigureAveragesDuplicateX(t *testing.T) {
	table := parseSample(t)
	fig, err := BuildFigure(table, Layout{X: "threads", Y: "time", Groups: []string{"name"}})
	require.NoError(t, err)
	require.Equal(t, 1, fig.NumRows())
	require.Equal(t, 1, fig.NumCols())
	series := fig.Panels[0][0].Series
	require.Len(t, series, 2)
	assert.Equal(t, "apply", series[0].Label)
	assert.Equal(t, []Point{{1, 4}, {2, 2}}, series[0].Points)
	assert.Equal(t, "async", series[1].Label)
	assert.Equal(t, []Point{{1, 2}, {2, 2}, {4, 0.5}}, series[1].Points)
	assert.Equal(t, ScaleLinear, fig.XAxis.Scale)
	assert.Equal(t, 10.0, fig.YAxis.Base)
}

func TestBuildFigurePanelsAndNestedGroups(t *testing.T) {
	table := parseSample(t)
	fig, err := BuildFigure(table, Layout{
		X:      "threads",
		Y:      "time",
		Groups: []string{"futures", "name"},
		Cols:   "numa",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, fig.ColValues)
	require.Equal(t, 1, fig.NumRows())
	require.Equal(t, 2, fig.NumCols())
	assert.Equal(t, "numa 1", fig.PanelTitle(fig.Panels[0][1]))

	var labels []string
	for _, s := range fig.Panels[0][1].Series {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"1000,apply", "2000,async"}, labels)
}

func TestBuildFigureRowsUseSortedValues(t *testing.T) {
	table := parseSample(t)
	fig, err := BuildFigure(table, Layout{X: "threads", Y: "time", Rows: "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"apply", "async"}, fig.RowValues)
	require.Equal(t, 2, fig.NumRows())
	assert.Equal(t, "apply", fig.Panels[0][0].Row)
	assert.Equal(t, "time", fig.Panels[0][0].Series[0].Label)
}

func TestBuildFigureErrors(t *testing.T) {
	table := parseSample(t)
	tests := []struct {
		name   string
		layout Layout
	}{
		{"missing y", Layout{X: "threads"}},
		{"unknown column", Layout{X: "threads", Y: "latency"}},
		{"non numeric y", Layout{X: "threads", Y: "name"}},
		{"bad scale", Layout{X: "threads", Y: "time", XAxis: Axis{Scale: "cubic"}}},
		{"bad limits", Layout{X: "threads", Y: "time", YAxis: Axis{Limits: []float64{5, 1}}}},
		{"filtered to nothing", Layout{X: "threads", Y: "time", Filter: Filter{Where: "threads > 100"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildFigure(table, tt.layout)
			assert.Error(t, err)
		})
	}
}
