package perfdata

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Axis describes one chart axis
type Axis struct {
	Label  string    `yaml:"label"`
	Limits []float64 `yaml:"limits"` // min and max, empty for automatic
	Scale  string    `yaml:"scale"`  // linear or log
	Base   float64   `yaml:"base"`   // log base
}

const (
	ScaleLinear = "linear"
	ScaleLog    = "log"
)

// Validate checks the axis settings and fills in defaults
func (a *Axis) Validate() error {
	if a.Scale == "" {
		a.Scale = ScaleLinear
	}
	if a.Scale != ScaleLinear && a.Scale != ScaleLog {
		return fmt.Errorf("invalid axis scale %q, expected %s or %s", a.Scale, ScaleLinear, ScaleLog)
	}
	if a.Base == 0 {
		a.Base = 10
	}
	if a.Base <= 1 {
		return fmt.Errorf("invalid axis base %g", a.Base)
	}
	if len(a.Limits) != 0 && (len(a.Limits) != 2 || a.Limits[0] >= a.Limits[1]) {
		return fmt.Errorf("invalid axis limits %v, expected min and max", a.Limits)
	}
	return nil
}

// Layout chooses what a Figure plots
type Layout struct {
	Title  string   `yaml:"title"`
	X      string   `yaml:"x"`
	Y      string   `yaml:"y"`
	Groups []string `yaml:"groups"` // series are split by these columns, outermost first
	Rows   string   `yaml:"rows"`   // one row of panels per value, optional
	Cols   string   `yaml:"cols"`   // one column of panels per value, optional
	XAxis  Axis     `yaml:"xaxis"`
	YAxis  Axis     `yaml:"yaxis"`
	Filter Filter   `yaml:",inline"`
}

// Point is one averaged sample of a series
type Point struct {
	X float64
	Y float64
}

// Series is a labelled line of points sorted by X
type Series struct {
	Label  string
	Points []Point
}

// Panel is one chart of the grid
type Panel struct {
	Row    string // row value, empty without a rows column
	Col    string // column value, empty without a cols column
	Series []Series
}

// Figure is a grid of panels sharing axis settings
type Figure struct {
	Title     string
	RowColumn string
	ColColumn string
	RowValues []string
	ColValues []string
	Panels    [][]Panel // [row][col]
	XAxis     Axis
	YAxis     Axis
}

// NumRows returns the number of panel rows
func (f *Figure) NumRows() int {
	return len(f.Panels)
}

// NumCols returns the number of panel columns
func (f *Figure) NumCols() int {
	if len(f.Panels) == 0 {
		return 0
	}
	return len(f.Panels[0])
}

// PanelTitle names a panel by its row and column values
func (f *Figure) PanelTitle(p Panel) string {
	var parts []string
	if f.RowColumn != "" {
		parts = append(parts, f.RowColumn+" "+p.Row)
	}
	if f.ColColumn != "" {
		parts = append(parts, f.ColColumn+" "+p.Col)
	}
	return strings.Join(parts, ", ")
}

// Validate checks that the layout can be built from t
func (l *Layout) Validate(t *Table) error {
	if l.X == "" || l.Y == "" {
		return errors.New("x and y columns are required")
	}
	columns := append([]string{l.X, l.Y}, l.Groups...)
	if l.Rows != "" {
		columns = append(columns, l.Rows)
	}
	if l.Cols != "" {
		columns = append(columns, l.Cols)
	}
	for _, c := range columns {
		if !t.HasColumn(c) {
			return fmt.Errorf("column %s not found, have %s", c, strings.Join(t.Columns, ", "))
		}
	}
	if err := l.XAxis.Validate(); err != nil {
		return fmt.Errorf("x axis: %w", err)
	}
	if err := l.YAxis.Validate(); err != nil {
		return fmt.Errorf("y axis: %w", err)
	}
	return nil
}

// BuildFigure filters t and arranges it into the panels and series of layout
func BuildFigure(t *Table, layout Layout) (*Figure, error) {
	if err := layout.Validate(t); err != nil {
		return nil, err
	}
	data, err := layout.Filter.Apply(t)
	if err != nil {
		return nil, err
	}
	if data.Len() == 0 {
		return nil, errors.New("no rows left after filtering")
	}
	fig := &Figure{
		Title:     layout.Title,
		RowColumn: layout.Rows,
		ColColumn: layout.Cols,
		XAxis:     layout.XAxis,
		YAxis:     layout.YAxis,
	}
	rowValues := []Value{{}}
	if layout.Rows != "" {
		rowValues = data.Unique(layout.Rows)
		fig.RowValues = strs(rowValues)
	}
	colValues := []Value{{}}
	if layout.Cols != "" {
		colValues = data.Unique(layout.Cols)
		fig.ColValues = strs(colValues)
	}
	for _, rv := range rowValues {
		rsubset := data
		if layout.Rows != "" {
			rsubset = data.where(func(r Row) bool { return r[layout.Rows].Str == rv.Str })
		}
		var panels []Panel
		for _, cv := range colValues {
			csubset := rsubset
			if layout.Cols != "" {
				csubset = rsubset.where(func(r Row) bool { return r[layout.Cols].Str == cv.Str })
			}
			series, err := buildSeries(csubset, layout.X, layout.Y, layout.Groups, "")
			if err != nil {
				return nil, err
			}
			panels = append(panels, Panel{Row: rv.Str, Col: cv.Str, Series: series})
		}
		fig.Panels = append(fig.Panels, panels)
	}
	return fig, nil
}

// buildSeries splits rows by the first group column and recurses into the
// rest. Each leaf becomes one series labelled with its group values.
func buildSeries(t *Table, x, y string, groups []string, prefix string) ([]Series, error) {
	if len(groups) == 0 {
		label := prefix
		if label == "" {
			label = y
		}
		points, err := averagePoints(t, x, y)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			return nil, nil
		}
		return []Series{{Label: label, Points: points}}, nil
	}
	head, tail := groups[0], groups[1:]
	var out []Series
	for _, g := range t.Unique(head) {
		subset := t.where(func(r Row) bool { return r[head].Str == g.Str })
		label := g.Str
		if prefix != "" {
			label = prefix + "," + g.Str
		}
		series, err := buildSeries(subset, x, y, tail, label)
		if err != nil {
			return nil, err
		}
		out = append(out, series...)
	}
	return out, nil
}

// averagePoints averages y over rows sharing an x value
func averagePoints(t *Table, x, y string) ([]Point, error) {
	type acc struct {
		sum float64
		n   int
	}
	sums := make(map[float64]*acc)
	for _, row := range t.Rows {
		xv, yv := row[x], row[y]
		if !xv.IsNum || !yv.IsNum {
			return nil, fmt.Errorf("cannot plot %s=%q against %s=%q, values must be numbers", y, yv.Str, x, xv.Str)
		}
		a, ok := sums[xv.Num]
		if !ok {
			a = &acc{}
			sums[xv.Num] = a
		}
		a.sum += yv.Num
		a.n++
	}
	points := make([]Point, 0, len(sums))
	for xv, a := range sums {
		points = append(points, Point{X: xv, Y: a.sum / float64(a.n)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].X < points[j].X })
	return points, nil
}

func strs(values []Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Str
	}
	return out
}
