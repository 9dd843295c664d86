package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"tasktrace/internal/perfdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testFigure() *perfdata.Figure {
	return &perfdata.Figure{
		Title:     "Task time",
		ColColumn: "numa",
		ColValues: []string{"0", "1"},
		XAxis:     perfdata.Axis{Label: "threads", Scale: perfdata.ScaleLog, Base: 2, Limits: []float64{1, 64}},
		YAxis:     perfdata.Axis{Label: "time", Scale: perfdata.ScaleLinear, Base: 10},
		Panels: [][]perfdata.Panel{{
			{Col: "0", Series: []perfdata.Series{
				{Label: "1000,async", Points: []perfdata.Point{{X: 1, Y: 2}, {X: 2, Y: 1.5}}},
				{Label: "1000,o'apply", Points: []perfdata.Point{{X: 1, Y: 4}}},
			}},
			{Col: "1"},
		}},
	}
}

func TestCreateHtml(t *testing.T) {
	out, err := Create(FormatHtml, testFigure())
	require.NoError(t, err)
	page := string(out)
	assert.Contains(t, page, "<title>Task time</title>")
	assert.Contains(t, page, "chart.js")
	assert.Contains(t, page, "repeat(2, minmax(0, 1fr))")
	assert.Contains(t, page, `<div class="col-title">numa 0</div>`)
	assert.Contains(t, page, "new Chart(document.getElementById('panel_0_0')")
	assert.NotContains(t, page, "panel_0_1", "empty panels get no chart")
	assert.Contains(t, page, NoDataFound)
	assert.Contains(t, page, "type: 'logarithmic'")
	assert.Contains(t, page, "min: 1, max: 64,")
	assert.Contains(t, page, "{x: 2, y: 1.5}")
	assert.Contains(t, page, `label: '1000,o\'apply'`)
	assert.Equal(t, 2, strings.Count(page, "pointStyle:"))
}

func TestCreateXlsx(t *testing.T) {
	out, err := Create(FormatXlsx, testFigure())
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{XlsxChartsSheetName, "Panel 1-1"}, f.GetSheetList())

	title, err := f.GetCellValue(XlsxChartsSheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Task time", title)
	empty, err := f.GetCellValue(XlsxChartsSheetName, cellName(1+xlsxChartColSpan, 2))
	require.NoError(t, err)
	assert.Contains(t, empty, NoDataFound)

	label, err := f.GetCellValue("Panel 1-1", "C1")
	require.NoError(t, err)
	assert.Equal(t, "1000,o'apply", label)
	y, err := f.GetCellValue("Panel 1-1", "B4")
	require.NoError(t, err)
	assert.Equal(t, "1.5", y)
}

func TestCreateJson(t *testing.T) {
	out, err := Create(FormatJson, testFigure())
	require.NoError(t, err)
	var decoded struct {
		Title  string
		Panels [][]struct {
			Title  string
			Series []struct {
				Label  string
				Points [][2]float64
			}
		}
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "Task time", decoded.Title)
	require.Len(t, decoded.Panels, 1)
	require.Len(t, decoded.Panels[0], 2)
	assert.Equal(t, "numa 0", decoded.Panels[0][0].Title)
	assert.Equal(t, [][2]float64{{1, 2}, {2, 1.5}}, decoded.Panels[0][0].Series[0].Points)
	assert.Empty(t, decoded.Panels[0][1].Series)
}

func TestCreateRejectsEmptyFigure(t *testing.T) {
	_, err := Create(FormatHtml, &perfdata.Figure{})
	assert.Error(t, err)
	assert.Panics(t, func() { _, _ = Create("pdf", testFigure()) })
}

func TestAbsRange(t *testing.T) {
	assert.Equal(t, "'Panel 1-2'!$C$3:$C$9", absRange(panelSheetName(0, 1), 3, 3, 9))
	assert.Equal(t, "'Panel 2-1'!$A$1", absCell(panelSheetName(1, 0), 1, 1))
}
