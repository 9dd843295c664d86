package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"bytes"
	"fmt"

	"tasktrace/internal/perfdata"

	"github.com/xuri/excelize/v2"
)

const (
	XlsxChartsSheetName = "Charts"
	xlsxChartWidth      = 480
	xlsxChartHeight     = 300
	xlsxChartColSpan    = 9  // sheet columns between charts
	xlsxChartRowSpan    = 17 // sheet rows between charts
	xlsxDataFirstRow    = 3
)

func cellName(col int, row int) (name string) {
	columnName, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return
	}
	name, err = excelize.JoinCellName(columnName, row)
	if err != nil {
		return
	}
	return
}

// absRange returns an absolute reference to a cell range on sheet, e.g., 'Panel 1-1'!$A$3:$A$9
func absRange(sheet string, col, firstRow, lastRow int) string {
	columnName, _ := excelize.ColumnNumberToName(col)
	return fmt.Sprintf("'%s'!$%s$%d:$%s$%d", sheet, columnName, firstRow, columnName, lastRow)
}

func absCell(sheet string, col, row int) string {
	columnName, _ := excelize.ColumnNumberToName(col)
	return fmt.Sprintf("'%s'!$%s$%d", sheet, columnName, row)
}

func panelSheetName(row, col int) string {
	return fmt.Sprintf("Panel %d-%d", row+1, col+1)
}

// renderXlsxPanelData writes each series of panel as an x,y column pair and
// returns the chart series referencing them
func renderXlsxPanelData(fig *perfdata.Figure, panel perfdata.Panel, f *excelize.File, sheetName string) []excelize.ChartSeries {
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	})
	var series []excelize.ChartSeries
	for idx, s := range panel.Series {
		xCol := 2*idx + 1
		yCol := xCol + 1
		_ = f.SetCellValue(sheetName, cellName(xCol, 1), s.Label)
		_ = f.SetCellStyle(sheetName, cellName(xCol, 1), cellName(xCol, 1), boldStyle)
		_ = f.SetCellValue(sheetName, cellName(xCol, 2), fig.XAxis.Label)
		_ = f.SetCellValue(sheetName, cellName(yCol, 2), fig.YAxis.Label)
		for i, p := range s.Points {
			_ = f.SetCellValue(sheetName, cellName(xCol, xlsxDataFirstRow+i), p.X)
			_ = f.SetCellValue(sheetName, cellName(yCol, xlsxDataFirstRow+i), p.Y)
		}
		lastRow := xlsxDataFirstRow + len(s.Points) - 1
		series = append(series, excelize.ChartSeries{
			Name:       absCell(sheetName, xCol, 1),
			Categories: absRange(sheetName, xCol, xlsxDataFirstRow, lastRow),
			Values:     absRange(sheetName, yCol, xlsxDataFirstRow, lastRow),
			Marker: excelize.ChartMarker{
				Symbol: "auto",
				Size:   5,
			},
		})
	}
	_ = f.SetColWidth(sheetName, "A", cellColumn(2*len(panel.Series)), 15)
	return series
}

func cellColumn(col int) string {
	if col < 1 {
		col = 1
	}
	name, _ := excelize.ColumnNumberToName(col)
	return name
}

func xlsxAxis(a perfdata.Axis) excelize.ChartAxis {
	axis := excelize.ChartAxis{
		MajorGridLines: true,
	}
	if a.Label != "" {
		axis.Title = []excelize.RichTextRun{{Text: a.Label}}
	}
	if len(a.Limits) == 2 {
		minimum, maximum := a.Limits[0], a.Limits[1]
		axis.Minimum = &minimum
		axis.Maximum = &maximum
	}
	if a.Scale == perfdata.ScaleLog {
		axis.LogBase = a.Base
	}
	return axis
}

func createXlsxReport(fig *perfdata.Figure) (out []byte, err error) {
	f := excelize.NewFile()
	chartsSheet := XlsxChartsSheetName
	_ = f.SetSheetName("Sheet1", chartsSheet)
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 14,
		},
	})
	if fig.Title != "" {
		_ = f.SetCellValue(chartsSheet, cellName(1, 1), fig.Title)
		_ = f.SetCellStyle(chartsSheet, cellName(1, 1), cellName(1, 1), titleStyle)
	}
	for rowIdx, row := range fig.Panels {
		for colIdx, panel := range row {
			anchor := cellName(1+colIdx*xlsxChartColSpan, 2+rowIdx*xlsxChartRowSpan)
			if len(panel.Series) == 0 {
				_ = f.SetCellValue(chartsSheet, anchor, fmt.Sprintf("%s: %s", fig.PanelTitle(panel), NoDataFound))
				continue
			}
			sheetName := panelSheetName(rowIdx, colIdx)
			if _, err = f.NewSheet(sheetName); err != nil {
				err = fmt.Errorf("failed to add sheet %s: %v", sheetName, err)
				return
			}
			series := renderXlsxPanelData(fig, panel, f, sheetName)
			title := fig.PanelTitle(panel)
			if title == "" {
				title = fig.Title
			}
			chart := &excelize.Chart{
				Type:   excelize.Scatter,
				Series: series,
				Legend: excelize.ChartLegend{
					Position: "right",
				},
				XAxis: xlsxAxis(fig.XAxis),
				YAxis: xlsxAxis(fig.YAxis),
				Dimension: excelize.ChartDimension{
					Width:  xlsxChartWidth,
					Height: xlsxChartHeight,
				},
			}
			if title != "" {
				chart.Title = []excelize.RichTextRun{{Text: title}}
			}
			if err = f.AddChart(chartsSheet, anchor, chart); err != nil {
				err = fmt.Errorf("failed to add chart for %s: %v", sheetName, err)
				return
			}
		}
	}
	f.SetActiveSheet(0)
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	_, err = f.WriteTo(w)
	if err != nil {
		err = fmt.Errorf("failed to write xlsx report to buffer: %v", err)
		return
	}
	if err = w.Flush(); err != nil {
		err = fmt.Errorf("failed to flush xlsx report: %v", err)
		return
	}
	out = buf.Bytes()
	return
}
