package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"

	"tasktrace/internal/perfdata"
)

func createJsonReport(fig *perfdata.Figure) (out []byte, err error) {
	type outPoint [2]float64
	type outSeries struct {
		Label  string     `json:"label"`
		Points []outPoint `json:"points"`
	}
	type outPanel struct {
		Title  string      `json:"title,omitempty"`
		Row    string      `json:"row,omitempty"`
		Col    string      `json:"col,omitempty"`
		Series []outSeries `json:"series"`
	}
	type outReport struct {
		Title  string        `json:"title,omitempty"`
		XAxis  perfdata.Axis `json:"xaxis"`
		YAxis  perfdata.Axis `json:"yaxis"`
		Panels [][]outPanel  `json:"panels"`
	}
	oReport := outReport{Title: fig.Title, XAxis: fig.XAxis, YAxis: fig.YAxis}
	for _, row := range fig.Panels {
		var oRow []outPanel
		for _, panel := range row {
			oPanel := outPanel{Title: fig.PanelTitle(panel), Row: panel.Row, Col: panel.Col, Series: []outSeries{}}
			for _, s := range panel.Series {
				oSeries := outSeries{Label: s.Label}
				for _, p := range s.Points {
					oSeries.Points = append(oSeries.Points, outPoint{p.X, p.Y})
				}
				oPanel.Series = append(oPanel.Series, oSeries)
			}
			oRow = append(oRow, oPanel)
		}
		oReport.Panels = append(oReport.Panels, oRow)
	}
	return json.MarshalIndent(oReport, "", " ")
}
