package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	texttemplate "text/template" // nosemgrep

	"tasktrace/internal/perfdata"
)

func getHtmlReportBegin(title string, numCols int) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html>
<html lang="en">
`)
	sb.WriteString("<head>\n")
	sb.WriteString(`    <meta charset="UTF-8">
    <title>` + html.EscapeString(title) + `</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
`)
	// link the style sheets and javascript
	sb.WriteString(`
	<link rel="stylesheet" href="https://unpkg.com/normalize.css@8.0.1/normalize.css" integrity="sha384-M86HUGbBFILBBZ9ykMAbT3nVb0+2C7yZlF8X2CiKNpDOQjKroMJqIeGZ/Le8N2Qp" crossorigin="anonymous" referrerpolicy="no-referrer" />
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/purecss@3.0.0/build/pure-min.css" integrity="sha384-X38yfunGUhNzHpBaEBsWLO+A0HDYOQi8ufWDkZ0k9e0eXz/tH3II7uKZ9msv++Ls" crossorigin="anonymous" referrerpolicy="no-referrer" />
    <script src="https://unpkg.com/chart.js@3.7.1/dist/chart.min.js" integrity="sha384-7NrRHqlWUj2hJl3a/dZj/a1GxuQc56mJ3aYsEnydBYrY1jR+RSt6SBvK3sHfj+mJ" crossorigin="anonymous"  referrerpolicy="no-referrer"></script>
	`)
	sb.WriteString(fmt.Sprintf(`
	<style>
        .content {
            padding: 0 2em;
            line-height: 1.6em;
        }
        .content h2 {
            font-weight: 300;
            color: #888;
        }
        .figure-grid {
            display: grid;
            grid-template-columns: auto repeat(%d, minmax(0, 1fr));
            gap: 1em;
            align-items: center;
        }
        .col-title {
            text-align: center;
            font-size: large;
        }
        .row-title {
            writing-mode: vertical-rl;
            transform: rotate(180deg);
            font-size: large;
        }
	</style>
`, numCols))
	sb.WriteString("</head>\n")
	return sb.String()
}

func createHtmlReport(fig *perfdata.Figure) (out []byte, err error) {
	title := fig.Title
	if title == "" {
		title = fmt.Sprintf("%s vs %s", fig.YAxis.Label, fig.XAxis.Label)
	}
	var sb strings.Builder
	sb.WriteString(getHtmlReportBegin(title, fig.NumCols()))

	// body starts here
	sb.WriteString("<body>\n")
	sb.WriteString("<main class=\"content\">\n")
	sb.WriteString("<h1>" + html.EscapeString(title) + "</h1>\n")
	sb.WriteString(`
<noscript>
	<h3>JavaScript is disabled. Charts cannot be displayed.</h3>
</noscript>
`)
	sb.WriteString("<div class=\"figure-grid\">\n")
	// column titles across the top
	if fig.ColColumn != "" {
		sb.WriteString("<div></div>\n")
		for _, v := range fig.ColValues {
			sb.WriteString(fmt.Sprintf("<div class=\"col-title\">%s</div>\n", html.EscapeString(fig.ColColumn+" "+v)))
		}
	}
	for rowIdx, row := range fig.Panels {
		if fig.RowColumn != "" {
			sb.WriteString(fmt.Sprintf("<div class=\"row-title\">%s</div>\n", html.EscapeString(fig.RowColumn+" "+fig.RowValues[rowIdx])))
		} else {
			sb.WriteString("<div></div>\n")
		}
		for colIdx, panel := range row {
			sb.WriteString("<div>\n")
			if len(panel.Series) == 0 {
				sb.WriteString("<p>" + NoDataFound + "</p>\n")
			} else {
				sb.WriteString(renderPanel(fig, panel, fmt.Sprintf("panel_%d_%d", rowIdx, colIdx)))
			}
			sb.WriteString("</div>\n")
		}
	}
	sb.WriteString("</div>\n") // end of figure-grid
	sb.WriteString("</main>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")
	out = []byte(sb.String())
	return
}

func renderPanel(fig *perfdata.Figure, panel perfdata.Panel, id string) string {
	var data [][]ScatterPoint
	var names []string
	for _, s := range panel.Series {
		points := make([]ScatterPoint, 0, len(s.Points))
		for _, p := range s.Points {
			points = append(points, ScatterPoint{X: p.X, Y: p.Y})
		}
		data = append(data, points)
		names = append(names, s.Label)
	}
	config := ChartTemplateStruct{
		ID:            id,
		XaxisText:     fig.XAxis.Label,
		YaxisText:     fig.YAxis.Label,
		XaxisType:     axisType(fig.XAxis),
		YaxisType:     axisType(fig.YAxis),
		XaxisLimits:   axisLimits(fig.XAxis),
		YaxisLimits:   axisLimits(fig.YAxis),
		TitleText:     fig.PanelTitle(panel),
		DisplayTitle:  "false",
		DisplayLegend: "true",
		AspectRatio:   "2",
	}
	return RenderScatterChart(data, names, config)
}

func axisType(a perfdata.Axis) string {
	if a.Scale == perfdata.ScaleLog {
		return "logarithmic"
	}
	return "linear"
}

func axisLimits(a perfdata.Axis) string {
	if len(a.Limits) != 2 {
		return ""
	}
	return fmt.Sprintf("min: %s, max: %s,", formatNumber(a.Limits[0]), formatNumber(a.Limits[1]))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

const datasetTemplate = `
{
	label: '{{.Label}}',
	data: [{{.Data}}],
	backgroundColor: '{{.Color}}',
	borderColor: '{{.Color}}',
	borderWidth: 1,
	pointStyle: '{{.PointStyle}}',
	pointRadius: 4,
	showLine: true
}
`
const scatterChartTemplate = `<div class="chart-container">
<canvas id="{{.ID}}"></canvas>
</div>
<script>
new Chart(document.getElementById('{{.ID}}'), {
    type: 'scatter',
    data: {
        datasets: [{{.Datasets}}]
    },
    options: {
        aspectRatio: {{.AspectRatio}},
        scales: {
            x: {
                type: '{{.XaxisType}}',
                {{.XaxisLimits}}
                title: {
                    text: "{{.XaxisText}}",
                    display: true
                }
            },
            y: {
                type: '{{.YaxisType}}',
                {{.YaxisLimits}}
                title: {
                    text: "{{.YaxisText}}",
                    display: true
                }
            }
        },
        plugins: {
            title: {
                text: "{{.TitleText}}",
                display: {{.DisplayTitle}},
                font: {
                    size: 18
                }
            },
            tooltip: {
                callbacks: {
                    label: function(ctx) {
                        return ctx.dataset.label + " (" + ctx.parsed.x + ", " + ctx.parsed.y + ")";
                    }
                }
            },
            legend: {
                display: {{.DisplayLegend}}
            }
        }
    }
});
</script>
`

type ChartTemplateStruct struct {
	ID            string
	Datasets      string
	XaxisText     string
	YaxisText     string
	XaxisType     string // linear or logarithmic
	YaxisType     string
	XaxisLimits   string // min and max options, empty for automatic
	YaxisLimits   string
	TitleText     string
	DisplayTitle  string
	DisplayLegend string
	AspectRatio   string
}

type ScatterPoint struct {
	X float64
	Y float64
}

// RenderScatterChart generates an HTML string for a scatter chart using the provided data and configuration.
// Each inner slice of data is one dataset, drawn as a line through its points.
func RenderScatterChart(data [][]ScatterPoint, datasetNames []string, config ChartTemplateStruct) string {
	datasets := []string{}
	dst := texttemplate.Must(texttemplate.New("datasetTemplate").Parse(datasetTemplate))
	for dataIdx := range data {
		formattedPoints := []string{}
		for _, point := range data[dataIdx] {
			formattedPoints = append(formattedPoints, fmt.Sprintf("{x: %s, y: %s}", formatNumber(point.X), formatNumber(point.Y)))
		}
		buf := new(bytes.Buffer)
		err := dst.Execute(buf, struct {
			Label      string
			Data       string
			Color      string
			PointStyle string
		}{
			Label:      texttemplate.JSEscapeString(datasetNames[dataIdx]),
			Data:       strings.Join(formattedPoints, ","),
			Color:      getColor(dataIdx),
			PointStyle: getPointStyle(dataIdx),
		})
		if err != nil {
			slog.Error("error executing template", slog.String("error", err.Error()))
			return "Error rendering chart."
		}
		datasets = append(datasets, buf.String())
	}
	config.Datasets = strings.Join(datasets, ",")
	config.XaxisText = texttemplate.JSEscapeString(config.XaxisText)
	config.YaxisText = texttemplate.JSEscapeString(config.YaxisText)
	config.TitleText = texttemplate.JSEscapeString(config.TitleText)
	sct := texttemplate.Must(texttemplate.New("chartTemplate").Parse(scatterChartTemplate))
	buf := new(bytes.Buffer)
	err := sct.Execute(buf, config)
	if err != nil {
		slog.Error("error executing template", slog.String("error", err.Error()))
		return "Error rendering chart."
	}
	out := buf.String()
	out += "\n"
	return out
}

func getColor(idx int) string {
	// color-blind safe palette from here: http://mkweb.bcgsc.ca/colorblind/palettes.mhtml#page-container
	colors := []string{"#9F0162", "#009F81", "#FF5AAF", "#00FCCF", "#8400CD", "#008DF9", "#00C2F9", "#FFB2FD", "#A40122", "#E20134", "#FF6E3A", "#FFC33B"}
	return colors[idx%len(colors)]
}

// getPointStyle cycles the marker shapes, restarting for every chart
func getPointStyle(idx int) string {
	styles := []string{"cross", "circle", "rect", "star", "triangle", "rectRot", "crossRot", "rectRounded"}
	return styles[idx%len(styles)]
}
