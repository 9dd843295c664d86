// Package plot is a subcommand of the root command. It charts perf data CSV files as panels of series.
package plot

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v2"

	"tasktrace/internal/common"
	"tasktrace/internal/perfdata"
	"tasktrace/internal/report"
	"tasktrace/internal/util"
)

const cmdName = "plot"

var examples = []string{
	fmt.Sprintf("  Time against threads by test:      $ %s %s --input results --x threads --y time --group name", common.AppName, cmdName),
	fmt.Sprintf("  One panel row per NUMA setting:    $ %s %s --input results --x threads --y time --group name --rows numa", common.AppName, cmdName),
	fmt.Sprintf("  Selected tests, log y axis:        $ %s %s --input results --x threads --y time --select name=apply|async --yscale log", common.AppName, cmdName),
	fmt.Sprintf("  Layout from a file:                $ %s %s --input a-1.csv --input b-1.csv --layout layout.yaml --format html", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Plot perf data CSV files",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

// flag vars
var (
	flagInput  []string
	flagLayout string
	flagFormat []string
	flagOutput string

	flagTitle  string
	flagX      string
	flagY      string
	flagGroup  []string
	flagRows   string
	flagCols   string
	flagSelect []string
	flagWhere  string

	flagXLabel string
	flagYLabel string
	flagXLim   []float64
	flagYLim   []float64
	flagXScale string
	flagYScale string
	flagXBase  float64
	flagYBase  float64
)

// flag names
const (
	flagInputName  = "input"
	flagLayoutName = "layout"
	flagFormatName = "format"
	flagOutputName = "output"

	flagTitleName  = "title"
	flagXName      = "x"
	flagYName      = "y"
	flagGroupName  = "group"
	flagRowsName   = "rows"
	flagColsName   = "cols"
	flagSelectName = "select"
	flagWhereName  = "where"

	flagXLabelName = "xlabel"
	flagYLabelName = "ylabel"
	flagXLimName   = "xlim"
	flagYLimName   = "ylim"
	flagXScaleName = "xscale"
	flagYScaleName = "yscale"
	flagXBaseName  = "xbase"
	flagYBaseName  = "ybase"
)

func init() {
	Cmd.Flags().StringSliceVar(&flagInput, flagInputName, []string{}, "")
	Cmd.Flags().StringVar(&flagLayout, flagLayoutName, "", "")
	Cmd.Flags().StringSliceVar(&flagFormat, flagFormatName, []string{report.FormatAll}, "")
	Cmd.Flags().StringVarP(&flagOutput, flagOutputName, "o", "figure", "")

	Cmd.Flags().StringVar(&flagTitle, flagTitleName, "", "")
	Cmd.Flags().StringVar(&flagX, flagXName, "", "")
	Cmd.Flags().StringVar(&flagY, flagYName, "", "")
	Cmd.Flags().StringSliceVar(&flagGroup, flagGroupName, []string{}, "")
	Cmd.Flags().StringVar(&flagRows, flagRowsName, "", "")
	Cmd.Flags().StringVar(&flagCols, flagColsName, "", "")
	Cmd.Flags().StringArrayVar(&flagSelect, flagSelectName, []string{}, "")
	Cmd.Flags().StringVar(&flagWhere, flagWhereName, "", "")

	Cmd.Flags().StringVar(&flagXLabel, flagXLabelName, "", "")
	Cmd.Flags().StringVar(&flagYLabel, flagYLabelName, "", "")
	Cmd.Flags().Float64SliceVar(&flagXLim, flagXLimName, []float64{}, "")
	Cmd.Flags().Float64SliceVar(&flagYLim, flagYLimName, []float64{}, "")
	Cmd.Flags().StringVar(&flagXScale, flagXScaleName, perfdata.ScaleLinear, "")
	Cmd.Flags().StringVar(&flagYScale, flagYScaleName, perfdata.ScaleLinear, "")
	Cmd.Flags().Float64Var(&flagXBase, flagXBaseName, 10, "")
	Cmd.Flags().Float64Var(&flagYBase, flagYBaseName, 10, "")

	Cmd.SetUsageFunc(usageFunc)
}

func usageFunc(cmd *cobra.Command) error {
	return common.PrintUsage(cmd, getFlagGroups())
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagInputName,
			Help: "perf data CSV file(s), or directories of \"*-*.csv\" files",
		},
		{
			Name: flagLayoutName,
			Help: "YAML file describing the figure, other flags override its settings",
		},
		{
			Name: flagFormatName,
			Help: fmt.Sprintf("choose output format(s) from: %s", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", ")),
		},
		{
			Name: flagOutputName,
			Help: "output path without extension",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Input and Output",
		Flags:     flags,
	})
	flags = []common.Flag{
		{Name: flagTitleName, Help: "figure title"},
		{Name: flagXName, Help: "column plotted on the x axis"},
		{Name: flagYName, Help: "column plotted on the y axis, averaged over duplicate x values"},
		{Name: flagGroupName, Help: "column(s) splitting the data into series, outermost first"},
		{Name: flagRowsName, Help: "column giving one row of panels per value"},
		{Name: flagColsName, Help: "column giving one column of panels per value"},
		{Name: flagSelectName, Help: "keep rows where column has one of the values, e.g., name=apply|async. May be repeated."},
		{Name: flagWhereName, Help: "keep rows where the expression is true, e.g., \"threads >= 4 && numa == 1\""},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Figure Options",
		Flags:     flags,
	})
	flags = []common.Flag{
		{Name: flagXLabelName, Help: "x axis label (default: x column)"},
		{Name: flagYLabelName, Help: "y axis label (default: y column)"},
		{Name: flagXLimName, Help: "x axis min,max"},
		{Name: flagYLimName, Help: "y axis min,max"},
		{Name: flagXScaleName, Help: fmt.Sprintf("x axis scale, %s or %s", perfdata.ScaleLinear, perfdata.ScaleLog)},
		{Name: flagYScaleName, Help: fmt.Sprintf("y axis scale, %s or %s", perfdata.ScaleLinear, perfdata.ScaleLog)},
		{Name: flagXBaseName, Help: "x axis log base"},
		{Name: flagYBaseName, Help: "y axis log base"},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Axis Options",
		Flags:     flags,
	})
	return groups
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if len(flagInput) == 0 {
		return common.FlagValidationError(cmd, fmt.Sprintf("at least one input must be specified with --%s", flagInputName))
	}
	for _, input := range flagInput {
		if !util.FileOrDirectoryExists(input) {
			return common.FlagValidationError(cmd, fmt.Sprintf("input not found: %s", input))
		}
	}
	if flagLayout != "" {
		if exists, err := util.FileExists(flagLayout); err != nil || !exists {
			return common.FlagValidationError(cmd, fmt.Sprintf("layout file not found: %s", flagLayout))
		}
	} else if flagX == "" || flagY == "" {
		return common.FlagValidationError(cmd, fmt.Sprintf("--%s and --%s are required without --%s", flagXName, flagYName, flagLayoutName))
	}
	formatOptions := append([]string{report.FormatAll}, report.FormatOptions...)
	for _, format := range flagFormat {
		if !slices.Contains(formatOptions, format) {
			return common.FlagValidationError(cmd, fmt.Sprintf("format options are: %s", strings.Join(formatOptions, ", ")))
		}
	}
	if _, err := perfdata.ParseSelect(flagSelect); err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	if flagOutput == "" {
		return common.FlagValidationError(cmd, fmt.Sprintf("--%s must not be empty", flagOutputName))
	}
	return nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	var layout perfdata.Layout
	if flagLayout != "" {
		var err error
		layout, err = loadLayout(flagLayout)
		if err != nil {
			return reportError(cmd, err)
		}
	}
	layout, err := applyFlags(cmd, layout)
	if err != nil {
		return reportError(cmd, err)
	}
	written, err := plot(flagInput, layout, expandFormats(flagFormat), flagOutput, os.Stdout)
	if err != nil {
		return reportError(cmd, err)
	}
	p := message.NewPrinter(language.English)
	for _, path := range written {
		p.Printf("Figure file: %s\n", path)
	}
	return nil
}

func reportError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	slog.Error(err.Error())
	cmd.SilenceUsage = true
	return err
}

// loadLayout reads a YAML layout file
func loadLayout(path string) (perfdata.Layout, error) {
	var layout perfdata.Layout
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return layout, fmt.Errorf("failed to read layout: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &layout); err != nil {
		return layout, fmt.Errorf("failed to parse layout %s: %w", path, err)
	}
	return layout, nil
}

// applyFlags sets the layout fields given on the command line. Without a
// layout file every flag applies; with one only the flags that were set do.
func applyFlags(cmd *cobra.Command, layout perfdata.Layout) (perfdata.Layout, error) {
	set := func(name string) bool {
		return flagLayout == "" || cmd.Flags().Changed(name)
	}
	strFields := []struct {
		name  string
		value string
		field *string
	}{
		{flagTitleName, flagTitle, &layout.Title},
		{flagXName, flagX, &layout.X},
		{flagYName, flagY, &layout.Y},
		{flagRowsName, flagRows, &layout.Rows},
		{flagColsName, flagCols, &layout.Cols},
		{flagWhereName, flagWhere, &layout.Filter.Where},
		{flagXLabelName, flagXLabel, &layout.XAxis.Label},
		{flagYLabelName, flagYLabel, &layout.YAxis.Label},
		{flagXScaleName, flagXScale, &layout.XAxis.Scale},
		{flagYScaleName, flagYScale, &layout.YAxis.Scale},
	}
	for _, f := range strFields {
		if set(f.name) {
			*f.field = f.value
		}
	}
	if set(flagGroupName) {
		layout.Groups = flagGroup
	}
	if set(flagXLimName) {
		layout.XAxis.Limits = flagXLim
	}
	if set(flagYLimName) {
		layout.YAxis.Limits = flagYLim
	}
	if set(flagXBaseName) {
		layout.XAxis.Base = flagXBase
	}
	if set(flagYBaseName) {
		layout.YAxis.Base = flagYBase
	}
	if set(flagSelectName) && len(flagSelect) > 0 {
		sel, err := perfdata.ParseSelect(flagSelect)
		if err != nil {
			return layout, err
		}
		layout.Filter.Select = sel
	}
	if layout.XAxis.Label == "" {
		layout.XAxis.Label = layout.X
	}
	if layout.YAxis.Label == "" {
		layout.YAxis.Label = layout.Y
	}
	return layout, nil
}

// expandFormats replaces "all" with every supported format
func expandFormats(formats []string) []string {
	var expanded []string
	for _, format := range formats {
		if format == report.FormatAll {
			for _, f := range []string{report.FormatHtml, report.FormatXlsx} {
				expanded = util.UniqueAppend(expanded, f)
			}
			continue
		}
		expanded = util.UniqueAppend(expanded, format)
	}
	return expanded
}

// plot loads inputs, builds the figure and writes one file per format. It
// returns the paths written.
func plot(inputs []string, layout perfdata.Layout, formats []string, output string, out io.Writer) ([]string, error) {
	dataset := perfdata.NewDataset(out)
	for _, input := range inputs {
		if err := dataset.Load(input); err != nil {
			return nil, err
		}
	}
	fig, err := perfdata.BuildFigure(dataset.Table(), layout)
	if err != nil {
		return nil, err
	}
	series := 0
	for _, row := range fig.Panels {
		for _, panel := range row {
			series += len(panel.Series)
		}
	}
	p := message.NewPrinter(language.English)
	p.Fprintf(out, "Plotting %d x %d panels, %d series from %d rows\n", fig.NumRows(), fig.NumCols(), series, dataset.Table().Len())
	var written []string
	for _, format := range formats {
		data, err := report.Create(format, fig)
		if err != nil {
			return written, fmt.Errorf("failed to render %s: %w", format, err)
		}
		path := output + report.FileExtension(format)
		if err := common.WriteOutput(data, path); err != nil {
			return written, err
		}
		slog.Info("wrote figure", slog.String("format", format), slog.String("path", path))
		written = append(written, path)
	}
	return written, nil
}
