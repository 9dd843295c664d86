// Package convert is a subcommand of the root command. It converts task-trace CSV files into a trace archive.
package convert

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tasktrace/internal/common"
	"tasktrace/internal/ingest"
	"tasktrace/internal/progress"
	"tasktrace/internal/trace"
	"tasktrace/internal/util"
)

const cmdName = "convert"

var examples = []string{
	fmt.Sprintf("  Convert one rank:                  $ %s %s --filename rank0.csv", common.AppName, cmdName),
	fmt.Sprintf("  Convert several ranks:             $ %s %s --filename rank0.csv rank1.csv rank2.csv", common.AppName, cmdName),
	fmt.Sprintf("  Choose the archive directory:      $ %s %s --filename rank0.csv --output run.trace", common.AppName, cmdName),
	fmt.Sprintf("  Nanosecond input, microsecond clock: $ %s %s --filename rank0.csv --time-divisor 1000 --timer-resolution 1000000", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Convert task-trace CSV files into a trace archive",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
}

// flag vars
var (
	flagFilename        []string
	flagOutput          string
	flagTimerResolution uint64
	flagTimeDivisor     int64
	flagHost            string
	flagClockOffset     int64
	flagMetricsTextfile string
)

// flag names
const (
	flagFilenameName        = "filename"
	flagOutputName          = "output"
	flagTimerResolutionName = "timer-resolution"
	flagTimeDivisorName     = "time-divisor"
	flagHostName            = "host"
	flagClockOffsetName     = "clock-offset"
	flagMetricsTextfileName = "metrics-textfile"
)

func init() {
	Cmd.Flags().StringArrayVar(&flagFilename, flagFilenameName, []string{}, "")
	Cmd.Flags().StringVarP(&flagOutput, flagOutputName, "o", "", "")
	Cmd.Flags().Uint64Var(&flagTimerResolution, flagTimerResolutionName, trace.DefaultTimerResolution, "")
	Cmd.Flags().Int64Var(&flagTimeDivisor, flagTimeDivisorName, ingest.DefaultTimeDivisor, "")
	Cmd.Flags().StringVar(&flagHost, flagHostName, ingest.DefaultHostName, "")
	Cmd.Flags().Int64Var(&flagClockOffset, flagClockOffsetName, 0, "")
	Cmd.Flags().StringVar(&flagMetricsTextfile, flagMetricsTextfileName, "", "")

	Cmd.SetUsageFunc(usageFunc)
}

func usageFunc(cmd *cobra.Command) error {
	return common.PrintUsage(cmd, getFlagGroups())
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagFilenameName,
			Help: "task-trace CSV file(s), one per rank, in rank order. May be repeated; extra arguments are added to the list.",
		},
		{
			Name: flagOutputName,
			Help: "trace archive directory, replaced if it exists (default: first file without extension + \".trace\")",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Input and Output",
		Flags:     flags,
	})
	flags = []common.Flag{
		{
			Name: flagTimerResolutionName,
			Help: "timer ticks per second recorded in the archive",
		},
		{
			Name: flagTimeDivisorName,
			Help: "input time units per timer tick",
		},
		{
			Name: flagHostName,
			Help: "system tree node name for the traced host",
		},
		{
			Name: flagClockOffsetName,
			Help: "wall clock time, in timer ticks, of timestamp zero",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Trace Options",
		Flags:     flags,
	})
	flags = []common.Flag{
		{
			Name: flagMetricsTextfileName,
			Help: "write ingestion counters to this file in the prometheus text format",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Advanced Options",
		Flags:     flags,
	})
	return groups
}

// inputFiles returns the --filename values followed by the positional arguments
func inputFiles(args []string) []string {
	return append(slices.Clone(flagFilename), args...)
}

func validateFlags(cmd *cobra.Command, args []string) error {
	files := inputFiles(args)
	if len(files) == 0 {
		return common.FlagValidationError(cmd, fmt.Sprintf("at least one file must be specified with --%s", flagFilenameName))
	}
	for _, filename := range files {
		exists, err := util.FileExists(filename)
		if err != nil {
			return common.FlagValidationError(cmd, err.Error())
		}
		if !exists {
			return common.FlagValidationError(cmd, fmt.Sprintf("file not found: %s", filename))
		}
	}
	if flagTimerResolution == 0 {
		return common.FlagValidationError(cmd, fmt.Sprintf("--%s must be greater than 0", flagTimerResolutionName))
	}
	if flagTimeDivisor <= 0 {
		return common.FlagValidationError(cmd, fmt.Sprintf("--%s must be greater than 0, got %d", flagTimeDivisorName, flagTimeDivisor))
	}
	if flagHost == "" {
		return common.FlagValidationError(cmd, fmt.Sprintf("--%s must not be empty", flagHostName))
	}
	return nil
}

// options are the resolved settings of one conversion
type options struct {
	Files           []string
	Output          string
	TimerResolution uint64
	TimeDivisor     int64
	Host            string
	ClockOffset     int64
	MetricsTextfile string
	Creator         string
}

// defaultOutput derives the archive directory from the first input file
func defaultOutput(files []string) string {
	return util.TrimExtension(files[0]) + ".trace"
}

func runCmd(cmd *cobra.Command, args []string) error {
	appContext := common.GetAppContext(cmd)
	opts := options{
		Files:           inputFiles(args),
		Output:          flagOutput,
		TimerResolution: flagTimerResolution,
		TimeDivisor:     flagTimeDivisor,
		Host:            flagHost,
		ClockOffset:     flagClockOffset,
		MetricsTextfile: flagMetricsTextfile,
		Creator:         strings.TrimSpace(common.AppName + " " + appContext.Version),
	}
	multiSpinner := progress.NewMultiSpinner()
	for _, file := range opts.Files {
		if err := multiSpinner.AddSpinner(file); err != nil {
			slog.Warn("failed to add spinner", slog.String("file", file), slog.String("error", err.Error()))
		}
	}
	multiSpinner.Start()
	stats, err := convert(opts, os.Stdout, multiSpinner.Status)
	multiSpinner.Finish()
	if err != nil {
		err = fmt.Errorf("conversion failed: %w", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	printSummary(os.Stdout, stats)
	return nil
}

// convert writes the task records of opts.Files into a fresh archive at opts.Output
func convert(opts options, out io.Writer, statusUpdate progress.MultiSpinnerUpdateFunc) (ingest.Stats, error) {
	if opts.Output == "" {
		opts.Output = defaultOutput(opts.Files)
	}
	output, err := util.AbsPath(opts.Output)
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("failed to resolve output path %s: %w", opts.Output, err)
	}
	opts.Output = output
	fmt.Fprintf(out, "Filename : %s\n", strings.Join(opts.Files, ", "))
	fmt.Fprintf(out, "Output   : %s\n", opts.Output)
	removed, err := util.RemoveDirectory(opts.Output)
	if err != nil {
		// a stale archive that cannot be removed is overwritten file by file
		fmt.Fprintf(out, "Error: %v\n", err)
		slog.Warn("failed to remove existing output", slog.String("output", opts.Output), slog.String("error", err.Error()))
	} else if removed {
		slog.Info("removed existing output", slog.String("output", opts.Output))
	}
	archive, err := trace.Open(opts.Output,
		trace.WithTimerResolution(opts.TimerResolution),
		trace.WithClockOffset(opts.ClockOffset),
		trace.WithCreator(opts.Creator),
	)
	if err != nil {
		return ingest.Stats{}, err
	}
	defer archive.Close()

	registry := prometheus.NewRegistry()
	metrics, err := ingest.NewMetrics(registry)
	if err != nil {
		return ingest.Stats{}, err
	}
	ingestor, err := ingest.New(archive, ingest.Options{
		HostName:    opts.Host,
		TimeDivisor: opts.TimeDivisor,
		Out:         out,
		Progress:    statusUpdate,
		Metrics:     metrics,
	})
	if err != nil {
		return ingest.Stats{}, err
	}
	stats, err := ingestor.Ingest(opts.Files)
	if err != nil {
		return stats, err
	}
	if err := archive.Close(); err != nil {
		return stats, fmt.Errorf("failed to close trace archive: %w", err)
	}
	if opts.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsTextfile, registry); err != nil {
			return stats, fmt.Errorf("failed to write metrics: %w", err)
		}
		slog.Info("wrote metrics", slog.String("path", opts.MetricsTextfile))
	}
	slog.Info("conversion complete", slog.String("output", opts.Output), slog.Int("records", stats.Records), slog.Int("skipped", stats.Skipped), slog.Int("events", archive.EventCount()))
	return stats, nil
}

func printSummary(out io.Writer, stats ingest.Stats) {
	p := message.NewPrinter(language.English)
	for _, rank := range stats.Ranks {
		p.Fprintf(out, "Rank %d: %d tasks, %d skipped, time shift %d\n", rank.Rank, rank.Records, rank.Skipped, rank.Offset)
	}
	p.Fprintf(out, "Wrote %d events for %d tasks (%d skipped), %d regions, %d groups, %d locations\n",
		stats.Emitted*2, stats.Records, stats.Skipped, stats.Regions, stats.Groups, stats.Locations)
}
