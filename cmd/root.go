// Package cmd provides the command line interface for the application.
package cmd

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"tasktrace/cmd/convert"
	"tasktrace/cmd/plot"
	"tasktrace/internal/common"

	"github.com/spf13/cobra"
)

var gLogFile *os.File
var gVersion = "9.9.9" // overwritten by ldflags at build time

var examples = []string{
	fmt.Sprintf("  Convert task traces from two ranks:     $ %s convert --filename rank0.csv rank1.csv", common.AppName),
	fmt.Sprintf("  Convert to a named archive:             $ %s convert --filename rank0.csv --output run.trace", common.AppName),
	fmt.Sprintf("  Plot time against threads per group:    $ %s plot --input results --x threads --y time --group name", common.AppName),
}

var rootCmd = &cobra.Command{
	Use:                common.AppName,
	Short:              "Convert task traces and plot performance results",
	Long:               fmt.Sprintf("%s converts task-based runtime traces into trace archives for trace viewers and plots performance measurements.", common.AppName),
	Example:            strings.Join(examples, "\n"),
	PersistentPreRunE:  initializeApplication, // runs only for commands with a Run function
	PersistentPostRunE: terminateApplication,
	Version:            gVersion,
}

var (
	flagDebug     bool
	flagSyslog    bool
	flagLogStdOut bool
)

const (
	flagDebugName     = "debug"
	flagSyslogName    = "syslog"
	flagLogStdOutName = "log-stdout"
)

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.AddGroup(&cobra.Group{ID: "primary", Title: "Commands:"})
	rootCmd.AddCommand(convert.Cmd)
	rootCmd.AddCommand(plot.Cmd)
	rootCmd.PersistentFlags().BoolVar(&flagDebug, flagDebugName, false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagSyslog, flagSyslogName, false, "write logs to syslog instead of a file")
	rootCmd.PersistentFlags().BoolVar(&flagLogStdOut, flagLogStdOutName, false, "write logs to stdout")
	rootCmd.MarkFlagsMutuallyExclusive(flagSyslogName, flagLogStdOutName)
}

// Execute runs the command named on the command line. It is called by main.main().
func Execute() {
	cobra.EnableCommandSorting = false
	if err := rootCmd.Execute(); err != nil {
		if terminateErr := terminateApplication(rootCmd, os.Args); terminateErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", terminateErr)
		}
		os.Exit(1)
	}
}

// logDestination is where the application log goes
type logDestination int

const (
	logToFile logDestination = iota
	logToSyslog
	logToStdout
)

func selectedLogDestination() logDestination {
	switch {
	case flagSyslog:
		return logToSyslog
	case flagLogStdOut:
		return logToStdout
	default:
		return logToFile
	}
}

// newLogHandler builds the handler for dest. The returned file, when not nil,
// is the log file the handler writes to and must be closed by the caller.
func newLogHandler(dest logDestination, debug bool, stdout io.Writer, logFileName string) (slog.Handler, *os.File, error) {
	logOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		logOpts.Level = slog.LevelDebug
		logOpts.AddSource = true
	}
	switch dest {
	case logToSyslog:
		handler, err := NewSyslogHandler(logOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create syslog handler: %w", err)
		}
		return handler, nil, nil
	case logToStdout:
		return slog.NewJSONHandler(stdout, logOpts), nil, nil
	default:
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) // #nosec G302
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return slog.NewTextHandler(logFile, logOpts), logFile, nil
	}
}

func initializeApplication(cmd *cobra.Command, args []string) error {
	handler, logFile, err := newLogHandler(selectedLogDestination(), flagDebug, os.Stdout, common.AppName+".log")
	if err != nil {
		return err
	}
	gLogFile = logFile
	slog.SetDefault(slog.New(handler))
	slog.Info("Starting up", slog.String("app", common.AppName), slog.String("version", gVersion), slog.Int("PID", os.Getpid()), slog.String("arguments", strings.Join(os.Args, " ")))
	cmd.Parent().SetContext(
		context.WithValue(
			context.Background(),
			common.AppContext{},
			common.AppContext{Version: gVersion, Debug: flagDebug},
		),
	)
	return nil
}

// terminateApplication logs shutdown and closes the log file
func terminateApplication(cmd *cobra.Command, args []string) error {
	if gLogFile == nil {
		return nil
	}
	slog.Info("Shutting down", slog.String("app", common.AppName), slog.String("version", gVersion), slog.Int("PID", os.Getpid()))
	err := gLogFile.Close()
	gLogFile = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("error closing log file: %w", err)
	}
	return nil
}
