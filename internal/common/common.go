// Package common defines data structures and functions that are used by multiple
// application commands, e.g., convert and plot.
package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var AppName = filepath.Base(os.Args[0])

// AppContext represents the application context that can be accessed from all commands.
type AppContext struct {
	Version string // Version is the version of the application.
	Debug   bool   // Debug is true when debug logging is enabled.
}

// GetAppContext returns the application context set by the root command. Commands
// run without the root command, e.g., from tests, get an empty context.
func GetAppContext(cmd *cobra.Command) AppContext {
	if cmd.Parent() == nil || cmd.Parent().Context() == nil {
		return AppContext{}
	}
	appContext, ok := cmd.Parent().Context().Value(AppContext{}).(AppContext)
	if !ok {
		return AppContext{}
	}
	return appContext
}

type Flag struct {
	Name string
	Help string
}
type FlagGroup struct {
	GroupName string
	Flags     []Flag
}

// PrintUsage prints the command's usage with its flags in groups
func PrintUsage(cmd *cobra.Command, groups []FlagGroup) error {
	cmd.Printf("Usage: %s [flags]\n\n", cmd.CommandPath())
	if cmd.Example != "" {
		cmd.Printf("Examples:\n%s\n\n", cmd.Example)
	}
	cmd.Println("Flags:")
	for _, group := range groups {
		cmd.Printf("  %s:\n", group.GroupName)
		for _, flag := range group.Flags {
			flagDefault := ""
			if f := cmd.Flags().Lookup(flag.Name); f != nil && f.DefValue != "" && f.DefValue != "[]" {
				flagDefault = fmt.Sprintf(" (default: %s)", f.DefValue)
			}
			cmd.Printf("    --%-20s %s%s\n", flag.Name, flag.Help, flagDefault)
		}
	}
	if cmd.Parent() == nil {
		return nil
	}
	cmd.Println("\nGlobal Flags:")
	cmd.Parent().PersistentFlags().VisitAll(func(pf *pflag.Flag) {
		flagDefault := ""
		if pf.DefValue != "" {
			flagDefault = fmt.Sprintf(" (default: %s)", pf.DefValue)
		}
		cmd.Printf("  --%-20s %s%s\n", pf.Name, pf.Usage, flagDefault)
	})
	return nil
}

// FlagValidationError is used to report an error with a flag
func FlagValidationError(cmd *cobra.Command, msg string) error {
	err := errors.New(msg)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	fmt.Fprintf(os.Stderr, "See '%s --help' for usage details.\n", cmd.CommandPath())
	cmd.SilenceUsage = true
	return err
}

// WriteOutput writes the bytes to the specified path.
func WriteOutput(out []byte, path string) error {
	err := os.WriteFile(path, out, 0644) // #nosec G306
	if err != nil {
		err = fmt.Errorf("failed to write output file: %v", err)
		fmt.Fprintln(os.Stderr, err)
		slog.Error(err.Error())
		return err
	}
	return nil
}
