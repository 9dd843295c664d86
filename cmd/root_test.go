package cmd

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	lines []string
}

func (w *recordingWriter) record(level, m string) error {
	w.lines = append(w.lines, level+": "+m)
	return nil
}

func (w *recordingWriter) Debug(m string) error   { return w.record("debug", m) }
func (w *recordingWriter) Info(m string) error    { return w.record("info", m) }
func (w *recordingWriter) Warning(m string) error { return w.record("warning", m) }
func (w *recordingWriter) Err(m string) error     { return w.record("err", m) }

func TestSubcommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		if c.GroupID == "primary" {
			names = append(names, c.Name())
		}
	}
	assert.Equal(t, []string{"convert", "plot"}, names)
	for _, name := range []string{flagDebugName, flagSyslogName, flagLogStdOutName} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestSelectedLogDestination(t *testing.T) {
	defer func() { flagSyslog, flagLogStdOut = false, false }()
	tests := []struct {
		syslog, stdout bool
		expected       logDestination
	}{
		{false, false, logToFile},
		{true, false, logToSyslog},
		{false, true, logToStdout},
	}
	for _, tt := range tests {
		flagSyslog, flagLogStdOut = tt.syslog, tt.stdout
		assert.Equal(t, tt.expected, selectedLogDestination())
	}
}

func TestNewLogHandler(t *testing.T) {
	var stdout bytes.Buffer
	handler, logFile, err := newLogHandler(logToStdout, false, &stdout, "")
	require.NoError(t, err)
	assert.Nil(t, logFile)
	assert.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
	slog.New(handler).Info("converted", slog.Int("records", 5))
	var line map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &line))
	assert.Equal(t, "converted", line["msg"])
	assert.Equal(t, 5.0, line["records"])

	path := filepath.Join(t.TempDir(), "tasktrace.log")
	handler, logFile, err = newLogHandler(logToFile, true, nil, path)
	require.NoError(t, err)
	require.NotNil(t, logFile)
	defer logFile.Close()
	assert.True(t, handler.Enabled(context.Background(), slog.LevelDebug))
	assert.FileExists(t, path)

	_, _, err = newLogHandler(logToFile, false, nil, filepath.Join(t.TempDir(), "missing", "tasktrace.log"))
	assert.Error(t, err)
}

func TestSyslogHandler(t *testing.T) {
	writer := &recordingWriter{}
	logger := slog.New(newSyslogHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.Debug("hidden")
	logger.With(slog.String("file", "rank0.csv")).WithGroup("rank").Warn("skipped", slog.Int("line", 7))
	logger.Error("failed", slog.Group("archive", slog.String("path", "run.trace")))

	require.Len(t, writer.lines, 2)
	assert.Equal(t, `warning: level=WARN msg="skipped" file="rank0.csv" rank.line="7"`, writer.lines[0])
	assert.Equal(t, `err: level=ERROR msg="failed" archive.path="run.trace"`, writer.lines[1])
}

func TestSyslogHandlerAttrsAreNotShared(t *testing.T) {
	writer := &recordingWriter{}
	base := slog.New(newSyslogHandler(writer, &slog.HandlerOptions{}))
	base.With(slog.Int("rank", 0)).Info("a")
	base.With(slog.Int("rank", 1)).Info("b")
	base.Info("c")
	assert.Equal(t, []string{
		`info: level=INFO msg="a" rank="0"`,
		`info: level=INFO msg="b" rank="1"`,
		`info: level=INFO msg="c"`,
	}, writer.lines)
}
