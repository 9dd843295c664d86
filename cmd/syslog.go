package cmd

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"log/syslog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// syslogWriter is the part of *syslog.Writer the handler needs
type syslogWriter interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
}

// SyslogHandler is a slog.Handler that writes logfmt style lines to syslog.
type SyslogHandler struct {
	writer    syslogWriter
	leveler   slog.Leveler
	addSource bool
	prefix    string // group prefix applied to attribute keys
	attrs     string // preformatted attributes from WithAttrs
}

func NewSyslogHandler(logOpts *slog.HandlerOptions) (*SyslogHandler, error) {
	writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, filepath.Base(os.Args[0]))
	if err != nil {
		return nil, err
	}
	return newSyslogHandler(writer, logOpts), nil
}

func newSyslogHandler(writer syslogWriter, logOpts *slog.HandlerOptions) *SyslogHandler {
	var leveler slog.Leveler = slog.LevelInfo
	if logOpts.Level != nil {
		leveler = logOpts.Level
	}
	return &SyslogHandler{writer: writer, leveler: leveler, addSource: logOpts.AddSource}
}

func (h *SyslogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.leveler.Level()
}

func (h *SyslogHandler) Handle(ctx context.Context, r slog.Record) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "level=%s", r.Level)
	if r.PC != 0 && h.addSource {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fmt.Fprintf(&sb, " source=%s:%d", filepath.Base(f.File), f.Line)
	}
	fmt.Fprintf(&sb, " msg=%q", r.Message)
	sb.WriteString(h.attrs)
	r.Attrs(func(attr slog.Attr) bool {
		writeAttr(&sb, h.prefix, attr)
		return true
	})
	msg := sb.String()
	switch {
	case r.Level >= slog.LevelError:
		return h.writer.Err(msg)
	case r.Level >= slog.LevelWarn:
		return h.writer.Warning(msg)
	case r.Level >= slog.LevelInfo:
		return h.writer.Info(msg)
	default:
		return h.writer.Debug(msg)
	}
}

func (h *SyslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var sb strings.Builder
	sb.WriteString(h.attrs)
	for _, attr := range attrs {
		writeAttr(&sb, h.prefix, attr)
	}
	clone := *h
	clone.attrs = sb.String()
	return &clone
}

func (h *SyslogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// writeAttr appends attr as key="value", flattening groups into dotted keys
func writeAttr(sb *strings.Builder, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, a := range attr.Value.Group() {
			writeAttr(sb, prefix, a)
		}
		return
	}
	fmt.Fprintf(sb, " %s%s=%q", prefix, attr.Key, attr.Value.String())
}
