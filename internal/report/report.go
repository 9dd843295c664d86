// Package report renders perf data figures as html, xlsx or json.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"

	"tasktrace/internal/perfdata"
)

const (
	FormatHtml = "html"
	FormatXlsx = "xlsx"
	FormatJson = "json"
	FormatAll  = "all"
)

const NoDataFound = "No data found."

var FormatOptions = []string{FormatHtml, FormatXlsx, FormatJson}

// Create renders fig in the specified format.
// If the format is not supported, the function panics with an error message.
func Create(format string, fig *perfdata.Figure) (out []byte, err error) {
	if fig == nil || fig.NumRows() == 0 || fig.NumCols() == 0 {
		return nil, fmt.Errorf("figure has no panels")
	}
	switch format {
	case FormatHtml:
		return createHtmlReport(fig)
	case FormatXlsx:
		return createXlsxReport(fig)
	case FormatJson:
		return createJsonReport(fig)
	}
	panic(fmt.Sprintf("expected one of %s, got %s", strings.Join(FormatOptions, ", "), format))
}

// FileExtension returns the file extension for a format
func FileExtension(format string) string {
	return "." + format
}
