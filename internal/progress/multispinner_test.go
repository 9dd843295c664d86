package progress

// Copyright (C) 2021-2024 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMultiSpinner(t *testing.T) {
	spinner := NewMultiSpinner()
	require.NotNil(t, spinner, "failed to create a spinner")
}

func TestMultiSpinner(t *testing.T) {
	var out bytes.Buffer
	spinner := NewMultiSpinnerWriter(&out, false)
	require.NoError(t, spinner.AddSpinner("A"))
	require.NoError(t, spinner.AddSpinner("B"))
	assert.Error(t, spinner.AddSpinner("A"), "added spinner with same label")
	spinner.Start()

	require.NoError(t, spinner.Status("A", "FOO"))
	require.NoError(t, spinner.Status("B", "BAR"))
	assert.Error(t, spinner.Status("C", "WOOPS"), "updated status of non-existent spinner")
	spinner.Finish()

	assert.Contains(t, out.String(), "FOO")
	assert.Contains(t, out.String(), "BAR")
	assert.NotContains(t, out.String(), "\x1b[1A", "no cursor movement without a terminal")
}

func TestMultiSpinnerPrintsChangedStatusOnce(t *testing.T) {
	var out bytes.Buffer
	spinner := NewMultiSpinnerWriter(&out, false)
	require.NoError(t, spinner.AddSpinner("rank0.csv"))
	spinner.Start()
	require.NoError(t, spinner.Status("rank0.csv", "processing"))
	require.NoError(t, spinner.Status("rank0.csv", "processing"))
	spinner.Finish()
	assert.Equal(t, 1, strings.Count(out.String(), "processing"))
}

func TestMultiSpinnerLabelWidth(t *testing.T) {
	var out bytes.Buffer
	spinner := NewMultiSpinnerWriter(&out, true)
	long := strings.Repeat("x", 30)
	require.NoError(t, spinner.AddSpinner("short"))
	require.NoError(t, spinner.AddSpinner(long))
	spinner.Start()
	spinner.Finish()
	lines := strings.Split(out.String(), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "short"+strings.Repeat(" ", 25)+"  "), "labels are padded to the longest")
	assert.Contains(t, out.String(), "\x1b[1A")
}
