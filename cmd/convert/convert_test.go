package convert

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktrace/internal/trace"
)

const rank0CSV = `init,setup,0,1000000,0,2000000
apply,compute,1,2000000,1,5000000
apply,compute,0,3000000,0,4000000
`

const rank1CSV = `init,setup,0,1500000,0,2500000
reduce,compute,-1,3500000,-1,4500000
`

func writeInputs(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "rank0.csv"), filepath.Join(dir, "rank1.csv")}
	require.NoError(t, os.WriteFile(files[0], []byte(rank0CSV), 0644))
	require.NoError(t, os.WriteFile(files[1], []byte(rank1CSV), 0644))
	return files
}

func testOptions(files []string) options {
	return options{
		Files:           files,
		TimerResolution: trace.DefaultTimerResolution,
		TimeDivisor:     1000,
		Host:            "myHost",
		Creator:         "tasktrace test",
	}
}

func TestDefaultOutput(t *testing.T) {
	tests := []struct {
		files    []string
		expected string
	}{
		{[]string{"rank0.csv"}, "rank0.trace"},
		{[]string{"run/rank0.csv", "run/rank1.csv"}, "run/rank0.trace"},
		{[]string{"trace"}, "trace.trace"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, defaultOutput(test.files))
	}
}

func TestConvert(t *testing.T) {
	files := writeInputs(t)
	var out bytes.Buffer
	statuses := map[string]string{}
	stats, err := convert(testOptions(files), &out, func(label, status string) error {
		statuses[label] = status
		return nil
	})
	require.NoError(t, err)

	output := filepath.Join(filepath.Dir(files[0]), "rank0.trace")
	assert.Contains(t, out.String(), "Filename : "+files[0]+", "+files[1]+"\n")
	assert.Contains(t, out.String(), "Output   : "+output+"\n")
	assert.Contains(t, out.String(), "Rank 0 time shift set to 1000000")
	assert.Contains(t, out.String(), "Rank 1 time shift set to 500000")
	assert.Equal(t, "3 tasks, 0 skipped", statuses[files[0]])
	assert.Equal(t, "2 tasks, 0 skipped", statuses[files[1]])

	assert.Equal(t, 5, stats.Records)
	assert.Equal(t, 5, stats.Emitted)
	assert.Equal(t, 3, stats.Regions)
	assert.Equal(t, 2, stats.Groups)
	assert.Equal(t, 4, stats.Locations)

	defs, err := trace.ReadDefinitions(output)
	require.NoError(t, err)
	assert.Equal(t, "tasktrace test", defs.Creator)
	var locations []string
	for _, loc := range defs.Locations {
		locations = append(locations, loc.Name)
	}
	assert.ElementsMatch(t, []string{"R000.T000", "R000.T001", "R001.T000", "R001.Tsys"}, locations)
	compute, ok := defs.GroupByName("compute")
	require.True(t, ok)
	assert.Len(t, compute.Members, 2)
}

func TestConvertTwiceGivesSameArchive(t *testing.T) {
	files := writeInputs(t)
	opts := testOptions(files)
	opts.Output = filepath.Join(t.TempDir(), "run.trace")

	_, err := convert(opts, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	firstDefs, err := trace.ReadDefinitions(opts.Output)
	require.NoError(t, err)
	firstEvents, err := trace.ReadEvents(opts.Output)
	require.NoError(t, err)

	// a leftover file must not survive the second run
	stale := filepath.Join(opts.Output, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))

	_, err = convert(opts, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	secondDefs, err := trace.ReadDefinitions(opts.Output)
	require.NoError(t, err)
	secondEvents, err := trace.ReadEvents(opts.Output)
	require.NoError(t, err)

	assert.Equal(t, firstDefs, secondDefs)
	assert.Equal(t, firstEvents, secondEvents)
	assert.NoFileExists(t, stale)
}

func TestConvertMetricsTextfile(t *testing.T) {
	files := writeInputs(t)
	opts := testOptions(files)
	opts.Output = filepath.Join(t.TempDir(), "run.trace")
	opts.MetricsTextfile = filepath.Join(t.TempDir(), "tasktrace.prom")

	_, err := convert(opts, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	data, err := os.ReadFile(opts.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tasktrace_records_total{rank="0"} 3`)
	assert.Contains(t, string(data), `tasktrace_records_total{rank="1"} 2`)
	assert.Contains(t, string(data), `tasktrace_events_total{kind="enter"} 5`)
}

func TestConvertBadInput(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("init,setup,0,1000,0,2000\nname,group,x,1,0,2\n"), 0644))
	opts := testOptions([]string{bad})
	_, err := convert(opts, &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv:2")
}

func TestPrintSummary(t *testing.T) {
	files := writeInputs(t)
	stats, err := convert(testOptions(files), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	var out bytes.Buffer
	printSummary(&out, stats)
	assert.Contains(t, out.String(), "Rank 0: 3 tasks, 0 skipped, time shift 1,000,000\n")
	assert.Contains(t, out.String(), "Wrote 10 events for 5 tasks (0 skipped)")
}

func TestValidateFlags(t *testing.T) {
	files := writeInputs(t)
	reset := func() {
		flagFilename = nil
		flagTimerResolution = trace.DefaultTimerResolution
		flagTimeDivisor = 1000
		flagHost = "myHost"
	}
	tests := []struct {
		name    string
		setup   func()
		args    []string
		wantErr bool
	}{
		{"flag files", func() { flagFilename = []string{files[0]} }, nil, false},
		{"positional files", func() { flagFilename = []string{files[0]} }, files[1:], false},
		{"no files", func() {}, nil, true},
		{"missing file", func() { flagFilename = []string{"missing.csv"} }, nil, true},
		{"directory", func() { flagFilename = []string{filepath.Dir(files[0])} }, nil, true},
		{"zero resolution", func() { flagFilename = files; flagTimerResolution = 0 }, nil, true},
		{"zero divisor", func() { flagFilename = files; flagTimeDivisor = 0 }, nil, true},
		{"empty host", func() { flagFilename = files; flagHost = "" }, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset()
			tt.setup()
			err := validateFlags(&cobra.Command{Use: cmdName}, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			flagFiles := append([]string(nil), flagFilename...)
			// validating again must not grow the file list
			require.NoError(t, validateFlags(&cobra.Command{Use: cmdName}, tt.args))
			assert.Equal(t, flagFiles, flagFilename)
			assert.Len(t, inputFiles(tt.args), len(tt.args)+1)
		})
	}
	reset()
}

func TestFilenameFlagKeepsCommas(t *testing.T) {
	defer func() { flagFilename = nil }()
	path := filepath.Join(t.TempDir(), "rank0,warm.csv")
	require.NoError(t, os.WriteFile(path, []byte(rank0CSV), 0644))

	require.NoError(t, Cmd.Flags().Set(flagFilenameName, path))
	assert.Equal(t, []string{path}, inputFiles(nil))
	assert.NoError(t, validateFlags(&cobra.Command{Use: cmdName}, nil))
}

func TestConvertRecordsClockOffset(t *testing.T) {
	files := writeInputs(t)
	opts := testOptions(files)
	opts.Output = filepath.Join(t.TempDir(), "run.trace")
	opts.ClockOffset = 1700000000000000

	_, err := convert(opts, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	defs, err := trace.ReadDefinitions(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000000), defs.GlobalOffset)
}

func TestConvertResolvesRelativeOutput(t *testing.T) {
	files := writeInputs(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PWD", dir)
	opts := testOptions(files)
	opts.Output = "run.trace"

	var out bytes.Buffer
	_, err = convert(opts, &out, nil)
	require.NoError(t, err)
	output := filepath.Join(dir, "run.trace")
	assert.Contains(t, out.String(), "Output   : "+output+"\n")
	assert.DirExists(t, output)
}
