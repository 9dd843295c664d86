/*
Package taskcsv reads task-trace records written by the task runtime's
profiler. Each line is one task execution:

	task_name, task_group, thread_id_start, time_start, thread_id_end, time_end

There is no header row.
*/
package taskcsv

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FieldCount is the number of fields in every task record
const FieldCount = 6

const (
	idxTaskName int = iota
	idxTaskGroup
	idxThreadStart
	idxTimeStart
	idxThreadEnd
	idxTimeEnd
)

// SystemThread is the thread id the runtime reports for work done outside its worker threads
const SystemThread = -1

// Record is one parsed CSV row. Times are in the profiler's units.
type Record struct {
	TaskName    string
	TaskGroup   string
	ThreadStart int64
	TimeStart   int64
	ThreadEnd   int64
	TimeEnd     int64
}

// ParseRecord converts the fields of one CSV row into a Record
func ParseRecord(fields []string) (Record, error) {
	if len(fields) != FieldCount {
		return Record{}, fmt.Errorf("expected %d fields, found %d", FieldCount, len(fields))
	}
	var r Record
	r.TaskName = strings.TrimSpace(fields[idxTaskName])
	r.TaskGroup = strings.TrimSpace(fields[idxTaskGroup])
	ints := []struct {
		name string
		idx  int
		dst  *int64
	}{
		{"thread_id_start", idxThreadStart, &r.ThreadStart},
		{"time_start", idxTimeStart, &r.TimeStart},
		{"thread_id_end", idxThreadEnd, &r.ThreadEnd},
		{"time_end", idxTimeEnd, &r.TimeEnd},
	}
	for _, f := range ints {
		v, err := strconv.ParseInt(strings.TrimSpace(fields[f.idx]), 10, 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid %s %q: %w", f.name, fields[f.idx], err)
		}
		*f.dst = v
	}
	return r, nil
}

// Reader reads Records from a CSV stream
type Reader struct {
	name   string
	reader *csv.Reader
	line   int
}

// NewReader returns a Reader for r. name is used in error messages.
func NewReader(r io.Reader, name string) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = FieldCount
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{name: name, reader: cr}
}

// Read returns the next Record, or io.EOF when the stream is exhausted
func (r *Reader) Read() (Record, error) {
	fields, err := r.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("%s: %w", r.name, err)
	}
	r.line++
	rec, err := ParseRecord(fields)
	if err != nil {
		line, _ := r.reader.FieldPos(0)
		return Record{}, fmt.Errorf("%s:%d: %w", r.name, line, err)
	}
	return rec, nil
}

// Line returns the number of records read so far
func (r *Reader) Line() int {
	return r.line
}

// ReadFile reads every Record in the named file
func ReadFile(path string) ([]Record, error) {
	file, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var records []Record
	reader := NewReader(file, path)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
