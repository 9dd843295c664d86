package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Events are stored in the Trace Event Format understood by chrome://tracing
// and Perfetto:
// https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU/preview

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// EventsFileName is the name of the event stream file inside an archive
const EventsFileName = "trace.json"

// Phase is the TEF event type
type Phase string

const (
	DurationBegin Phase = "B"
	DurationEnd   Phase = "E"
	Metadata      Phase = "M"
)

// Event is one TEF event
type Event struct {
	Name      string         `json:"name"`
	Category  string         `json:"cat,omitempty"`
	Phase     Phase          `json:"ph"`
	Timestamp float64        `json:"ts"`
	ProcessID uint32         `json:"pid"`
	ThreadID  uint64         `json:"tid"`
	Args      map[string]any `json:"args,omitempty"`
}

// File is the top level TEF object. It is only used for reading archives back.
type File struct {
	TraceEvents     []Event        `json:"traceEvents"`
	DisplayTimeUnit string         `json:"displayTimeUnit"`
	OtherData       map[string]any `json:"otherData"`
}

// ReadEvents loads the event stream of the archive in dir
func ReadEvents(dir string) (*File, error) {
	data, err := os.ReadFile(filepath.Join(dir, EventsFileName)) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "failed to read events")
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse events")
	}
	return &f, nil
}

// eventStream writes a TEF document one event at a time so the whole
// trace is never held in memory
type eventStream struct {
	file  *os.File
	buf   *bufio.Writer
	count int
}

func createEventStream(path string) (*eventStream, error) {
	file, err := os.Create(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", path)
	}
	s := &eventStream{file: file, buf: bufio.NewWriter(file)}
	if _, err := s.buf.WriteString("{\"traceEvents\":[\n"); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "failed to start event stream")
	}
	return s, nil
}

func (s *eventStream) write(e Event) error {
	out, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}
	if s.count > 0 {
		if _, err := s.buf.WriteString(",\n"); err != nil {
			return errors.Wrap(err, "failed to write event")
		}
	}
	if _, err := s.buf.Write(out); err != nil {
		return errors.Wrap(err, "failed to write event")
	}
	s.count++
	return nil
}

func (s *eventStream) close(otherData map[string]any) error {
	trailer, err := json.Marshal(otherData)
	if err != nil {
		s.file.Close()
		return errors.Wrap(err, "failed to encode trace metadata")
	}
	_, err = fmt.Fprintf(s.buf, "\n],\n\"displayTimeUnit\":\"ns\",\n\"otherData\":%s}\n", trailer)
	if err == nil {
		err = s.buf.Flush()
	}
	closeErr := s.file.Close()
	if err != nil {
		return errors.Wrap(err, "failed to finish event stream")
	}
	return errors.Wrap(closeErr, "failed to close event stream")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
