/*
Package trace writes directory-based trace archives. An archive holds global
definitions (system tree, location groups, locations, attributes, regions,
groups) and one time-ordered event stream per location.

Definition calls always allocate a new definition. Callers that need one
definition per name keep their own registry.
*/
package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var (
	// ErrTimestampOrder is returned when an event is older than the previous event on its location
	ErrTimestampOrder = errors.New("timestamp precedes previous event on location")
	// ErrNegativeTimestamp is returned for events before the start of the timer
	ErrNegativeTimestamp = errors.New("negative timestamp")
	// ErrClosed is returned when writing to an archive that has been closed
	ErrClosed = errors.New("archive is closed")
)

// IsTimestampError reports whether err was caused by an event timestamp the archive rejected
func IsTimestampError(err error) bool {
	return errors.Is(err, ErrTimestampOrder) || errors.Is(err, ErrNegativeTimestamp)
}

// DefaultTimerResolution is the number of timer ticks per second
const DefaultTimerResolution uint64 = 1000000

// Archive is an open trace archive
type Archive struct {
	dir         string
	resolution  uint64
	clockOffset int64
	creator     string

	events *eventStream
	closed bool

	nodes          []*SystemTreeNode
	locationGroups []*LocationGroup
	attributes     []*Attribute
	regions        []*Region
	groups         []*Group
	writers        []*EventWriter
	writerByName   map[string]*EventWriter

	first int64
	last  int64
}

// Option configures an Archive
type Option func(*Archive)

// WithTimerResolution sets the number of timer ticks per second
func WithTimerResolution(ticksPerSecond uint64) Option {
	return func(a *Archive) {
		a.resolution = ticksPerSecond
	}
}

// WithClockOffset records the wall clock time, in ticks, of timestamp zero
func WithClockOffset(ticks int64) Option {
	return func(a *Archive) {
		a.clockOffset = ticks
	}
}

// WithCreator records the name of the program that wrote the archive
func WithCreator(creator string) Option {
	return func(a *Archive) {
		a.creator = creator
	}
}

// Open creates the archive directory and starts its event stream. The
// directory is created if needed; existing archive files in it are replaced.
func Open(dir string, opts ...Option) (*Archive, error) {
	a := &Archive{
		dir:          dir,
		resolution:   DefaultTimerResolution,
		writerByName: make(map[string]*EventWriter),
		first:        math.MaxInt64,
		last:         math.MinInt64,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.resolution == 0 {
		return nil, errors.New("timer resolution must be greater than 0")
	}
	if err := os.MkdirAll(dir, 0755); err != nil { // #nosec G301
		return nil, errors.Wrapf(err, "failed to create archive directory %s", dir)
	}
	events, err := createEventStream(filepath.Join(dir, EventsFileName))
	if err != nil {
		return nil, err
	}
	a.events = events
	slog.Debug("opened trace archive", slog.String("dir", dir), slog.Uint64("resolution", a.resolution))
	return a, nil
}

// Dir returns the archive directory
func (a *Archive) Dir() string {
	return a.dir
}

// TimerResolution returns the number of timer ticks per second
func (a *Archive) TimerResolution() uint64 {
	return a.resolution
}

// EventCount returns the number of events written so far
func (a *Archive) EventCount() int {
	return a.events.count
}

// SystemTreeNode defines a node in the system tree. parent is nil for the root.
func (a *Archive) SystemTreeNode(name string, parent *SystemTreeNode) *SystemTreeNode {
	node := &SystemTreeNode{ID: uint32(len(a.nodes)), Name: name, Parent: parent}
	a.nodes = append(a.nodes, node)
	return node
}

// SystemTreeNodeProperty attaches a property to node
func (a *Archive) SystemTreeNodeProperty(node *SystemTreeNode, key string, value any) {
	node.Properties = append(node.Properties, Property{Key: key, Value: value})
}

// LocationGroup defines a location group below a system tree node
func (a *Archive) LocationGroup(name string, parent *SystemTreeNode) *LocationGroup {
	group := &LocationGroup{ID: uint32(len(a.locationGroups)), Name: name, Parent: parent}
	a.locationGroups = append(a.locationGroups, group)
	return group
}

// Attribute defines an event attribute
func (a *Archive) Attribute(name, description string, typ Type) *Attribute {
	attr := &Attribute{ID: uint32(len(a.attributes)), Name: name, Description: description, Type: typ}
	a.attributes = append(a.attributes, attr)
	return attr
}

// Region defines a region
func (a *Archive) Region(name string) *Region {
	region := &Region{ID: uint32(len(a.regions)), Name: name}
	a.regions = append(a.regions, region)
	return region
}

// Group defines a group with the given members
func (a *Archive) Group(name string, typ GroupType, members []*Region) (*Group, error) {
	if typ != GroupTypeRegions {
		return nil, errors.Errorf("unsupported group type %q", typ)
	}
	for _, m := range members {
		if m == nil {
			return nil, errors.Errorf("group %s has a nil member", name)
		}
	}
	group := &Group{ID: uint32(len(a.groups)), Name: name, Type: typ, Members: append([]*Region(nil), members...)}
	a.groups = append(a.groups, group)
	return group, nil
}

// EventWriter returns the writer for the named location, defining the
// location in group on first use
func (a *Archive) EventWriter(location string, group *LocationGroup) (*EventWriter, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if w, ok := a.writerByName[location]; ok {
		return w, nil
	}
	if group == nil {
		return nil, errors.Errorf("location %s has no location group", location)
	}
	w := &EventWriter{
		archive:  a,
		location: &Location{ID: uint64(len(a.writers)), Name: location, Group: group},
	}
	a.writers = append(a.writers, w)
	a.writerByName[location] = w
	return w, nil
}

// Close writes the remaining metadata and the definitions file. It is safe
// to call more than once.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	var firstErr error
	for _, g := range a.locationGroups {
		err := a.events.write(Event{Name: "process_name", Phase: Metadata, ProcessID: g.ID, Args: map[string]any{"name": g.Name}})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, w := range a.writers {
		loc := w.location
		err := a.events.write(Event{Name: "thread_name", Phase: Metadata, ProcessID: loc.Group.ID, ThreadID: loc.ID, Args: map[string]any{"name": loc.Name}})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.first > a.last {
		a.first, a.last = 0, 0
	}
	err := a.events.close(map[string]any{
		"creator":          a.creator,
		"timer_resolution": a.resolution,
		"global_offset":    a.clockOffset,
	})
	if err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.writeDefinitions(); err != nil && firstErr == nil {
		firstErr = err
	}
	slog.Debug("closed trace archive", slog.String("dir", a.dir), slog.Int("events", a.events.count), slog.Int("locations", len(a.writers)))
	return firstErr
}

// micros converts timer ticks to the microseconds TEF expects
func (a *Archive) micros(ticks int64) float64 {
	return float64(ticks) * 1e6 / float64(a.resolution)
}

func (a *Archive) expand(ts int64) {
	if ts < a.first {
		a.first = ts
	}
	if ts > a.last {
		a.last = ts
	}
}

// EventWriter writes the events of a single location
type EventWriter struct {
	archive  *Archive
	location *Location
	last     int64
}

// Location returns the location this writer writes to
func (w *EventWriter) Location() *Location {
	return w.location
}

// LastTimestamp returns the timestamp of the most recent event, 0 if none
func (w *EventWriter) LastTimestamp() int64 {
	return w.last
}

func (w *EventWriter) check(ts int64, after int64) error {
	if w.archive.closed {
		return ErrClosed
	}
	if ts < 0 {
		return errors.Wrapf(ErrNegativeTimestamp, "location %s: %d", w.location.Name, ts)
	}
	if ts < after {
		return errors.Wrapf(ErrTimestampOrder, "location %s: %d < %d", w.location.Name, ts, after)
	}
	return nil
}

func (w *EventWriter) write(phase Phase, ts int64, region *Region, attrs map[*Attribute]any) error {
	if region == nil {
		return errors.Errorf("location %s: event without region", w.location.Name)
	}
	e := Event{
		Name:      region.Name,
		Phase:     phase,
		Timestamp: w.archive.micros(ts),
		ProcessID: w.location.Group.ID,
		ThreadID:  w.location.ID,
	}
	if len(attrs) > 0 {
		e.Args = make(map[string]any, len(attrs))
		for attr, value := range attrs {
			e.Args[attr.Name] = value
		}
	}
	if err := w.archive.events.write(e); err != nil {
		return err
	}
	w.last = ts
	w.location.Events++
	w.archive.expand(ts)
	return nil
}

// Enter writes an enter event for region at ts
func (w *EventWriter) Enter(ts int64, region *Region, attrs map[*Attribute]any) error {
	if err := w.check(ts, w.last); err != nil {
		return err
	}
	return w.write(DurationBegin, ts, region, attrs)
}

// Leave writes a leave event for region at ts
func (w *EventWriter) Leave(ts int64, region *Region, attrs map[*Attribute]any) error {
	if err := w.check(ts, w.last); err != nil {
		return err
	}
	return w.write(DurationEnd, ts, region, attrs)
}

// EnterLeave writes a matched enter/leave pair. Both timestamps are checked
// before anything is written, so a rejected pair leaves the location unchanged.
func (w *EventWriter) EnterLeave(enter, leave int64, region *Region, attrs map[*Attribute]any) error {
	if err := w.check(enter, w.last); err != nil {
		return err
	}
	if err := w.check(leave, enter); err != nil {
		return err
	}
	if err := w.write(DurationBegin, enter, region, attrs); err != nil {
		return err
	}
	return w.write(DurationEnd, leave, region, attrs)
}
