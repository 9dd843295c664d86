/*
Package ingest converts per-rank task-trace CSV files into trace archive
events. One input file is one rank, numbered by its position in the file
list. Rank clocks are shifted onto a common origin, every record becomes an
enter/leave pair on the location of its start thread, and task names and
task groups become region and group definitions shared by the whole run.
*/
package ingest

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"tasktrace/internal/progress"
	"tasktrace/internal/taskcsv"
	"tasktrace/internal/trace"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	// GroupAttributeName is the attribute that carries a task's group on every event
	GroupAttributeName = "Function Group"
	// DefaultHostName is the system tree node all locations hang from
	DefaultHostName = "myHost"
	// DefaultTimeDivisor converts input time units to timer ticks
	DefaultTimeDivisor int64 = 1000
	rootNodeName             = "node"
)

// Sink is the part of a trace archive the ingestor writes to
type Sink interface {
	SystemTreeNode(name string, parent *trace.SystemTreeNode) *trace.SystemTreeNode
	SystemTreeNodeProperty(node *trace.SystemTreeNode, key string, value any)
	LocationGroup(name string, parent *trace.SystemTreeNode) *trace.LocationGroup
	Attribute(name, description string, typ trace.Type) *trace.Attribute
	Region(name string) *trace.Region
	Group(name string, typ trace.GroupType, members []*trace.Region) (*trace.Group, error)
	EventWriter(location string, group *trace.LocationGroup) (*trace.EventWriter, error)
}

// Options configure an Ingestor. The zero value is usable.
type Options struct {
	HostName    string                          // name of the host system tree node
	TimeDivisor int64                           // input time units per timer tick
	Out         io.Writer                       // progress lines and skipped-record diagnostics
	Progress    progress.MultiSpinnerUpdateFunc // per-file status, label is the file name
	Metrics     *Metrics                        // optional counters
}

// RankStats summarizes one input file
type RankStats struct {
	Rank    int
	File    string
	Records int
	Skipped int
	Offset  int64
}

// Stats summarizes a run
type Stats struct {
	Records   int
	Emitted   int
	Skipped   int
	Regions   int
	Groups    int
	Locations int
	Ranks     []RankStats
}

type region struct {
	def  *trace.Region
	home string
}

type group struct {
	name    string
	members mapset.Set[*trace.Region]
	order   []*trace.Region
}

type locationKey struct {
	rank   int
	thread int64
}

// rankTimeline holds the clock shift of the rank being ingested
type rankTimeline struct {
	offset int64
	frozen bool
}

// Ingestor owns the region, group and location registries of one conversion run
type Ingestor struct {
	sink     Sink
	opts     Options
	host     *trace.SystemTreeNode
	attr     *trace.Attribute
	finished bool

	regions    map[string]*region
	groups     map[string]*group
	groupOrder []*group
	locations  map[locationKey]*trace.EventWriter

	firstTimestamp int64
	haveFirst      bool

	stats Stats
}

// New defines the system tree and the group attribute in sink and returns an Ingestor writing to it
func New(sink Sink, opts Options) (*Ingestor, error) {
	if opts.TimeDivisor == 0 {
		opts.TimeDivisor = DefaultTimeDivisor
	}
	if opts.TimeDivisor < 0 {
		return nil, fmt.Errorf("time divisor must be greater than 0, got %d", opts.TimeDivisor)
	}
	if opts.HostName == "" {
		opts.HostName = DefaultHostName
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	ing := &Ingestor{
		sink:      sink,
		opts:      opts,
		regions:   make(map[string]*region),
		groups:    make(map[string]*group),
		locations: make(map[locationKey]*trace.EventWriter),
	}
	root := sink.SystemTreeNode(rootNodeName, nil)
	ing.host = sink.SystemTreeNode(opts.HostName, root)
	sink.SystemTreeNodeProperty(ing.host, "color", "black")
	sink.SystemTreeNodeProperty(ing.host, "rack #", 42)
	ing.attr = sink.Attribute(GroupAttributeName, "Grouping of tasks", trace.TypeString)
	return ing, nil
}

// Ingest reads files in order, one rank per file, and then defines the groups
func (ing *Ingestor) Ingest(files []string) (Stats, error) {
	for rank, path := range files {
		if err := ing.IngestFile(rank, path); err != nil {
			return ing.Stats(), err
		}
	}
	if err := ing.Finish(); err != nil {
		return ing.Stats(), err
	}
	return ing.Stats(), nil
}

// IngestFile reads the task records of one rank from path
func (ing *Ingestor) IngestFile(rank int, path string) error {
	file, err := os.Open(path) // #nosec G304
	if err != nil {
		return err
	}
	defer file.Close()
	return ing.IngestReader(rank, file, path)
}

// IngestReader reads the task records of one rank from r. name labels
// progress and error messages.
func (ing *Ingestor) IngestReader(rank int, r io.Reader, name string) error {
	if ing.finished {
		return errors.New("ingestor is finished")
	}
	fmt.Fprintln(ing.opts.Out, "processing", name)
	ing.status(name, "processing")
	slog.Info("ingesting rank", slog.Int("rank", rank), slog.String("file", name))
	rs := RankStats{Rank: rank, File: name}
	var tl rankTimeline
	reader := taskcsv.NewReader(r, name)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			ing.status(name, "failed")
			return err
		}
		rec = ing.align(rank, &tl, rec)
		rs.Records++
		ing.stats.Records++
		ing.opts.Metrics.record(rank)
		emitted, err := ing.emit(rank, rec, tl.offset)
		if err != nil {
			ing.status(name, "failed")
			return err
		}
		if !emitted {
			rs.Skipped++
		}
	}
	rs.Offset = tl.offset
	ing.stats.Ranks = append(ing.stats.Ranks, rs)
	ing.status(name, fmt.Sprintf("%d tasks, %d skipped", rs.Records, rs.Skipped))
	return nil
}

// Finish defines one region group per task group. No records can be added afterwards.
func (ing *Ingestor) Finish() error {
	if ing.finished {
		return nil
	}
	ing.finished = true
	for _, g := range ing.groupOrder {
		names := make([]string, 0, len(g.order))
		for _, r := range g.order {
			names = append(names, r.Name)
		}
		slog.Debug("defining group", slog.String("group", g.name), slog.String("members", strings.Join(names, ", ")))
		if _, err := ing.sink.Group(g.name, trace.GroupTypeRegions, g.order); err != nil {
			return fmt.Errorf("failed to define group %s: %w", g.name, err)
		}
	}
	return nil
}

// Stats returns a snapshot of the run's counters
func (ing *Ingestor) Stats() Stats {
	s := ing.stats
	s.Regions = len(ing.regions)
	s.Groups = len(ing.groups)
	s.Locations = len(ing.locations)
	s.Ranks = append([]RankStats(nil), ing.stats.Ranks...)
	return s
}

// Region returns the region defined for a task name, nil if none
func (ing *Ingestor) Region(taskName string) *trace.Region {
	if r, ok := ing.regions[taskName]; ok {
		return r.def
	}
	return nil
}

// GroupMembers returns the regions of a task group in the order they joined it
func (ing *Ingestor) GroupMembers(taskGroup string) []*trace.Region {
	if g, ok := ing.groups[taskGroup]; ok {
		return append([]*trace.Region(nil), g.order...)
	}
	return nil
}

// align shifts rec onto the common time origin. The shift of a rank is fixed
// by the first record that starts after the run's first timestamp and
// applies to that record and every later record of the rank. Records that
// start earlier neither fix the shift nor are shifted by it before it is fixed.
func (ing *Ingestor) align(rank int, tl *rankTimeline, rec taskcsv.Record) taskcsv.Record {
	if !ing.haveFirst {
		ing.firstTimestamp = rec.TimeStart
		ing.haveFirst = true
	}
	if !tl.frozen && rec.TimeStart > ing.firstTimestamp {
		tl.offset = rec.TimeStart - ing.firstTimestamp
		tl.frozen = true
		fmt.Fprintln(ing.opts.Out, "Rank", rank, "time shift set to", tl.offset)
		slog.Info("rank time shift set", slog.Int("rank", rank), slog.Int64("offset", tl.offset))
	}
	rec.TimeStart -= tl.offset
	rec.TimeEnd -= tl.offset
	return rec
}

// emit writes the enter/leave pair for rec. It returns false when the
// archive rejected the pair's timestamps and the record was skipped.
func (ing *Ingestor) emit(rank int, rec taskcsv.Record, offset int64) (bool, error) {
	def := ing.region(rec.TaskName, rec.TaskGroup)
	ing.addToGroup(rec.TaskGroup, def)
	writer, err := ing.location(rank, rec.ThreadStart)
	if err != nil {
		return false, err
	}
	attrs := map[*trace.Attribute]any{ing.attr: rec.TaskGroup}
	enter := floorDiv(rec.TimeStart, ing.opts.TimeDivisor)
	leave := floorDiv(rec.TimeEnd, ing.opts.TimeDivisor)
	err = writer.EnterLeave(enter, leave, def, attrs)
	if err == nil {
		ing.stats.Emitted++
		ing.opts.Metrics.emitted()
		return true, nil
	}
	if !trace.IsTimestampError(err) {
		return false, fmt.Errorf("rank %d task %s: %w", rank, rec.TaskName, err)
	}
	ing.stats.Skipped++
	ing.opts.Metrics.skipped(rank)
	slog.Warn("skipping task",
		slog.String("error", err.Error()),
		slog.Int("rank", rank),
		slog.String("task", rec.TaskName),
		slog.String("group", rec.TaskGroup),
		slog.Int64("thread_start", rec.ThreadStart),
		slog.Int64("time_start", rec.TimeStart),
		slog.Int64("thread_end", rec.ThreadEnd),
		slog.Int64("time_end", rec.TimeEnd),
		slog.Int64("offset", offset))
	fmt.Fprintf(ing.opts.Out, "Exception %v\nadding task\n%d %s %s %d %d %d %d\n",
		err, rank, rec.TaskName, rec.TaskGroup, rec.ThreadStart, rec.TimeStart, rec.ThreadEnd, rec.TimeEnd)
	return false, nil
}

func (ing *Ingestor) region(taskName, taskGroup string) *trace.Region {
	if r, ok := ing.regions[taskName]; ok {
		return r.def
	}
	r := &region{def: ing.sink.Region(taskName), home: taskGroup}
	ing.regions[taskName] = r
	return r.def
}

func (ing *Ingestor) addToGroup(taskGroup string, def *trace.Region) {
	g, ok := ing.groups[taskGroup]
	if !ok {
		g = &group{name: taskGroup, members: mapset.NewThreadUnsafeSet[*trace.Region]()}
		ing.groups[taskGroup] = g
		ing.groupOrder = append(ing.groupOrder, g)
	}
	if !g.members.Add(def) {
		return
	}
	g.order = append(g.order, def)
	if home := ing.regions[def.Name].home; home != taskGroup {
		slog.Warn("task seen in more than one group", slog.String("task", def.Name), slog.String("group", home), slog.String("also", taskGroup))
	}
}

func (ing *Ingestor) location(rank int, thread int64) (*trace.EventWriter, error) {
	key := locationKey{rank: rank, thread: thread}
	if w, ok := ing.locations[key]; ok {
		return w, nil
	}
	name := LocationName(rank, thread)
	group := ing.sink.LocationGroup(name, ing.host)
	w, err := ing.sink.EventWriter(name, group)
	if err != nil {
		return nil, fmt.Errorf("failed to create location %s: %w", name, err)
	}
	ing.locations[key] = w
	return w, nil
}

func (ing *Ingestor) status(label, status string) {
	if ing.opts.Progress == nil {
		return
	}
	if err := ing.opts.Progress(label, status); err != nil {
		slog.Debug("progress update failed", slog.String("label", label), slog.String("error", err.Error()))
	}
}

// LocationName formats the location of a thread on a rank, e.g., R000.T003.
// The runtime's system thread is named Tsys.
func LocationName(rank int, thread int64) string {
	if thread == taskcsv.SystemThread {
		return fmt.Sprintf("R%03d.Tsys", rank)
	}
	return fmt.Sprintf("R%03d.T%03d", rank, thread)
}

// floorDiv divides rounding toward negative infinity
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
