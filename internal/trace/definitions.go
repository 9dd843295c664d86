package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Type is the value type of an Attribute
type Type string

const (
	TypeString Type = "string"
	TypeInt64  Type = "int64"
	TypeDouble Type = "double"
)

// GroupType is the kind of members a Group holds
type GroupType string

const (
	GroupTypeRegions GroupType = "regions"
)

// SystemTreeNode is a node in the hardware hierarchy, e.g., a machine or a host
type SystemTreeNode struct {
	ID         uint32
	Name       string
	Parent     *SystemTreeNode
	Properties []Property
}

// Property is a key/value pair attached to a SystemTreeNode
type Property struct {
	Key   string
	Value any
}

// LocationGroup groups Locations and becomes a process in the trace viewer
type LocationGroup struct {
	ID     uint32
	Name   string
	Parent *SystemTreeNode
}

// Location owns one time-ordered event stream and becomes a thread in the trace viewer
type Location struct {
	ID     uint64
	Name   string
	Group  *LocationGroup
	Events uint64
}

// Attribute is a typed key that events may carry
type Attribute struct {
	ID          uint32
	Name        string
	Description string
	Type        Type
}

// Region is a named code region or task referenced by enter and leave events
type Region struct {
	ID   uint32
	Name string
}

// Group is a named collection of definitions
type Group struct {
	ID      uint32
	Name    string
	Type    GroupType
	Members []*Region
}

// DefinitionsFileName is the name of the definitions file inside an archive
const DefinitionsFileName = "definitions.yaml"

// Definitions is the on-disk form of the archive's global definitions
type Definitions struct {
	Creator         string              `yaml:"creator"`
	TimerResolution uint64              `yaml:"timer_resolution"`
	GlobalOffset    int64               `yaml:"global_offset"`
	FirstTimestamp  int64               `yaml:"first_timestamp"`
	LastTimestamp   int64               `yaml:"last_timestamp"`
	SystemTree      []SystemTreeNodeDef `yaml:"system_tree"`
	LocationGroups  []LocationGroupDef  `yaml:"location_groups"`
	Locations       []LocationDef       `yaml:"locations"`
	Attributes      []AttributeDef      `yaml:"attributes"`
	Regions         []RegionDef         `yaml:"regions"`
	Groups          []GroupDef          `yaml:"groups"`
}

type SystemTreeNodeDef struct {
	ID         uint32            `yaml:"id"`
	Name       string            `yaml:"name"`
	Parent     *uint32           `yaml:"parent,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

type LocationGroupDef struct {
	ID     uint32 `yaml:"id"`
	Name   string `yaml:"name"`
	Parent uint32 `yaml:"system_tree_parent"`
}

type LocationDef struct {
	ID     uint64 `yaml:"id"`
	Name   string `yaml:"name"`
	Group  uint32 `yaml:"group"`
	Events uint64 `yaml:"events"`
}

type AttributeDef struct {
	ID          uint32 `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Type        Type   `yaml:"type"`
}

type RegionDef struct {
	ID   uint32 `yaml:"id"`
	Name string `yaml:"name"`
}

type GroupDef struct {
	ID      uint32    `yaml:"id"`
	Name    string    `yaml:"name"`
	Type    GroupType `yaml:"type"`
	Members []uint32  `yaml:"members"`
}

// ReadDefinitions loads the definitions file of the archive in dir
func ReadDefinitions(dir string) (*Definitions, error) {
	path := filepath.Join(dir, DefinitionsFileName)
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "failed to read definitions")
	}
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return &defs, nil
}

// RegionByName returns the first region definition with the given name
func (d *Definitions) RegionByName(name string) (RegionDef, bool) {
	for _, r := range d.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return RegionDef{}, false
}

// GroupByName returns the first group definition with the given name
func (d *Definitions) GroupByName(name string) (GroupDef, bool) {
	for _, g := range d.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupDef{}, false
}

func (a *Archive) definitions() *Definitions {
	defs := &Definitions{
		Creator:         a.creator,
		TimerResolution: a.resolution,
		GlobalOffset:    a.clockOffset,
		FirstTimestamp:  a.first,
		LastTimestamp:   a.last,
	}
	for _, n := range a.nodes {
		def := SystemTreeNodeDef{ID: n.ID, Name: n.Name}
		if n.Parent != nil {
			parent := n.Parent.ID
			def.Parent = &parent
		}
		if len(n.Properties) > 0 {
			def.Properties = make(map[string]string, len(n.Properties))
			for _, p := range n.Properties {
				def.Properties[p.Key] = formatValue(p.Value)
			}
		}
		defs.SystemTree = append(defs.SystemTree, def)
	}
	for _, g := range a.locationGroups {
		defs.LocationGroups = append(defs.LocationGroups, LocationGroupDef{ID: g.ID, Name: g.Name, Parent: g.Parent.ID})
	}
	for _, w := range a.writers {
		loc := w.location
		defs.Locations = append(defs.Locations, LocationDef{ID: loc.ID, Name: loc.Name, Group: loc.Group.ID, Events: loc.Events})
	}
	for _, attr := range a.attributes {
		defs.Attributes = append(defs.Attributes, AttributeDef{ID: attr.ID, Name: attr.Name, Description: attr.Description, Type: attr.Type})
	}
	for _, r := range a.regions {
		defs.Regions = append(defs.Regions, RegionDef{ID: r.ID, Name: r.Name})
	}
	for _, g := range a.groups {
		def := GroupDef{ID: g.ID, Name: g.Name, Type: g.Type, Members: []uint32{}}
		for _, m := range g.Members {
			def.Members = append(def.Members, m.ID)
		}
		defs.Groups = append(defs.Groups, def)
	}
	return defs
}

func (a *Archive) writeDefinitions() error {
	out, err := yaml.Marshal(a.definitions())
	if err != nil {
		return errors.Wrap(err, "failed to encode definitions")
	}
	path := filepath.Join(a.dir, DefinitionsFileName)
	if err := os.WriteFile(path, out, 0644); err != nil { // #nosec G306
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
