// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package engine

import (
	"encoding/xml"
	"fmt"
	"os"
)

// StartRoom is where players spawn when the definition declares it.
const StartRoom = "start"

// Definition is a parsed game definition file. The same structure is
// embedded into snapshots so a dumped game can be rebuilt without its
// definition file being present.
type Definition struct {
	XMLName   xml.Name      `xml:"definition" json:"-"`
	Meta      []MetaEntry   `xml:"meta>entry" json:"meta,omitempty"`
	Rooms     []RoomDef     `xml:"room" json:"rooms,omitempty"`
	Objects   []ObjectDef   `xml:"object" json:"objects,omitempty"`
	Creatures []CreatureDef `xml:"creature" json:"creatures,omitempty"`
	Resources []ResourceDef `xml:"resource" json:"resources,omitempty"`
}

// MetaEntry is one key/value pair of the definition's meta block.
type MetaEntry struct {
	Key   string `xml:"key,attr" json:"key"`
	Value string `xml:",chardata" json:"value"`
}

// RoomDef declares a room and its exits.
type RoomDef struct {
	Name        string    `xml:"name,attr" json:"name"`
	Title       string    `xml:"title,attr" json:"title,omitempty"`
	Description string    `xml:"description" json:"description,omitempty"`
	Exits       []ExitDef `xml:"exit" json:"exits,omitempty"`
}

// ExitDef connects a room to another by direction.
type ExitDef struct {
	Direction string `xml:"direction,attr" json:"direction"`
	To        string `xml:"to,attr" json:"to"`
}

// ObjectDef declares an object.
type ObjectDef struct {
	Name        string `xml:"name,attr" json:"name"`
	Title       string `xml:"title,attr" json:"title,omitempty"`
	Description string `xml:"description" json:"description,omitempty"`
	Location    string `xml:"location,attr" json:"location,omitempty"`
}

// CreatureDef declares a creature.
type CreatureDef struct {
	Name        string `xml:"name,attr" json:"name"`
	Title       string `xml:"title,attr" json:"title,omitempty"`
	Description string `xml:"description" json:"description,omitempty"`
	Location    string `xml:"location,attr" json:"location,omitempty"`
}

// ResourceDef declares a resource.
type ResourceDef struct {
	Name   string `xml:"name,attr" json:"name"`
	Amount int    `xml:"amount,attr" json:"amount,omitempty"`
}

// LoadDefinition parses the definition file at path.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("definition %q: %v", path, err)
	}
	return def, nil
}

// ParseDefinition parses and validates definition XML.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := xml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (d *Definition) validate() error {
	seen := map[string]bool{}
	names := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("%s without a name", kind)
		}
		if seen[name] {
			return fmt.Errorf("duplicate entity name %q", name)
		}
		seen[name] = true
		return nil
	}
	rooms := map[string]bool{}
	for _, r := range d.Rooms {
		if err := names("room", r.Name); err != nil {
			return err
		}
		rooms[r.Name] = true
	}
	for _, o := range d.Objects {
		if err := names("object", o.Name); err != nil {
			return err
		}
	}
	for _, c := range d.Creatures {
		if err := names("creature", c.Name); err != nil {
			return err
		}
	}
	for _, r := range d.Resources {
		if err := names("resource", r.Name); err != nil {
			return err
		}
	}
	for _, r := range d.Rooms {
		for _, e := range r.Exits {
			if !rooms[e.To] {
				return fmt.Errorf("room %q exit %q leads to unknown room %q", r.Name, e.Direction, e.To)
			}
		}
	}
	return nil
}
