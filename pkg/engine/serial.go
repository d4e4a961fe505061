// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/fablehost/fabled/pkg/drivers"
	jsoniter "github.com/json-iterator/go"
)

// Format is a named (de)serialization codec for game snapshots.
// Extensions may register additional formats at startup.
type Format interface {
	Name() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// UnknownFormatError reports a lookup of an unregistered format name.
type UnknownFormatError struct {
	Name string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown serialization format %q", e.Name)
}

var (
	formatsMx sync.RWMutex
	formats   = map[string]Format{}
)

// RegisterFormat adds a named snapshot format. Duplicates are rejected.
func RegisterFormat(f Format) error {
	formatsMx.Lock()
	defer formatsMx.Unlock()
	if _, ok := formats[f.Name()]; ok {
		return fmt.Errorf("serialization format %q is already registered", f.Name())
	}
	formats[f.Name()] = f
	return nil
}

// FormatByName returns the named snapshot format.
func FormatByName(name string) (Format, error) {
	formatsMx.RLock()
	defer formatsMx.RUnlock()
	f, ok := formats[name]
	if !ok {
		return nil, &UnknownFormatError{Name: name}
	}
	return f, nil
}

type jsonFormat struct{}

func (jsonFormat) Name() string { return "json" }

func (jsonFormat) Marshal(v interface{}) ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
}

func (jsonFormat) Unmarshal(data []byte, v interface{}) error {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, v)
}

func init() {
	RegisterFormat(jsonFormat{})
}

// Snapshot is the serialized shape of a game. The definition travels
// inside it so restore does not depend on the definition file.
type Snapshot struct {
	Definition Definition        `json:"definition"`
	Meta       map[string]string `json:"meta"`
	Time       uint64            `json:"current_time"`
	InProgress bool              `json:"in_progress"`
	Players    []PlayerSnapshot  `json:"players,omitempty"`
}

// PlayerSnapshot is the serialized shape of one player.
type PlayerSnapshot struct {
	Name        string `json:"name"`
	Room        string `json:"room,omitempty"`
	LastCommand string `json:"last_command,omitempty"`
}

// Serialize renders the game in the named format.
func (g *Game) Serialize(format string) ([]byte, error) {
	f, err := FormatByName(format)
	if err != nil {
		return nil, err
	}
	g.mx.Lock()
	snap := Snapshot{
		Definition: *g.def,
		Meta:       make(map[string]string, len(g.meta)),
		Time:       g.time,
		InProgress: g.running,
	}
	for k, v := range g.meta {
		snap.Meta[k] = v
	}
	for _, p := range g.players {
		snap.Players = append(snap.Players, PlayerSnapshot{
			Name:        p.name,
			Room:        p.room,
			LastCommand: p.lastCommand,
		})
	}
	g.mx.Unlock()
	return f.Marshal(snap)
}

// Streams hands out fresh I/O streams for a restored player. The caller
// binds the game id.
type Streams interface {
	Streams(entity string) (*drivers.OutputStream, *drivers.InputStream)
}

// FromSerialized rebuilds a game from a snapshot in the named format.
// Players get fresh streams from the provider; a snapshot that was in
// progress resumes its clock.
func FromSerialized(format string, data []byte, tick time.Duration, streams Streams) (*Game, error) {
	f, err := FormatByName(format)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := f.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("deserializing game snapshot: %v", err)
	}
	g := NewGame(&snap.Definition, tick)
	g.mx.Lock()
	for k, v := range snap.Meta {
		g.meta[k] = v
	}
	g.time = snap.Time
	for _, ps := range snap.Players {
		out, in := streams.Streams(ps.Name)
		p := NewPlayer(ps.Name, out, in)
		p.room = ps.Room
		p.lastCommand = ps.LastCommand
		g.players[ps.Name] = p
	}
	g.mx.Unlock()
	if snap.InProgress {
		g.Start()
	}
	return g, nil
}
