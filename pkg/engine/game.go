// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fablehost/fabled/pkg/types"
)

// DefaultTick is the wall-clock interval of one game time unit.
const DefaultTick = time.Second

// LibVersion is the engine's own semantic version, reported as
// lib_version by "get statistics" on the global scope.
var LibVersion = types.Version{Major: 1, Minor: 2, Patch: 0}

// NameTakenError reports an attempt to insert an entity under a name that
// is already used in the game.
type NameTakenError struct {
	Name string
}

func (e *NameTakenError) Error() string {
	return "an entity with that name already exists"
}

// NotFoundError reports a lookup of an absent entity. Kind is the scope
// vocabulary word used in the wire message ("player", "room", ...).
type NotFoundError struct {
	Kind string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found"
}

// Game is one running simulation: a world of entities, a set of players
// and a clock. All public methods are safe for concurrent use; command
// processing for different players may run in parallel.
type Game struct {
	mx       sync.Mutex
	def      *Definition
	meta     map[string]string
	entities map[string]Entity
	players  map[string]*Player
	time     uint64
	running  bool
	tick     time.Duration
	stop     chan struct{}
}

// NewGame instantiates the world declared by the definition. The clock is
// stopped; tick <= 0 selects DefaultTick.
func NewGame(def *Definition, tick time.Duration) *Game {
	if tick <= 0 {
		tick = DefaultTick
	}
	g := &Game{
		def:      def,
		meta:     map[string]string{},
		entities: map[string]Entity{},
		players:  map[string]*Player{},
		tick:     tick,
	}
	for _, e := range def.Meta {
		g.meta[e.Key] = e.Value
	}
	for _, r := range def.Rooms {
		exits := make(map[string]string, len(r.Exits))
		for _, e := range r.Exits {
			exits[e.Direction] = e.To
		}
		g.entities[r.Name] = &Room{name: r.Name, title: r.Title, description: r.Description, exits: exits}
	}
	for _, o := range def.Objects {
		g.entities[o.Name] = &Object{name: o.Name, title: o.Title, description: o.Description, location: o.Location}
	}
	for _, c := range def.Creatures {
		g.entities[c.Name] = &Creature{name: c.Name, title: c.Title, description: c.Description, location: c.Location}
	}
	for _, r := range def.Resources {
		g.entities[r.Name] = &Resource{name: r.Name, amount: r.Amount}
	}
	return g
}

// NewGameFromFile loads the definition at path and instantiates it.
func NewGameFromFile(path string, tick time.Duration) (*Game, error) {
	def, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	return NewGame(def, tick), nil
}

// Start resumes the game clock. Idempotent.
func (g *Game) Start() {
	g.mx.Lock()
	defer g.mx.Unlock()
	if g.running {
		return
	}
	g.running = true
	g.stop = make(chan struct{})
	go g.runClock(g.stop)
}

// Stop pauses the game clock. Idempotent.
func (g *Game) Stop() {
	g.mx.Lock()
	defer g.mx.Unlock()
	if !g.running {
		return
	}
	g.running = false
	close(g.stop)
}

func (g *Game) runClock(stop chan struct{}) {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.mx.Lock()
			g.time++
			g.mx.Unlock()
		}
	}
}

// Time returns the game's current time in ticks.
func (g *Game) Time() uint64 {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.time
}

// InProgress reports whether the clock is running.
func (g *Game) InProgress() bool {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.running
}

// Meta returns the value of one meta key; absent keys read as "".
func (g *Game) Meta(key string) string {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.meta[key]
}

// SetMeta writes one meta key.
func (g *Game) SetMeta(key, value string) {
	g.mx.Lock()
	defer g.mx.Unlock()
	g.meta[key] = value
}

// AllMeta returns a copy of the whole meta map.
func (g *Game) AllMeta() map[string]string {
	g.mx.Lock()
	defer g.mx.Unlock()
	out := make(map[string]string, len(g.meta))
	for k, v := range g.meta {
		out[k] = v
	}
	return out
}

// InsertPlayer adds the player to the world, spawning it in the start
// room when the definition declares one. The player is greeted on its
// notification channel.
func (g *Game) InsertPlayer(p *Player) error {
	g.mx.Lock()
	if _, taken := g.entities[p.name]; taken {
		g.mx.Unlock()
		return &NameTakenError{Name: p.name}
	}
	if _, taken := g.players[p.name]; taken {
		g.mx.Unlock()
		return &NameTakenError{Name: p.name}
	}
	if _, ok := g.entities[StartRoom]; ok {
		p.room = StartRoom
	}
	g.players[p.name] = p
	g.mx.Unlock()
	p.out.Write(types.DefaultChannel, fmt.Sprintf("Welcome, %s!\n", p.name))
	return nil
}

// RemovePlayer drops the player from the world.
func (g *Game) RemovePlayer(name string) error {
	g.mx.Lock()
	defer g.mx.Unlock()
	if _, ok := g.players[name]; !ok {
		return &NotFoundError{Kind: "player"}
	}
	delete(g.players, name)
	return nil
}

// Player returns the named player, or nil.
func (g *Game) Player(name string) *Player {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.players[name]
}

// Players returns every player, sorted by name.
func (g *Game) Players() []*Player {
	g.mx.Lock()
	defer g.mx.Unlock()
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// NumPlayers returns the current player count.
func (g *Game) NumPlayers() int {
	g.mx.Lock()
	defer g.mx.Unlock()
	return len(g.players)
}

// Entity returns the named entity of any type, players included.
func (g *Game) Entity(name string) (Entity, bool) {
	g.mx.Lock()
	defer g.mx.Unlock()
	if e, ok := g.entities[name]; ok {
		return e, true
	}
	if p, ok := g.players[name]; ok {
		return p, true
	}
	return nil, false
}

// EntitiesOf returns every entity whose type belongs to the class, sorted
// by name.
func (g *Game) EntitiesOf(class Class) []Entity {
	g.mx.Lock()
	defer g.mx.Unlock()
	var out []Entity
	for _, e := range g.entities {
		if class.Contains(e.Type()) {
			out = append(out, e)
		}
	}
	if class.Contains(TypePlayer) {
		for _, p := range g.players {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// LastCommand returns the last command the named player executed.
func (g *Game) LastCommand(name string) (string, bool) {
	g.mx.Lock()
	defer g.mx.Unlock()
	p, ok := g.players[name]
	if !ok {
		return "", false
	}
	return p.lastCommand, true
}

// Statistics renders the per-game statistics object.
func (g *Game) Statistics() map[string]interface{} {
	g.mx.Lock()
	defer g.mx.Unlock()
	return map[string]interface{}{
		"players":      len(g.players),
		"entities":     len(g.entities) + len(g.players),
		"current_time": g.time,
		"is_running":   g.running,
	}
}
