// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package container

import (
	"sync"
	"time"

	"github.com/fablehost/fabled/pkg/engine"
	"go.uber.org/zap"
)

// Simulation is the capability surface the container consumes from the
// engine. *engine.Game implements it; tests substitute fakes.
type Simulation interface {
	Start()
	Stop()
	Time() uint64
	InProgress() bool
	Meta(key string) string
	SetMeta(key, value string)
	AllMeta() map[string]string
	InsertPlayer(p *engine.Player) error
	RemovePlayer(name string) error
	Player(name string) *engine.Player
	Players() []*engine.Player
	NumPlayers() int
	Entity(name string) (engine.Entity, bool)
	EntitiesOf(class engine.Class) []engine.Entity
	ProcessCommand(p *engine.Player) bool
	LastCommand(name string) (string, bool)
	Statistics() map[string]interface{}
	Serialize(format string) ([]byte, error)
}

// Wrapper couples one simulation with its identity, mutex and listener.
// Every public operation holds the wrapper mutex for its full duration;
// the mutex is the single writer lock for everything touching this
// game's simulation from the request path.
type Wrapper struct {
	mx           sync.Mutex
	id           uint
	name         string
	definition   string
	createdAt    int64
	restoredSlot *uint
	destroyed    bool
	sim          Simulation
	listener     *Listener
	logger       *zap.SugaredLogger
}

func newWrapper(id uint, name, definition string, sim Simulation, logger *zap.SugaredLogger) *Wrapper {
	scoped := logger.With("gameID", id)
	return &Wrapper{
		id:         id,
		name:       name,
		definition: definition,
		createdAt:  time.Now().Unix(),
		sim:        sim,
		listener:   NewListener(sim, scoped),
		logger:     scoped,
	}
}

// ID returns the game id.
func (w *Wrapper) ID() uint { return w.id }

// Name returns the game's human label.
func (w *Wrapper) Name() string {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.name
}

// Definition returns the definition filename the game was created from.
func (w *Wrapper) Definition() string {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.definition
}

// CreatedAt returns the creation wall-clock time in unix seconds.
func (w *Wrapper) CreatedAt() int64 {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.createdAt
}

// RestoredFromSlot returns the dump slot this game was restored from, or
// nil for a game created from a definition.
func (w *Wrapper) RestoredFromSlot() *uint {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.restoredSlot
}

// Start resumes the simulation clock and the input listener. Starting a
// destroyed wrapper is a no-op, so a start racing with destruction never
// relaunches a clock nothing can stop.
func (w *Wrapper) Start() {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.destroyed {
		return
	}
	w.sim.Start()
	w.listener.Start()
}

// Stop halts the input listener and pauses the simulation clock.
func (w *Wrapper) Stop() {
	w.mx.Lock()
	defer w.mx.Unlock()
	w.listener.Stop()
	w.sim.Stop()
}

// Time returns the simulation's current time.
func (w *Wrapper) Time() uint64 {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.sim.Time()
}

// InProgress reports whether the simulation clock is running.
func (w *Wrapper) InProgress() bool {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.sim.InProgress()
}

// Meta reads game meta, restricted to keys when given.
func (w *Wrapper) Meta(keys []string) map[string]string {
	w.mx.Lock()
	defer w.mx.Unlock()
	if keys == nil {
		return w.sim.AllMeta()
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = w.sim.Meta(k)
	}
	return out
}

// SetMeta writes game meta, key by key.
func (w *Wrapper) SetMeta(meta map[string]string) {
	w.mx.Lock()
	defer w.mx.Unlock()
	for k, v := range meta {
		w.sim.SetMeta(k, v)
	}
}

// Statistics returns the simulation's statistics object.
func (w *Wrapper) Statistics() map[string]interface{} {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.sim.Statistics()
}

// Entity returns the named entity when its type belongs to the class.
func (w *Wrapper) Entity(name string, class engine.Class) (engine.Entity, bool) {
	w.mx.Lock()
	defer w.mx.Unlock()
	e, ok := w.sim.Entity(name)
	if !ok || !class.Contains(e.Type()) {
		return nil, false
	}
	return e, true
}

// Entities lists every entity of the class.
func (w *Wrapper) Entities(class engine.Class) []engine.Entity {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.sim.EntitiesOf(class)
}

// LastCommand returns the last command the named player executed.
func (w *Wrapper) LastCommand(name string) (string, bool) {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.sim.LastCommand(name)
}

// NumPlayers returns the simulation's current player count.
func (w *Wrapper) NumPlayers() int {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.sim.NumPlayers()
}

// Describe renders the wrapper for "get" on the game scope.
func (w *Wrapper) Describe() map[string]interface{} {
	w.mx.Lock()
	defer w.mx.Unlock()
	out := map[string]interface{}{
		"id":           w.id,
		"name":         w.name,
		"definition":   w.definition,
		"current_time": w.sim.Time(),
		"is_running":   w.sim.InProgress(),
	}
	if w.restoredSlot != nil {
		out["restored_from_slot"] = *w.restoredSlot
	}
	return out
}

// Dump serializes the simulation into the store's next slot for this
// game, enforcing retention. With state disabled it returns slot 0 with
// no effect.
func (w *Wrapper) Dump(store *Store) (uint, error) {
	w.mx.Lock()
	defer w.mx.Unlock()
	if store == nil {
		return 0, nil
	}
	payload, err := w.sim.Serialize(store.Format())
	if err != nil {
		return 0, err
	}
	return store.WriteDump(DumpMeta{
		ID:         w.id,
		Name:       w.name,
		Definition: w.definition,
		Created:    w.createdAt,
	}, payload)
}

// destroy tears the game down: every pending read is killed, the
// listener joined and the clock stopped. Only the container calls this.
func (w *Wrapper) destroy() {
	w.mx.Lock()
	defer w.mx.Unlock()
	w.destroyed = true
	w.listener.Shutdown()
	w.sim.Stop()
}
