// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package container

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fablehost/fabled/pkg/drivers"
	"github.com/fablehost/fabled/pkg/engine"
	"github.com/fablehost/fabled/pkg/types"
	"github.com/fablehost/fabled/pkg/utils"

	mb "github.com/vardius/message-bus"
	"go.uber.org/zap"
)

// ErrGameNotFound reports an unknown live game id.
var ErrGameNotFound = errors.New("game not found")

// Config wires a container to its collaborators.
type Config struct {
	// DefinitionsPath is the root of the definition files.
	DefinitionsPath string
	// Store is the snapshot store; nil disables the state feature.
	Store *Store
	// Output and Input are the active I/O drivers.
	Output drivers.OutputDriver
	Input  drivers.InputDriver
	// Tick is the game clock interval; zero selects the engine default.
	Tick time.Duration
	// Bus receives the lifecycle events.
	Bus    mb.MessageBus
	Logger *zap.SugaredLogger
}

// Container is the fleet-wide game registry: the id → wrapper map, its
// indices and the id watermark. Indices are mutated only under the index
// mutex, which is held only while touching them; everything else runs
// outside it.
type Container struct {
	mx         sync.Mutex
	games      map[uint]*Wrapper
	allIds     map[uint]struct{}
	byName     map[string]map[uint]struct{}
	byRunning  map[bool]map[uint]struct{}
	numPlayers int
	nextID     uint
	rules      map[string]Rule

	defsPath string
	store    *Store
	out      drivers.OutputDriver
	in       drivers.InputDriver
	tick     time.Duration
	bus      mb.MessageBus
	logger   *zap.SugaredLogger
}

// NewContainer returns an empty container. With state enabled the id
// watermark starts past the highest dumped id, so dumped ids are never
// reused by createGame.
func NewContainer(conf *Config) (*Container, error) {
	c := &Container{
		games:     map[uint]*Wrapper{},
		allIds:    map[uint]struct{}{},
		byName:    map[string]map[uint]struct{}{},
		byRunning: map[bool]map[uint]struct{}{true: {}, false: {}},
		defsPath:  conf.DefinitionsPath,
		store:     conf.Store,
		out:       conf.Output,
		in:        conf.Input,
		tick:      conf.Tick,
		bus:       conf.Bus,
		logger:    conf.Logger,
	}
	c.rules = map[string]Rule{
		"is_running":  c.runningRule,
		"name_starts": c.nameStartsRule,
	}
	if c.store != nil {
		ids, err := c.store.GameIDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			c.reserveLocked(id)
		}
	}
	return c, nil
}

// StateEnabled reports whether the snapshot feature is active.
func (c *Container) StateEnabled() bool {
	return c.store != nil
}

// Store returns the snapshot store, or nil when state is disabled.
func (c *Container) Store() *Store {
	return c.store
}

// OutputDriver returns the active output driver.
func (c *Container) OutputDriver() drivers.OutputDriver {
	return c.out
}

// InputDriver returns the active input driver.
func (c *Container) InputDriver() drivers.InputDriver {
	return c.in
}

func (c *Container) reserveLocked(id uint) {
	if id >= c.nextID {
		c.nextID = id + 1
	}
}

func (c *Container) indexLocked(w *Wrapper, running bool) {
	c.games[w.id] = w
	c.allIds[w.id] = struct{}{}
	if c.byName[w.name] == nil {
		c.byName[w.name] = map[uint]struct{}{}
	}
	c.byName[w.name][w.id] = struct{}{}
	c.byRunning[running][w.id] = struct{}{}
}

func (c *Container) deindexLocked(w *Wrapper) {
	delete(c.games, w.id)
	delete(c.allIds, w.id)
	if set, ok := c.byName[w.name]; ok {
		delete(set, w.id)
		if len(set) == 0 {
			delete(c.byName, w.name)
		}
	}
	delete(c.byRunning[true], w.id)
	delete(c.byRunning[false], w.id)
}

func (c *Container) runningRule(value interface{}) (map[uint]struct{}, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, &InvalidFilterValueError{Type: "is_running"}
	}
	out := make(map[uint]struct{}, len(c.byRunning[b]))
	for id := range c.byRunning[b] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (c *Container) nameStartsRule(value interface{}) (map[uint]struct{}, error) {
	prefix, ok := value.(string)
	if !ok {
		return nil, &InvalidFilterValueError{Type: "name_starts"}
	}
	out := map[uint]struct{}{}
	for name, set := range c.byName {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		for id := range set {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (c *Container) publish(topic string, payload interface{}) {
	if c.bus != nil {
		c.bus.Publish(topic, payload)
	}
}

// streamProvider binds the container's drivers to one game id.
type streamProvider struct {
	c    *Container
	game uint
}

// Streams hands out a fresh stream pair for the named entity.
func (s streamProvider) Streams(entity string) (*drivers.OutputStream, *drivers.InputStream) {
	return drivers.NewOutputStream(s.c.out, s.game, entity),
		drivers.NewInputStream(s.c.in, s.game, entity)
}

// CreateGame instantiates a game from a definition filename, assigns the
// next free id and indexes the wrapper. Extra meta pre-seeds the game's
// meta map.
func (c *Container) CreateGame(definition, name string, meta map[string]string) (uint, error) {
	sim, err := engine.NewGameFromFile(filepath.Join(c.defsPath, definition), c.tick)
	if err != nil {
		return 0, err
	}
	for k, v := range meta {
		sim.SetMeta(k, v)
	}
	c.mx.Lock()
	id := c.nextID
	c.nextID++
	w := newWrapper(id, name, definition, sim, c.logger)
	c.indexLocked(w, false)
	c.mx.Unlock()
	c.publish(types.TopicGameCreated, types.GameEvent{GameID: id, Name: name})
	return id, nil
}

// Game returns the live wrapper for id.
func (c *Container) Game(id uint) (*Wrapper, bool) {
	c.mx.Lock()
	defer c.mx.Unlock()
	w, ok := c.games[id]
	return w, ok
}

// DestroyGame removes the live game: its listener is shut down, its
// players' reads unblocked, its buffers dropped. destroyDump also removes
// the game's on-disk dump directory.
func (c *Container) DestroyGame(id uint, destroyDump bool) error {
	c.mx.Lock()
	w, ok := c.games[id]
	if !ok {
		c.mx.Unlock()
		return ErrGameNotFound
	}
	c.deindexLocked(w)
	c.numPlayers -= w.NumPlayers()
	c.mx.Unlock()
	name := w.Name()
	w.destroy()
	c.out.Drop(id)
	c.in.Drop(id)
	if destroyDump && c.store != nil {
		if err := c.store.DeleteGame(id); err != nil {
			var notFound *GameNotFoundError
			if !errors.As(err, &notFound) {
				c.logger.Errorf("Deleting dumps of destroyed game %d failed: %v", id, err)
			}
		}
	}
	c.publish(types.TopicGameDestroyed, types.GameEvent{GameID: id, Name: name})
	return nil
}

// StartGame resumes the game and re-indexes it as running.
func (c *Container) StartGame(id uint) error {
	w, ok := c.Game(id)
	if !ok {
		return ErrGameNotFound
	}
	w.Start()
	c.reindexRunning(id, true)
	return nil
}

// StopGame pauses the game and re-indexes it as stopped.
func (c *Container) StopGame(id uint) error {
	w, ok := c.Game(id)
	if !ok {
		return ErrGameNotFound
	}
	w.Stop()
	c.reindexRunning(id, false)
	return nil
}

func (c *Container) reindexRunning(id uint, running bool) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if _, ok := c.games[id]; !ok {
		return
	}
	delete(c.byRunning[!running], id)
	c.byRunning[running][id] = struct{}{}
}

// CreatePlayer adds a player to the game, binds its streams to the
// active drivers and subscribes it to the input listener.
func (c *Container) CreatePlayer(gameID uint, name string) (*engine.Player, error) {
	w, ok := c.Game(gameID)
	if !ok {
		return nil, ErrGameNotFound
	}
	w.mx.Lock()
	if w.destroyed {
		w.mx.Unlock()
		return nil, ErrGameNotFound
	}
	out, in := streamProvider{c: c, game: gameID}.Streams(name)
	p := engine.NewPlayer(name, out, in)
	if err := w.sim.InsertPlayer(p); err != nil {
		w.mx.Unlock()
		return nil, err
	}
	w.listener.Subscribe(p)
	w.mx.Unlock()
	c.mx.Lock()
	c.numPlayers++
	c.mx.Unlock()
	c.publish(types.TopicPlayerJoined, types.PlayerEvent{GameID: gameID, Player: name})
	return p, nil
}

// RemovePlayer unsubscribes the player from the listener, optionally
// sends a farewell on its notification channel and removes it from the
// simulation once the in-flight command has drained.
func (c *Container) RemovePlayer(gameID uint, name string, message *string) error {
	w, ok := c.Game(gameID)
	if !ok {
		return ErrGameNotFound
	}
	w.mx.Lock()
	p := w.sim.Player(name)
	if p == nil {
		w.mx.Unlock()
		return &engine.NotFoundError{Kind: "player"}
	}
	sim := w.sim
	afterCommand := func() {
		if message != nil {
			p.Output().Write(types.DefaultChannel, *message+"\n")
		}
		if err := sim.RemovePlayer(name); err != nil {
			c.logger.Errorf("Removing player %q from game %d failed: %v", name, gameID, err)
		}
	}
	w.listener.Unsubscribe(name, afterCommand)
	w.mx.Unlock()
	c.mx.Lock()
	c.numPlayers--
	c.mx.Unlock()
	c.publish(types.TopicPlayerLeft, types.PlayerEvent{GameID: gameID, Player: name})
	return nil
}

// NumPlayers returns the fleet-wide player count.
func (c *Container) NumPlayers() int {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.numPlayers
}

// Games evaluates the filter union into an ascending set of live game
// ids. A nil union selects every game.
func (c *Container) Games(filters Union) ([]uint, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	var set map[uint]struct{}
	if filters == nil {
		set = c.allIds
	} else {
		evaluated, err := c.evaluateLocked(filters)
		if err != nil {
			return nil, err
		}
		set = evaluated
	}
	out := make([]uint, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Definitions lists the definition files under the definitions path,
// relative and sorted.
func (c *Container) Definitions() ([]string, error) {
	return utils.Fio.ListFiles(c.defsPath)
}

// DumpGame snapshots one live game into its next slot.
func (c *Container) DumpGame(id uint) (uint, error) {
	if c.store == nil {
		return 0, types.ErrStateDisabled
	}
	w, ok := c.Game(id)
	if !ok {
		return 0, ErrGameNotFound
	}
	return w.Dump(c.store)
}

// DumpAll snapshots every live game. Per-game failures are logged and do
// not abort the fleet dump.
func (c *Container) DumpAll() error {
	if c.store == nil {
		return types.ErrStateDisabled
	}
	c.mx.Lock()
	wrappers := make([]*Wrapper, 0, len(c.games))
	for _, w := range c.games {
		wrappers = append(wrappers, w)
	}
	c.mx.Unlock()
	sort.Slice(wrappers, func(i, j int) bool { return wrappers[i].id < wrappers[j].id })
	for _, w := range wrappers {
		if _, err := w.Dump(c.store); err != nil {
			c.logger.Errorf("Dumping game %d failed: %v", w.id, err)
		}
	}
	c.publish(types.TopicFleetDumped, len(wrappers))
	return nil
}

// RestoreGame deserializes one dumped game, replacing any live game with
// the same id, and returns the slot that was restored.
func (c *Container) RestoreGame(id uint, slot *uint) (uint, error) {
	if c.store == nil {
		return 0, types.ErrStateDisabled
	}
	meta, format, payload, chosen, err := c.store.ReadDump(id, slot)
	if err != nil {
		return 0, err
	}
	sim, err := engine.FromSerialized(format, payload, c.tick, streamProvider{c: c, game: id})
	if err != nil {
		return 0, err
	}
	w := newWrapper(id, meta.Name, meta.Definition, sim, c.logger)
	w.createdAt = meta.Created
	restored := chosen
	w.restoredSlot = &restored
	for _, p := range sim.Players() {
		w.listener.Subscribe(p)
	}
	running := sim.InProgress()
	if running {
		w.listener.Start()
	}
	if live, ok := c.Game(id); ok {
		c.mx.Lock()
		c.deindexLocked(live)
		c.numPlayers -= live.NumPlayers()
		c.mx.Unlock()
		live.destroy()
	}
	c.mx.Lock()
	c.indexLocked(w, running)
	c.numPlayers += sim.NumPlayers()
	c.reserveLocked(id)
	c.mx.Unlock()
	return chosen, nil
}

// RestoreAll merges every dumped game into the live set: same-id live
// games are replaced, other live games are left intact. Per-game
// failures abort only that game.
func (c *Container) RestoreAll() error {
	if c.store == nil {
		return types.ErrStateDisabled
	}
	ids, err := c.store.GameIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := c.RestoreGame(id, nil); err != nil {
			c.logger.Errorf("Restoring game %d failed: %v", id, err)
		}
	}
	c.publish(types.TopicFleetRestored, len(ids))
	return nil
}

// Close stops every game's listener and clock. Dumps are left on disk.
func (c *Container) Close() {
	c.mx.Lock()
	wrappers := make([]*Wrapper, 0, len(c.games))
	for _, w := range c.games {
		wrappers = append(wrappers, w)
	}
	c.mx.Unlock()
	for _, w := range wrappers {
		w.destroy()
	}
}
