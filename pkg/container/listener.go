// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

// Package container hosts the fleet of game wrappers: id allocation,
// indices, per-game input listeners and the snapshot store.
package container

import (
	"sync"
	"time"

	"github.com/fablehost/fabled/pkg/engine"
	"go.uber.org/zap"
)

// PollInterval is the listener coordinator's sweep interval.
const PollInterval = 10 * time.Millisecond

// Processor is the slice of the simulation the listener drives.
type Processor interface {
	// ProcessCommand blocks until one command for the player has been
	// read and executed. It reports false for an empty (killed) read.
	ProcessCommand(p *engine.Player) bool
	Players() []*engine.Player
}

// playerTask tracks one player's in-flight command. done is closed by the
// task goroutine when the command finishes; player is nilled on
// unsubscribe and the coordinator tears the entry down.
type playerTask struct {
	player       *engine.Player
	name         string
	initialized  bool
	done         chan struct{}
	afterCommand func()
}

// Listener drives every player of one game: a single coordinator
// goroutine sweeps the task map at the poll interval, keeping exactly one
// in-flight command per player. Commands of different players run
// concurrently; per-player order follows the input buffer.
type Listener struct {
	mx     sync.Mutex
	sim    Processor
	tasks  map[string]*playerTask
	on     bool
	stop   chan struct{}
	joined chan struct{}
	poll   time.Duration
	logger *zap.SugaredLogger
}

// NewListener returns a stopped listener for the simulation.
func NewListener(sim Processor, logger *zap.SugaredLogger) *Listener {
	return &Listener{
		sim:    sim,
		tasks:  map[string]*playerTask{},
		poll:   PollInterval,
		logger: logger,
	}
}

// Subscribe registers a player. May be called before or after Start.
func (l *Listener) Subscribe(p *engine.Player) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.tasks[p.Name()] = &playerTask{player: p, name: p.Name()}
}

// Unsubscribe detaches the player. Its pending read is killed so the
// in-flight command resolves promptly; the coordinator drains the task,
// runs the one-shot callback and removes the entry. With the listener
// stopped the teardown happens inline.
func (l *Listener) Unsubscribe(name string, afterCommand func()) {
	l.mx.Lock()
	t, ok := l.tasks[name]
	if !ok {
		l.mx.Unlock()
		if afterCommand != nil {
			afterCommand()
		}
		return
	}
	if t.player != nil {
		t.player.Input().Kill()
	}
	t.player = nil
	t.afterCommand = afterCommand
	if l.on {
		l.mx.Unlock()
		return
	}
	l.drainLocked(t)
	cb := t.afterCommand
	delete(l.tasks, name)
	l.mx.Unlock()
	if cb != nil {
		cb()
	}
}

// Start launches the coordinator, seeding the task map with every current
// player. Idempotent; a stopped listener can be started again.
func (l *Listener) Start() {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.on {
		return
	}
	for _, p := range l.sim.Players() {
		if _, ok := l.tasks[p.Name()]; !ok {
			l.tasks[p.Name()] = &playerTask{player: p, name: p.Name()}
		}
	}
	l.on = true
	l.stop = make(chan struct{})
	l.joined = make(chan struct{})
	go l.run(l.stop, l.joined)
}

// Stop halts and joins the coordinator. In-flight commands keep running
// until they resolve; Shutdown drains them. Safe to call when never
// started.
func (l *Listener) Stop() {
	l.mx.Lock()
	if !l.on {
		l.mx.Unlock()
		return
	}
	l.on = false
	stop, joined := l.stop, l.joined
	l.stop, l.joined = nil, nil
	l.mx.Unlock()
	close(stop)
	<-joined
}

// Shutdown kills every pending read, joins the coordinator and drains all
// in-flight tasks. Used by game destruction; nothing survives it.
func (l *Listener) Shutdown() {
	l.mx.Lock()
	for _, t := range l.tasks {
		if t.player != nil {
			t.player.Input().Kill()
		}
	}
	l.mx.Unlock()
	l.Stop()
	l.mx.Lock()
	var callbacks []func()
	for name, t := range l.tasks {
		l.drainLocked(t)
		if t.afterCommand != nil {
			callbacks = append(callbacks, t.afterCommand)
		}
		delete(l.tasks, name)
	}
	l.mx.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

func (l *Listener) run(stop, joined chan struct{}) {
	defer close(joined)
	for {
		select {
		case <-stop:
			return
		case <-time.After(l.poll):
		}
		l.sweep()
	}
}

// sweep re-arms every finished task and tears down unsubscribed ones.
func (l *Listener) sweep() {
	l.mx.Lock()
	defer l.mx.Unlock()
	for name, t := range l.tasks {
		if t.player == nil {
			// The pending read was killed on unsubscribe, so the
			// in-flight task resolves promptly.
			l.drainLocked(t)
			if t.afterCommand != nil {
				t.afterCommand()
				t.afterCommand = nil
			}
			delete(l.tasks, name)
			continue
		}
		if t.initialized {
			select {
			case <-t.done:
			default:
				continue
			}
		}
		done := make(chan struct{})
		t.done = done
		t.initialized = true
		p := t.player
		go func() {
			defer close(done)
			l.sim.ProcessCommand(p)
		}()
	}
}

func (l *Listener) drainLocked(t *playerTask) {
	if t.initialized {
		<-t.done
		t.initialized = false
	}
}
