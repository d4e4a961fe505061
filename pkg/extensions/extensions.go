// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

// Package extensions loads add-on scope controllers and I/O drivers into
// a running daemon, either by direct registration or from Go plugins.
package extensions

import (
	"path/filepath"
	"plugin"
	"sync"

	"github.com/fablehost/fabled/pkg/dispatcher"
	"github.com/fablehost/fabled/pkg/drivers"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewSymbol is the symbol looked up in every extension plugin. It must
// be a func() *Extension.
const NewSymbol = "New"

// Extension is the manifest an add-on hands to the loader: a unique name
// plus the scopes and drivers it contributes.
type Extension struct {
	Name          string
	Scopes        []dispatcher.Scope
	OutputDrivers map[string]drivers.OutputDriver
	InputDrivers  map[string]drivers.InputDriver
}

// Loader wires extensions into the dispatcher and the driver registry.
// Registration is atomic per extension: a single name collision rejects
// the whole manifest.
type Loader struct {
	mx         sync.Mutex
	dispatcher *dispatcher.Dispatcher
	registry   *drivers.Registry
	loaded     map[string]*Extension
	logger     *zap.SugaredLogger
}

// NewLoader returns a loader over the given dispatcher and driver
// registry.
func NewLoader(d *dispatcher.Dispatcher, r *drivers.Registry, logger *zap.SugaredLogger) *Loader {
	return &Loader{
		dispatcher: d,
		registry:   r,
		loaded:     map[string]*Extension{},
		logger:     logger,
	}
}

// Register wires an extension's scopes and drivers in. On any collision
// everything already wired for this manifest is rolled back.
func (l *Loader) Register(ext *Extension) error {
	l.mx.Lock()
	defer l.mx.Unlock()
	if ext.Name == "" {
		return errors.New("extension name must not be empty")
	}
	if _, taken := l.loaded[ext.Name]; taken {
		return errors.Errorf("extension %q is already loaded", ext.Name)
	}

	var scopesDone []string
	var outputsDone, inputsDone []string
	rollback := func() {
		for _, name := range scopesDone {
			l.dispatcher.Unregister(name)
		}
		for _, name := range outputsDone {
			l.registry.UnregisterOutput(name)
		}
		for _, name := range inputsDone {
			l.registry.UnregisterInput(name)
		}
	}

	for _, s := range ext.Scopes {
		if err := l.dispatcher.Register(s, false); err != nil {
			rollback()
			return errors.Wrapf(err, "loading extension %q", ext.Name)
		}
		scopesDone = append(scopesDone, s.Name())
	}
	for name, d := range ext.OutputDrivers {
		if err := l.registry.RegisterOutput(name, d); err != nil {
			rollback()
			return errors.Wrapf(err, "loading extension %q", ext.Name)
		}
		outputsDone = append(outputsDone, name)
	}
	for name, d := range ext.InputDrivers {
		if err := l.registry.RegisterInput(name, d); err != nil {
			rollback()
			return errors.Wrapf(err, "loading extension %q", ext.Name)
		}
		inputsDone = append(inputsDone, name)
	}

	l.loaded[ext.Name] = ext
	l.logger.Infow("Extension loaded", "name", ext.Name, "scopes", len(ext.Scopes))
	return nil
}

// Unload removes everything a loaded extension contributed.
func (l *Loader) Unload(name string) error {
	l.mx.Lock()
	defer l.mx.Unlock()
	ext, ok := l.loaded[name]
	if !ok {
		return errors.Errorf("extension %q is not loaded", name)
	}
	for _, s := range ext.Scopes {
		if err := l.dispatcher.Unregister(s.Name()); err != nil {
			l.logger.Errorf("Unregistering scope %q failed: %v", s.Name(), err)
		}
	}
	for driverName := range ext.OutputDrivers {
		l.registry.UnregisterOutput(driverName)
	}
	for driverName := range ext.InputDrivers {
		l.registry.UnregisterInput(driverName)
	}
	delete(l.loaded, name)
	l.logger.Infow("Extension unloaded", "name", name)
	return nil
}

// Loaded returns the names of all loaded extensions.
func (l *Loader) Loaded() []string {
	l.mx.Lock()
	defer l.mx.Unlock()
	out := make([]string, 0, len(l.loaded))
	for name := range l.loaded {
		out = append(out, name)
	}
	return out
}

// LoadPlugins opens each named Go plugin under path and registers the
// extension its New symbol yields. A failing plugin is logged and
// skipped; the daemon boots without it.
func (l *Loader) LoadPlugins(path string, names []string) {
	for _, name := range names {
		file := filepath.Join(path, name+".so")
		p, err := plugin.Open(file)
		if err != nil {
			l.logger.Errorf("Opening extension plugin %q failed: %v", file, err)
			continue
		}
		sym, err := p.Lookup(NewSymbol)
		if err != nil {
			l.logger.Errorf("Extension plugin %q has no %s symbol: %v", file, NewSymbol, err)
			continue
		}
		factory, ok := sym.(func() *Extension)
		if !ok {
			l.logger.Errorf("Extension plugin %q has an incompatible %s symbol", file, NewSymbol)
			continue
		}
		if err := l.Register(factory()); err != nil {
			l.logger.Errorf("Registering extension plugin %q failed: %v", file, err)
		}
	}
}
