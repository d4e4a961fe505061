// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

// Package drivers defines the pluggable input and output buffer
// abstraction games talk to, keyed by (game-id, entity-name[, channel]).
package drivers

import (
	"errors"
	"fmt"
	"sync"
)

// Message is one entry of an output buffer. Order is a strictly
// increasing per-buffer sequence number assigned by the driver on push.
type Message struct {
	Timestamp int64  `json:"timestamp"`
	Order     uint64 `json:"order"`
	Content   string `json:"content"`
}

// ErrUnsupported is returned by drivers that do not implement an
// operation (pub/sub style output drivers cannot size or pop). Scope
// controllers render it as status 501.
var ErrUnsupported = errors.New("operation not supported by this driver")

// DriverNotFoundError reports a lookup of an unregistered driver name.
type DriverNotFoundError struct {
	Name string
}

func (e *DriverNotFoundError) Error() string {
	return fmt.Sprintf("no driver registered under %q", e.Name)
}

// OutputDriver is a named output buffer implementation. Push must always
// work; Size and Pop may return ErrUnsupported. All methods must be safe
// for concurrent use.
type OutputDriver interface {
	Size(game uint, entity, channel string) (int, error)
	Push(game uint, entity, channel string, m Message) error
	Pop(game uint, entity, channel string) (*Message, error)
	// Drop discards every buffer belonging to the game.
	Drop(game uint) error
}

// InputDriver is a named input buffer implementation. Each (game, entity)
// pair holds at most one pending command; Set overwrites, Consume drains.
// All methods must be safe for concurrent use.
type InputDriver interface {
	IsSet(game uint, entity string) (bool, error)
	Set(game uint, entity, command string) error
	Consume(game uint, entity string) (string, bool, error)
	// Drop discards every buffer belonging to the game.
	Drop(game uint) error
}

// Registry holds the named driver singletons. Registration happens at
// startup and during extension load/unload, never while serving.
type Registry struct {
	mx      sync.RWMutex
	outputs map[string]OutputDriver
	inputs  map[string]InputDriver
}

// NewRegistry returns an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		outputs: map[string]OutputDriver{},
		inputs:  map[string]InputDriver{},
	}
}

// RegisterOutput adds a named output driver. Duplicate names are rejected.
func (r *Registry) RegisterOutput(name string, d OutputDriver) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if _, ok := r.outputs[name]; ok {
		return fmt.Errorf("output driver %q is already registered", name)
	}
	r.outputs[name] = d
	return nil
}

// RegisterInput adds a named input driver. Duplicate names are rejected.
func (r *Registry) RegisterInput(name string, d InputDriver) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if _, ok := r.inputs[name]; ok {
		return fmt.Errorf("input driver %q is already registered", name)
	}
	r.inputs[name] = d
	return nil
}

// UnregisterOutput removes a named output driver, for extension unload.
func (r *Registry) UnregisterOutput(name string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	delete(r.outputs, name)
}

// UnregisterInput removes a named input driver, for extension unload.
func (r *Registry) UnregisterInput(name string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	delete(r.inputs, name)
}

// Output returns the named output driver.
func (r *Registry) Output(name string) (OutputDriver, error) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	d, ok := r.outputs[name]
	if !ok {
		return nil, &DriverNotFoundError{Name: name}
	}
	return d, nil
}

// Input returns the named input driver.
func (r *Registry) Input(name string) (InputDriver, error) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	d, ok := r.inputs[name]
	if !ok {
		return nil, &DriverNotFoundError{Name: name}
	}
	return d, nil
}
