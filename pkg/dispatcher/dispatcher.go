// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

// Package dispatcher validates raw request envelopes and routes them to
// the registered scope controllers.
package dispatcher

import (
	"strings"
	"sync"

	"github.com/fablehost/fabled/pkg/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Scope is a routing target: one top-level category of the wire protocol.
type Scope interface {
	Name() string
	Handle(req *types.Request) types.Response
}

// Dispatcher owns the scope registry and turns raw request strings into
// response strings. Built-in scopes are registered at startup and cannot
// be removed; extension scopes come and go at load/unload time.
type Dispatcher struct {
	mx      sync.RWMutex
	scopes  map[string]Scope
	builtin map[string]bool
}

// NewDispatcher returns a dispatcher with an empty registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		scopes:  map[string]Scope{},
		builtin: map[string]bool{},
	}
}

// Register adds a scope to the registry. Registering a name twice is an
// error regardless of who owns the existing entry.
func (d *Dispatcher) Register(s Scope, builtin bool) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	name := strings.ToLower(s.Name())
	if _, taken := d.scopes[name]; taken {
		return errors.Errorf("scope %q is already registered", name)
	}
	d.scopes[name] = s
	d.builtin[name] = builtin
	return nil
}

// Unregister removes an extension scope. Built-in scopes cannot be
// removed.
func (d *Dispatcher) Unregister(name string) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	name = strings.ToLower(name)
	if _, ok := d.scopes[name]; !ok {
		return errors.Errorf("scope %q is not registered", name)
	}
	if d.builtin[name] {
		return errors.Errorf("scope %q is built-in and cannot be unregistered", name)
	}
	delete(d.scopes, name)
	delete(d.builtin, name)
	return nil
}

// Scopes returns the registered scope names.
func (d *Dispatcher) Scopes() []string {
	d.mx.RLock()
	defer d.mx.RUnlock()
	out := make([]string, 0, len(d.scopes))
	for name := range d.scopes {
		out = append(out, name)
	}
	return out
}

// Handle serves one raw request and always yields a JSON response
// string. Controller panics are contained and rendered as 500. Every
// request produces exactly one INFO line carrying its status and
// message, including requests rejected before dispatch.
func (d *Dispatcher) Handle(logger *zap.SugaredLogger, raw string) string {
	resp, req := d.handle(logger, raw)
	fields := []interface{}{
		"status", resp.Status(),
		"message", resp.Message(),
	}
	if req != nil {
		fields = append(fields,
			"method", req.Method,
			"scope", req.Scope,
			"action", req.Action,
		)
	}
	logger.Infow("Request served", fields...)
	return render(logger, resp)
}

func (d *Dispatcher) handle(logger *zap.SugaredLogger, raw string) (resp types.Response, req *types.Request) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Request handler panicked: %v", r)
			resp = types.ErrorResponse(types.StatusInternal, types.MsgInternalError)
		}
	}()

	var envelope map[string]interface{}
	if err := json.UnmarshalFromString(raw, &envelope); err != nil || envelope == nil {
		return types.ErrorResponse(types.StatusInvalid, types.MsgInvalidJSON), nil
	}

	rawMethod, ok := envelope["method"]
	if !ok {
		return types.ErrorResponse(types.StatusInvalid, types.MsgMissingMethod), nil
	}
	method, ok := rawMethod.(string)
	if !ok {
		return types.ErrorResponse(types.StatusInvalid, types.MsgInvalidMethod), nil
	}
	method = strings.ToLower(method)
	if !types.Methods[method] {
		return types.ErrorResponse(types.StatusInvalid, types.MsgInvalidMethod), nil
	}

	rawScope, ok := envelope["scope"]
	if !ok {
		return types.ErrorResponse(types.StatusInvalid, types.MsgMissingScope), nil
	}
	scopeName, ok := rawScope.(string)
	if !ok {
		return types.ErrorResponse(types.StatusInvalid, types.MsgInvalidScope), nil
	}
	scopeName = strings.ToLower(scopeName)

	d.mx.RLock()
	scope, registered := d.scopes[scopeName]
	d.mx.RUnlock()
	if !registered {
		return types.ErrorResponse(types.StatusNotFound, types.MsgScopeNotFound), nil
	}

	action := types.DefaultAction
	if rawAction, present := envelope["action"]; present {
		action, ok = rawAction.(string)
		if !ok {
			return types.ErrorResponse(types.StatusInvalid, types.MsgInvalidAction), nil
		}
		action = strings.ToLower(action)
	}

	args := types.Args{}
	if rawArgs, present := envelope["args"]; present {
		obj, ok := rawArgs.(map[string]interface{})
		if !ok {
			return types.ErrorResponse(types.StatusInvalid, types.MsgInvalidArgs), nil
		}
		args = types.Args(obj)
	}

	req = &types.Request{
		Method: method,
		Scope:  scopeName,
		Action: action,
		Args:   args,
	}
	return scope.Handle(req), req
}

func render(logger *zap.SugaredLogger, resp types.Response) string {
	out, err := json.MarshalToString(resp)
	if err != nil {
		logger.Errorf("Encoding response failed: %v", err)
		return `{"status":500,"message":"` + types.MsgInternalError + `"}`
	}
	return out
}
