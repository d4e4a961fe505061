// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

// Package scopes implements the scope controllers: the (method, action)
// handler tables behind each top-level routing category of the wire
// protocol.
package scopes

import (
	"errors"

	"github.com/fablehost/fabled/pkg/container"
	"github.com/fablehost/fabled/pkg/drivers"
	"github.com/fablehost/fabled/pkg/engine"
	"github.com/fablehost/fabled/pkg/types"
	"go.uber.org/zap"
)

// Handler serves one (method, action) pair of a scope.
type Handler func(req *types.Request) types.Response

// Controller is a scope controller backed by a handler table. Tables are
// filled at construction and read-only afterwards, so dispatch needs no
// locking.
type Controller struct {
	name     string
	handlers map[string]map[string]Handler
	logger   *zap.SugaredLogger
}

// NewController returns an empty controller for the named scope.
func NewController(name string, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		name:     name,
		handlers: map[string]map[string]Handler{},
		logger:   logger,
	}
}

// Name returns the scope name the controller is registered under.
func (c *Controller) Name() string {
	return c.name
}

// Register adds a handler for the method/action pair.
func (c *Controller) Register(method, action string, h Handler) {
	if c.handlers[method] == nil {
		c.handlers[method] = map[string]Handler{}
	}
	c.handlers[method][action] = h
}

// Handle dispatches a validated request to its handler. Handler errors
// never escape; they are rendered as {status, message}.
func (c *Controller) Handle(req *types.Request) types.Response {
	actions, ok := c.handlers[req.Method]
	if !ok {
		return types.ErrorResponse(types.StatusNotFound, types.MsgMethodNotFound)
	}
	h, ok := actions[req.Action]
	if !ok {
		return types.ErrorResponse(types.StatusNotFound, types.MsgActionNotFound)
	}
	return h(req)
}

// fail translates an error kind into its wire status. Unrecognized
// failures become 500 with the canonical message; the underlying error
// is logged.
func (c *Controller) fail(err error) types.Response {
	var argErr *types.ArgError
	var unsupportedFilter *container.UnsupportedFilterError
	var invalidFilterValue *container.InvalidFilterValueError
	var dumpNotFound *container.GameNotFoundError
	var slotNotFound *container.SlotNotFoundError
	var entityNotFound *engine.NotFoundError
	var nameTaken *engine.NameTakenError
	switch {
	case errors.As(err, &argErr),
		errors.Is(err, types.ErrMetaValues),
		errors.Is(err, container.ErrFilterShape),
		errors.As(err, &unsupportedFilter),
		errors.As(err, &invalidFilterValue):
		return types.ErrorResponse(types.StatusInvalid, err.Error())
	case errors.Is(err, container.ErrGameNotFound),
		errors.As(err, &dumpNotFound),
		errors.As(err, &slotNotFound),
		errors.As(err, &entityNotFound):
		return types.ErrorResponse(types.StatusNotFound, err.Error())
	case errors.As(err, &nameTaken):
		return types.ErrorResponse(types.StatusConflict, err.Error())
	case errors.Is(err, drivers.ErrUnsupported),
		errors.Is(err, types.ErrStateDisabled):
		return types.ErrorResponse(types.StatusUnsupported, err.Error())
	default:
		c.logger.Errorf("Request on scope %q failed: %v", c.name, err)
		return types.ErrorResponse(types.StatusInternal, types.MsgInternalError)
	}
}
