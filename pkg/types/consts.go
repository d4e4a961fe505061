// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package types

import "errors"

// Wire statuses. Every response carries exactly one of these.
const (
	StatusOK          = 200
	StatusInvalid     = 400
	StatusNotFound    = 404
	StatusConflict    = 409
	StatusInternal    = 500
	StatusUnsupported = 501
)

// Canonical envelope validation messages emitted by the dispatcher.
const (
	MsgInvalidJSON   = "request must be valid JSON"
	MsgMissingMethod = "missing required method"
	MsgInvalidMethod = "invalid method"
	MsgMissingScope  = "missing required scope"
	MsgInvalidScope  = "invalid scope"
	MsgInvalidAction = "invalid action"
	MsgInvalidArgs   = "invalid args"
	MsgScopeNotFound = "scope not found"

	MsgMethodNotFound = "method not found"
	MsgActionNotFound = "action not found"

	MsgInternalError = "An internal error occurred"
	MsgStateDisabled = "the state feature is disabled"
)

// DefaultAction is the action assumed when a request omits one.
const DefaultAction = "default"

// Methods is the fixed request method vocabulary.
var Methods = map[string]bool{
	"get":    true,
	"post":   true,
	"put":    true,
	"set":    true,
	"delete": true,
}

// ErrMetaValues is returned when a meta object carries a non-scalar value.
var ErrMetaValues = errors.New("meta values cannot be objects or arrays")

// ErrStateDisabled is returned by fleet and per-game state operations when
// the snapshot feature is switched off.
var ErrStateDisabled = errors.New(MsgStateDisabled)

// Container lifecycle topics published on the process message bus.
const (
	TopicGameCreated   = "game.created"
	TopicGameDestroyed = "game.destroyed"
	TopicPlayerJoined  = "player.joined"
	TopicPlayerLeft    = "player.left"
	TopicFleetDumped   = "fleet.dumped"
	TopicFleetRestored = "fleet.restored"
)

// GameEvent is the payload published on the game lifecycle topics.
type GameEvent struct {
	GameID uint
	Name   string
}

// PlayerEvent is the payload published on the player lifecycle topics.
type PlayerEvent struct {
	GameID uint
	Player string
}

// DefaultChannel is the output channel players receive engine text on.
const DefaultChannel = "notifications"
