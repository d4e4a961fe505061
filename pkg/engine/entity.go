// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

// Package engine is the hosted interactive-fiction simulation: entities,
// players, the game clock and the command verbs. The container consumes it
// through the capability surface on Game and never reaches into world
// state directly.
package engine

import (
	"github.com/fablehost/fabled/pkg/drivers"
)

// EntityType tags every concrete entity kind.
type EntityType string

// The concrete entity kinds.
const (
	TypeRoom     EntityType = "room"
	TypeObject   EntityType = "object"
	TypeCreature EntityType = "creature"
	TypePlayer   EntityType = "player"
	TypeResource EntityType = "resource"
)

// Class is a set of entity types. The scope tree (entity ⊃ tangible ⊃
// place/thing, thing ⊃ being, ...) is expressed as class membership
// rather than virtual dispatch.
type Class map[EntityType]bool

// Contains reports whether the type belongs to the class.
func (c Class) Contains(t EntityType) bool {
	return c[t]
}

// The class sets backing the scope tree.
var (
	ClassEntity   = Class{TypeRoom: true, TypeObject: true, TypeCreature: true, TypePlayer: true, TypeResource: true}
	ClassTangible = Class{TypeRoom: true, TypeObject: true, TypeCreature: true, TypePlayer: true}
	ClassPlace    = Class{TypeRoom: true}
	ClassThing    = Class{TypeObject: true, TypeCreature: true, TypePlayer: true}
	ClassBeing    = Class{TypeCreature: true, TypePlayer: true}
	ClassRoom     = Class{TypeRoom: true}
	ClassObject   = Class{TypeObject: true}
	ClassCreature = Class{TypeCreature: true}
	ClassPlayer   = Class{TypePlayer: true}
	ClassResource = Class{TypeResource: true}
)

// Entity is anything that lives in a game's world.
type Entity interface {
	Name() string
	Type() EntityType
	// Describe renders the entity for the wire.
	Describe() map[string]interface{}
}

// Room is a place players and things can be in.
type Room struct {
	name        string
	title       string
	description string
	exits       map[string]string
}

// Name returns the room's unique name.
func (r *Room) Name() string { return r.name }

// Type returns TypeRoom.
func (r *Room) Type() EntityType { return TypeRoom }

// Exit resolves a direction to the name of the destination room.
func (r *Room) Exit(direction string) (string, bool) {
	to, ok := r.exits[direction]
	return to, ok
}

// Describe renders the room for the wire.
func (r *Room) Describe() map[string]interface{} {
	exits := make(map[string]interface{}, len(r.exits))
	for direction, to := range r.exits {
		exits[direction] = to
	}
	return map[string]interface{}{
		"name":        r.name,
		"type":        string(TypeRoom),
		"title":       r.title,
		"description": r.description,
		"exits":       exits,
	}
}

// Object is an inanimate thing.
type Object struct {
	name        string
	title       string
	description string
	location    string
}

// Name returns the object's unique name.
func (o *Object) Name() string { return o.name }

// Type returns TypeObject.
func (o *Object) Type() EntityType { return TypeObject }

// Describe renders the object for the wire.
func (o *Object) Describe() map[string]interface{} {
	return map[string]interface{}{
		"name":        o.name,
		"type":        string(TypeObject),
		"title":       o.title,
		"description": o.description,
		"location":    o.location,
	}
}

// Creature is a non-player being.
type Creature struct {
	name        string
	title       string
	description string
	location    string
}

// Name returns the creature's unique name.
func (c *Creature) Name() string { return c.name }

// Type returns TypeCreature.
func (c *Creature) Type() EntityType { return TypeCreature }

// Describe renders the creature for the wire.
func (c *Creature) Describe() map[string]interface{} {
	return map[string]interface{}{
		"name":        c.name,
		"type":        string(TypeCreature),
		"title":       c.title,
		"description": c.description,
		"location":    c.location,
	}
}

// Resource is a named quantity attached to the game world.
type Resource struct {
	name   string
	amount int
}

// Name returns the resource's unique name.
func (r *Resource) Name() string { return r.name }

// Type returns TypeResource.
func (r *Resource) Type() EntityType { return TypeResource }

// Describe renders the resource for the wire.
func (r *Resource) Describe() map[string]interface{} {
	return map[string]interface{}{
		"name":   r.name,
		"type":   string(TypeResource),
		"amount": r.amount,
	}
}

// Player is a being driven by an external command stream. Its streams
// carry the (game-id, entity-name) identity; the player holds no
// reference back to its game.
type Player struct {
	name        string
	room        string
	lastCommand string
	out         *drivers.OutputStream
	in          *drivers.InputStream
}

// NewPlayer returns a player bound to its I/O streams.
func NewPlayer(name string, out *drivers.OutputStream, in *drivers.InputStream) *Player {
	return &Player{name: name, out: out, in: in}
}

// Name returns the player's unique name.
func (p *Player) Name() string { return p.name }

// Type returns TypePlayer.
func (p *Player) Type() EntityType { return TypePlayer }

// Input returns the player's input stream.
func (p *Player) Input() *drivers.InputStream { return p.in }

// Output returns the player's output stream.
func (p *Player) Output() *drivers.OutputStream { return p.out }

// Describe renders the player for the wire.
func (p *Player) Describe() map[string]interface{} {
	return map[string]interface{}{
		"name": p.name,
		"type": string(TypePlayer),
		"room": p.room,
	}
}
