// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fablehost/fabled/pkg/types"
)

// ProcessCommand blocks until one command is pending on the player's
// input stream and executes it. It reports false when the read resolved
// empty (killed stream or blank line), which callers treat as "nothing
// done". The blocking read happens outside the game mutex; only the
// command application locks it.
func (g *Game) ProcessCommand(p *Player) bool {
	line, ok := p.in.Read()
	if !ok {
		return false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	g.mx.Lock()
	defer g.mx.Unlock()
	p.lastCommand = line
	fields := strings.Fields(line)
	switch fields[0] {
	case "look":
		g.look(p)
	case "go":
		if len(fields) < 2 {
			g.tell(p, "Go where?\n")
			break
		}
		g.move(p, fields[1])
	case "say":
		g.say(p, strings.TrimSpace(strings.TrimPrefix(line, "say")))
	default:
		g.tell(p, fmt.Sprintf("I don't know how to %q.\n", fields[0]))
	}
	return true
}

// tell writes a line to the player's notification channel. Callers hold
// the game mutex.
func (g *Game) tell(p *Player, text string) {
	p.out.Write(types.DefaultChannel, text)
}

func (g *Game) look(p *Player) {
	room, ok := g.entities[p.room].(*Room)
	if !ok {
		g.tell(p, "You are nowhere.\n")
		return
	}
	var b strings.Builder
	title := room.title
	if title == "" {
		title = room.name
	}
	b.WriteString(title + "\n")
	if room.description != "" {
		b.WriteString(room.description + "\n")
	}
	if len(room.exits) > 0 {
		directions := make([]string, 0, len(room.exits))
		for d := range room.exits {
			directions = append(directions, d)
		}
		sort.Strings(directions)
		b.WriteString("Exits: " + strings.Join(directions, ", ") + "\n")
	}
	g.tell(p, b.String())
}

func (g *Game) move(p *Player, direction string) {
	room, ok := g.entities[p.room].(*Room)
	if !ok {
		g.tell(p, "You are nowhere.\n")
		return
	}
	to, ok := room.Exit(direction)
	if !ok {
		g.tell(p, fmt.Sprintf("You can't go %s.\n", direction))
		return
	}
	p.room = to
	g.look(p)
}

func (g *Game) say(p *Player, text string) {
	if text == "" {
		g.tell(p, "Say what?\n")
		return
	}
	for _, other := range g.players {
		if other.room != p.room {
			continue
		}
		if other == p {
			g.tell(p, fmt.Sprintf("You say: %s\n", text))
			continue
		}
		g.tell(other, fmt.Sprintf("%s says: %s\n", p.name, text))
	}
}
