// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package scopes

import (
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/fablehost/fabled/pkg/container"
	"github.com/fablehost/fabled/pkg/drivers"
	"github.com/fablehost/fabled/pkg/engine"
	"github.com/fablehost/fabled/pkg/types"
	"go.uber.org/zap"
)

// playerNamePattern is the admissible player name alphabet.
const playerNamePattern = "^[A-Za-z0-9_-]+$"

// entityScope serves one node of the entity class tree. Every node gets
// "get default" and "get list" over its class set; the root and the
// player node register extras on top.
type entityScope struct {
	*Controller
	c     *container.Container
	class engine.Class
}

// NewEntityScopes builds the controllers for the whole entity class
// tree, root first.
func NewEntityScopes(c *container.Container, logger *zap.SugaredLogger) []*Controller {
	tree := []struct {
		name  string
		class engine.Class
	}{
		{"entity", engine.ClassEntity},
		{"tangible", engine.ClassTangible},
		{"place", engine.ClassPlace},
		{"thing", engine.ClassThing},
		{"being", engine.ClassBeing},
		{"room", engine.ClassRoom},
		{"object", engine.ClassObject},
		{"creature", engine.ClassCreature},
		{"player", engine.ClassPlayer},
		{"resource", engine.ClassResource},
	}
	controllers := make([]*Controller, 0, len(tree))
	for _, node := range tree {
		s := &entityScope{
			Controller: NewController(node.name, logger),
			c:          c,
			class:      node.class,
		}
		s.Register("get", "default", s.get)
		s.Register("get", "list", s.list)
		switch node.name {
		case "entity":
			s.Register("get", "output", s.getOutput)
			s.Register("post", "output", s.postOutput)
		case "player":
			s.Register("post", "default", s.createPlayer)
			s.Register("delete", "default", s.removePlayer)
			s.Register("post", "input", s.postInput)
		}
		controllers = append(controllers, s.Controller)
	}
	return controllers
}

// wrapper resolves args.game_id into a live game wrapper.
func (s *entityScope) wrapper(req *types.Request) (*container.Wrapper, types.Response) {
	id, err := req.Args.Uint("game_id")
	if err != nil {
		return nil, s.fail(err)
	}
	w, ok := s.c.Game(id)
	if !ok {
		return nil, s.fail(container.ErrGameNotFound)
	}
	return w, nil
}

func (s *entityScope) get(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	name, err := req.Args.String("name")
	if err != nil {
		return s.fail(err)
	}
	e, ok := w.Entity(name, s.class)
	if !ok {
		return s.fail(&engine.NotFoundError{Kind: s.Name()})
	}
	return types.Success().With("entity", e.Describe())
}

func (s *entityScope) list(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	entities := []map[string]interface{}{}
	for _, e := range w.Entities(s.class) {
		entities = append(entities, e.Describe())
	}
	return types.Success().With("entities", entities)
}

func (s *entityScope) getOutput(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	name, err := req.Args.String("name")
	if err != nil {
		return s.fail(err)
	}
	channel, err := req.Args.String("channel")
	if err != nil {
		return s.fail(err)
	}
	if _, ok := w.Entity(name, engine.ClassEntity); !ok {
		return s.fail(&engine.NotFoundError{Kind: s.Name()})
	}
	messages := []drivers.Message{}
	for {
		m, err := s.c.OutputDriver().Pop(w.ID(), name, channel)
		if err != nil {
			return s.fail(err)
		}
		if m == nil {
			break
		}
		messages = append(messages, *m)
	}
	return types.Success().With("messages", messages)
}

func (s *entityScope) postOutput(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	name, err := req.Args.String("name")
	if err != nil {
		return s.fail(err)
	}
	channel, present, err := req.Args.OptionalString("channel")
	if err != nil {
		return s.fail(err)
	}
	if !present {
		channel = types.DefaultChannel
	}
	message, err := req.Args.Scalar("message")
	if err != nil {
		return s.fail(err)
	}
	if _, ok := w.Entity(name, engine.ClassEntity); !ok {
		return s.fail(&engine.NotFoundError{Kind: s.Name()})
	}
	err = s.c.OutputDriver().Push(w.ID(), name, channel, drivers.Message{
		Timestamp: time.Now().Unix(),
		Content:   message + "\n",
	})
	if err != nil {
		return s.fail(err)
	}
	return types.Success()
}

func (s *entityScope) createPlayer(req *types.Request) types.Response {
	id, err := req.Args.Uint("game_id")
	if err != nil {
		return s.fail(err)
	}
	name, err := req.Args.String("name")
	if err != nil {
		return s.fail(err)
	}
	if !govalidator.Matches(name, playerNamePattern) {
		return types.ErrorResponse(types.StatusInvalid, "invalid player name")
	}
	p, err := s.c.CreatePlayer(id, name)
	if err != nil {
		return s.fail(err)
	}
	return types.Success().With("player", p.Describe())
}

func (s *entityScope) removePlayer(req *types.Request) types.Response {
	id, err := req.Args.Uint("game_id")
	if err != nil {
		return s.fail(err)
	}
	name, err := req.Args.String("name")
	if err != nil {
		return s.fail(err)
	}
	var message *string
	if m, present, err := req.Args.OptionalString("message"); err != nil {
		return s.fail(err)
	} else if present {
		message = &m
	}
	if err := s.c.RemovePlayer(id, name, message); err != nil {
		return s.fail(err)
	}
	return types.Success()
}

func (s *entityScope) postInput(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	name, err := req.Args.String("name")
	if err != nil {
		return s.fail(err)
	}
	command, err := req.Args.String("command")
	if err != nil {
		return s.fail(err)
	}
	if _, ok := w.Entity(name, engine.ClassPlayer); !ok {
		return s.fail(&engine.NotFoundError{Kind: "player"})
	}
	if err := s.c.InputDriver().Set(w.ID(), name, command); err != nil {
		return s.fail(err)
	}
	return types.Success()
}
