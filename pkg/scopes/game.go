// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package scopes

import (
	"path/filepath"
	"strings"

	"github.com/fablehost/fabled/pkg/container"
	"github.com/fablehost/fabled/pkg/types"
	"go.uber.org/zap"
)

// gameScope is the "game" scope: fleet-wide creation, listing, meta,
// clock control and the per-game dump/restore surface.
type gameScope struct {
	*Controller
	c *container.Container
}

// NewGameScope builds the "game" scope controller.
func NewGameScope(c *container.Container, logger *zap.SugaredLogger) *Controller {
	s := &gameScope{Controller: NewController("game", logger), c: c}
	s.Register("get", "default", s.get)
	s.Register("get", "list", s.list)
	s.Register("get", "definitions", s.definitions)
	s.Register("get", "statistics", s.statistics)
	s.Register("get", "meta", s.getMeta)
	s.Register("get", "time", s.getTime)
	s.Register("get", "is_running", s.isRunning)
	s.Register("get", "dumplist", s.dumplist)
	s.Register("set", "meta", s.setMeta)
	s.Register("set", "start", s.start)
	s.Register("set", "stop", s.stop)
	s.Register("post", "default", s.create)
	s.Register("post", "dump", s.dump)
	s.Register("post", "restore", s.restore)
	s.Register("delete", "default", s.destroy)
	s.Register("delete", "dump", s.deleteDump)
	return s.Controller
}

// wrapper resolves args.id into a live game wrapper.
func (s *gameScope) wrapper(req *types.Request) (*container.Wrapper, types.Response) {
	id, err := req.Args.Uint("id")
	if err != nil {
		return nil, s.fail(err)
	}
	w, ok := s.c.Game(id)
	if !ok {
		return nil, s.fail(container.ErrGameNotFound)
	}
	return w, nil
}

func (s *gameScope) get(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	resp := types.Success()
	for k, v := range w.Describe() {
		resp[k] = v
	}
	return resp
}

func (s *gameScope) list(req *types.Request) types.Response {
	keys, err := req.Args.StringSlice("include_meta")
	if err != nil {
		return s.fail(err)
	}
	union, err := container.ParseFilters(req.Args["filters"])
	if err != nil {
		return s.fail(err)
	}
	ids, err := s.c.Games(union)
	if err != nil {
		return s.fail(err)
	}
	games := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		w, ok := s.c.Game(id)
		if !ok {
			continue
		}
		entry := map[string]interface{}{"id": id, "name": w.Name()}
		if keys != nil {
			for k, v := range w.Meta(keys) {
				entry[k] = v
			}
		}
		games = append(games, entry)
	}
	return types.Success().With("games", games)
}

func (s *gameScope) definitions(req *types.Request) types.Response {
	defs, err := s.c.Definitions()
	if err != nil {
		return s.fail(err)
	}
	if defs == nil {
		defs = []string{}
	}
	return types.Success().With("definitions", defs)
}

func (s *gameScope) statistics(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	resp := types.Success()
	for k, v := range w.Statistics() {
		if k == "status" {
			continue
		}
		resp[k] = v
	}
	return resp
}

func (s *gameScope) getMeta(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	keys, err := req.Args.StringSlice("meta")
	if err != nil {
		return s.fail(err)
	}
	return types.Success().With("meta", w.Meta(keys))
}

func (s *gameScope) setMeta(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	meta, err := req.Args.ScalarMap("meta")
	if err != nil {
		return s.fail(err)
	}
	w.SetMeta(meta)
	return types.Success()
}

func (s *gameScope) getTime(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	return types.Success().With("current_time", w.Time())
}

func (s *gameScope) isRunning(req *types.Request) types.Response {
	w, errResp := s.wrapper(req)
	if errResp != nil {
		return errResp
	}
	return types.Success().With("is_running", w.InProgress())
}

func (s *gameScope) start(req *types.Request) types.Response {
	id, err := req.Args.Uint("id")
	if err != nil {
		return s.fail(err)
	}
	if err := s.c.StartGame(id); err != nil {
		return s.fail(err)
	}
	return types.Success()
}

func (s *gameScope) stop(req *types.Request) types.Response {
	id, err := req.Args.Uint("id")
	if err != nil {
		return s.fail(err)
	}
	if err := s.c.StopGame(id); err != nil {
		return s.fail(err)
	}
	return types.Success()
}

func (s *gameScope) create(req *types.Request) types.Response {
	name, err := req.Args.String("name")
	if err != nil {
		return s.fail(err)
	}
	if strings.TrimSpace(name) == "" {
		return types.ErrorResponse(types.StatusInvalid, "invalid name")
	}
	definition, err := req.Args.String("definition")
	if err != nil {
		return s.fail(err)
	}
	if filepath.IsAbs(definition) {
		return types.ErrorResponse(types.StatusInvalid, "definition path must be relative")
	}
	meta := map[string]string{}
	for k, v := range req.Args {
		if k == "name" || k == "definition" {
			continue
		}
		value, ok := types.StringifyScalar(v)
		if !ok {
			return s.fail(types.ErrMetaValues)
		}
		meta[k] = value
	}
	id, err := s.c.CreateGame(definition, name, meta)
	if err != nil {
		return s.fail(err)
	}
	return types.Success().With("id", id)
}

func (s *gameScope) destroy(req *types.Request) types.Response {
	id, err := req.Args.Uint("id")
	if err != nil {
		return s.fail(err)
	}
	deleteDump, _, err := req.Args.OptionalBool("delete_dump")
	if err != nil {
		return s.fail(err)
	}
	if err := s.c.DestroyGame(id, deleteDump); err != nil {
		return s.fail(err)
	}
	return types.Success()
}

func (s *gameScope) dumplist(req *types.Request) types.Response {
	store := s.c.Store()
	if store == nil {
		return types.ErrorResponse(types.StatusUnsupported, types.MsgStateDisabled)
	}
	id, present, err := req.Args.OptionalUint("id")
	if err != nil {
		return s.fail(err)
	}
	if !present {
		ids, err := store.GameIDs()
		if err != nil {
			return s.fail(err)
		}
		if ids == nil {
			ids = []uint{}
		}
		return types.Success().With("games", ids)
	}
	infos, err := store.SlotInfos(id)
	if err != nil {
		return s.fail(err)
	}
	return types.Success().With("slots", infos)
}

func (s *gameScope) dump(req *types.Request) types.Response {
	id, err := req.Args.Uint("id")
	if err != nil {
		return s.fail(err)
	}
	slot, err := s.c.DumpGame(id)
	if err != nil {
		return s.fail(err)
	}
	return types.Success().With("slot", slot)
}

func (s *gameScope) restore(req *types.Request) types.Response {
	id, err := req.Args.Uint("id")
	if err != nil {
		return s.fail(err)
	}
	var slot *uint
	if n, present, err := req.Args.OptionalUint("slot"); err != nil {
		return s.fail(err)
	} else if present {
		slot = &n
	}
	if _, err := s.c.RestoreGame(id, slot); err != nil {
		return s.fail(err)
	}
	return types.Success()
}

func (s *gameScope) deleteDump(req *types.Request) types.Response {
	store := s.c.Store()
	if store == nil {
		return types.ErrorResponse(types.StatusUnsupported, types.MsgStateDisabled)
	}
	id, err := req.Args.Uint("id")
	if err != nil {
		return s.fail(err)
	}
	slot, present, err := req.Args.OptionalUint("slot")
	if err != nil {
		return s.fail(err)
	}
	if present {
		err = store.DeleteSlot(id, slot)
	} else {
		err = store.DeleteGame(id)
	}
	if err != nil {
		return s.fail(err)
	}
	return types.Success()
}
