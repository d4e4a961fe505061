// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package scopes

import (
	"github.com/fablehost/fabled/pkg/config"
	"github.com/fablehost/fabled/pkg/container"
	"github.com/fablehost/fabled/pkg/engine"
	"github.com/fablehost/fabled/pkg/types"
	"go.uber.org/zap"
)

// NewGlobalScope builds the "global" scope: daemon-wide configuration,
// statistics and the fleet dump/restore operations.
func NewGlobalScope(conf *config.Config, c *container.Container, logger *zap.SugaredLogger) *Controller {
	s := NewController("global", logger)
	s.Register("get", "config", func(req *types.Request) types.Response {
		return types.Success().With("config", conf.Visible())
	})
	s.Register("get", "statistics", func(req *types.Request) types.Response {
		return types.Success().
			With("players", c.NumPlayers()).
			With("version", types.DaemonVersion).
			With("lib_version", engine.LibVersion)
	})
	s.Register("post", "dump", func(req *types.Request) types.Response {
		if err := c.DumpAll(); err != nil {
			return s.fail(err)
		}
		return types.Success()
	})
	s.Register("post", "restore", func(req *types.Request) types.Response {
		if err := c.RestoreAll(); err != nil {
			return s.fail(err)
		}
		return types.Success()
	})
	return s
}
