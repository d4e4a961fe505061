// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package scopes_test

import (
	"github.com/fablehost/fabled/pkg/config"
	"github.com/fablehost/fabled/pkg/engine"
	. "github.com/fablehost/fabled/pkg/scopes"
	"github.com/fablehost/fabled/pkg/types"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Global scope", func() {
	var f *fixture
	var global *Controller
	BeforeEach(func() {
		f = newFixture(false)
		global = NewGlobalScope(config.Defaults(), f.container, nopLogger)
	})
	AfterEach(func() {
		f.cleanup()
	})

	call := func(method, action string) types.Response {
		return global.Handle(&types.Request{
			Method: method,
			Scope:  "global",
			Action: action,
			Args:   types.Args{},
		})
	}

	Context("when reading the configuration", func() {
		It("renders every visible option typed", func() {
			resp := call("get", "config")
			Expect(resp.Status()).To(Equal(types.StatusOK))
			conf := resp["config"].(map[string]interface{})
			Expect(conf).To(HaveKeyWithValue("network.port", 1040))
			Expect(conf).To(HaveKeyWithValue("state.enabled", false))
			Expect(conf).To(HaveKeyWithValue("output.driver", "local"))
		})
		It("omits hidden options", func() {
			conf := call("get", "config")["config"].(map[string]interface{})
			Expect(conf).NotTo(HaveKey("redis.username"))
			Expect(conf).NotTo(HaveKey("redis.password"))
		})
	})

	It("reports player count and versions in statistics", func() {
		f.createGame("alpha")
		Expect(f.call("player", "post", "default", types.Args{
			"game_id": float64(0),
			"name":    "sam",
		}).Status()).To(Equal(types.StatusOK))
		resp := call("get", "statistics")
		Expect(resp.Status()).To(Equal(types.StatusOK))
		Expect(resp["players"]).To(Equal(1))
		Expect(resp["version"]).To(Equal(types.DaemonVersion))
		Expect(resp["lib_version"]).To(Equal(engine.LibVersion))
	})

	Context("with the state feature disabled", func() {
		It("rejects fleet dump and restore", func() {
			for _, action := range []string{"dump", "restore"} {
				resp := call("post", action)
				Expect(resp.Status()).To(Equal(types.StatusUnsupported), action)
				Expect(resp.Message()).To(Equal(types.MsgStateDisabled))
			}
		})
	})

	Context("with the state feature enabled", func() {
		BeforeEach(func() {
			f.cleanup()
			f = newFixture(true)
			global = NewGlobalScope(config.Defaults(), f.container, nopLogger)
		})

		It("dumps and restores the whole fleet", func() {
			f.createGame("alpha")
			f.createGame("beta")
			Expect(call("post", "dump").Status()).To(Equal(types.StatusOK))
			store := f.container.Store()
			ids, err := store.GameIDs()
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]uint{0, 1}))
			Expect(call("post", "restore").Status()).To(Equal(types.StatusOK))
			resp := f.call("game", "get", "default", types.Args{"id": float64(0)})
			Expect(resp["restored_from_slot"]).To(Equal(uint(0)))
		})
	})
})
