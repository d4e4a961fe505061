// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package scopes_test

import (
	"github.com/fablehost/fabled/pkg/types"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Game scope", func() {
	var f *fixture
	BeforeEach(func() {
		f = newFixture(false)
	})
	AfterEach(func() {
		f.cleanup()
	})

	Context("when creating a game", func() {
		It("returns the new id and assigns ids sequentially", func() {
			Expect(f.createGame("alpha")).To(Equal(uint(0)))
			Expect(f.createGame("beta")).To(Equal(uint(1)))
		})
		It("rejects a name that is empty after trimming", func() {
			resp := f.call("game", "post", "default", types.Args{
				"name":       "  ",
				"definition": "game.xml",
			})
			Expect(resp.Status()).To(Equal(types.StatusInvalid))
			Expect(resp.Message()).To(Equal("invalid name"))
		})
		It("rejects an absolute definition path", func() {
			resp := f.call("game", "post", "default", types.Args{
				"name":       "alpha",
				"definition": "/etc/game.xml",
			})
			Expect(resp.Status()).To(Equal(types.StatusInvalid))
			Expect(resp.Message()).To(Equal("definition path must be relative"))
		})
		It("stores extra scalar arguments as meta", func() {
			resp := f.call("game", "post", "default", types.Args{
				"name":       "alpha",
				"definition": "game.xml",
				"owner":      "sam",
				"round":      float64(3),
			})
			Expect(resp.Status()).To(Equal(types.StatusOK))
			id := resp["id"].(uint)
			meta := f.call("game", "get", "meta", types.Args{"id": float64(id)})
			Expect(meta.Status()).To(Equal(types.StatusOK))
			Expect(meta["meta"]).To(HaveKeyWithValue("owner", "sam"))
			Expect(meta["meta"]).To(HaveKeyWithValue("round", "3"))
		})
		It("rejects non-scalar meta extras", func() {
			resp := f.call("game", "post", "default", types.Args{
				"name":       "alpha",
				"definition": "game.xml",
				"owner":      []interface{}{"sam"},
			})
			Expect(resp.Status()).To(Equal(types.StatusInvalid))
			Expect(resp.Message()).To(Equal(types.ErrMetaValues.Error()))
		})
	})

	Context("when describing a game", func() {
		It("renders id, name, definition and clock state", func() {
			id := f.createGame("alpha")
			resp := f.call("game", "get", "default", types.Args{"id": float64(id)})
			Expect(resp.Status()).To(Equal(types.StatusOK))
			Expect(resp["name"]).To(Equal("alpha"))
			Expect(resp["definition"]).To(Equal("game.xml"))
			Expect(resp["is_running"]).To(BeFalse())
			Expect(resp).NotTo(HaveKey("restored_from_slot"))
		})
		It("rejects an unknown id", func() {
			resp := f.call("game", "get", "default", types.Args{"id": float64(9)})
			Expect(resp.Status()).To(Equal(types.StatusNotFound))
			Expect(resp.Message()).To(Equal("game not found"))
		})
		It("rejects a missing id", func() {
			resp := f.call("game", "get", "default", types.Args{})
			Expect(resp.Status()).To(Equal(types.StatusInvalid))
			Expect(resp.Message()).To(Equal("missing required id"))
		})
		It("rejects a negative id", func() {
			resp := f.call("game", "get", "default", types.Args{"id": float64(-1)})
			Expect(resp.Status()).To(Equal(types.StatusInvalid))
			Expect(resp.Message()).To(Equal("invalid id"))
		})
	})

	Context("when listing games", func() {
		It("lists ids ascending with requested meta", func() {
			f.createGame("alpha")
			f.createGame("beta")
			resp := f.call("game", "get", "list", types.Args{
				"include_meta": []interface{}{"title"},
			})
			Expect(resp.Status()).To(Equal(types.StatusOK))
			games := resp["games"].([]map[string]interface{})
			Expect(games).To(HaveLen(2))
			Expect(games[0]["id"]).To(Equal(uint(0)))
			Expect(games[0]["name"]).To(Equal("alpha"))
			Expect(games[0]["title"]).To(Equal("Test World"))
			Expect(games[1]["id"]).To(Equal(uint(1)))
		})
		It("applies filters", func() {
			f.createGame("alpha")
			id := f.createGame("battle")
			Expect(f.call("game", "set", "start", types.Args{"id": float64(id)}).Status()).To(Equal(types.StatusOK))
			resp := f.call("game", "get", "list", types.Args{
				"filters": map[string]interface{}{"is_running": true},
			})
			games := resp["games"].([]map[string]interface{})
			Expect(games).To(HaveLen(1))
			Expect(games[0]["name"]).To(Equal("battle"))
		})
		It("rejects a malformed filter shape", func() {
			resp := f.call("game", "get", "list", types.Args{"filters": "is_running"})
			Expect(resp.Status()).To(Equal(types.StatusInvalid))
			Expect(resp.Message()).To(Equal("filters must be expressed as a JSON object or array"))
		})
		It("rejects an unsupported filter", func() {
			resp := f.call("game", "get", "list", types.Args{
				"filters": map[string]interface{}{"has_cheese": true},
			})
			Expect(resp.Status()).To(Equal(types.StatusInvalid))
			Expect(resp.Message()).To(Equal("Unsupported filter 'has_cheese'"))
		})
	})

	It("lists definition files", func() {
		resp := f.call("game", "get", "definitions", types.Args{})
		Expect(resp.Status()).To(Equal(types.StatusOK))
		Expect(resp["definitions"]).To(Equal([]string{"game.xml"}))
	})

	Context("when controlling the clock", func() {
		It("starts and stops the simulation", func() {
			id := f.createGame("alpha")
			Expect(f.call("game", "set", "start", types.Args{"id": float64(id)}).Status()).To(Equal(types.StatusOK))
			resp := f.call("game", "get", "is_running", types.Args{"id": float64(id)})
			Expect(resp["is_running"]).To(BeTrue())
			Eventually(func() uint64 {
				r := f.call("game", "get", "time", types.Args{"id": float64(id)})
				return r["current_time"].(uint64)
			}).Should(BeNumerically(">", 0))
			Expect(f.call("game", "set", "stop", types.Args{"id": float64(id)}).Status()).To(Equal(types.StatusOK))
			resp = f.call("game", "get", "is_running", types.Args{"id": float64(id)})
			Expect(resp["is_running"]).To(BeFalse())
		})
	})

	Context("when reading and writing meta", func() {
		It("round-trips scalar meta and reads absent keys as empty", func() {
			id := f.createGame("alpha")
			resp := f.call("game", "set", "meta", types.Args{
				"id":   float64(id),
				"meta": map[string]interface{}{"motd": "welcome"},
			})
			Expect(resp.Status()).To(Equal(types.StatusOK))
			resp = f.call("game", "get", "meta", types.Args{
				"id":   float64(id),
				"meta": []interface{}{"motd", "absent"},
			})
			Expect(resp["meta"]).To(Equal(map[string]string{"motd": "welcome", "absent": ""}))
		})
		It("rejects non-scalar meta values", func() {
			id := f.createGame("alpha")
			resp := f.call("game", "set", "meta", types.Args{
				"id":   float64(id),
				"meta": map[string]interface{}{"motd": map[string]interface{}{}},
			})
			Expect(resp.Status()).To(Equal(types.StatusInvalid))
			Expect(resp.Message()).To(Equal("meta values cannot be objects or arrays"))
		})
	})

	It("merges simulation statistics into the response", func() {
		id := f.createGame("alpha")
		resp := f.call("game", "get", "statistics", types.Args{"id": float64(id)})
		Expect(resp.Status()).To(Equal(types.StatusOK))
		Expect(resp).To(HaveKey("players"))
		Expect(resp).To(HaveKey("entities"))
		Expect(resp).To(HaveKey("current_time"))
		Expect(resp).To(HaveKey("is_running"))
	})

	Context("when destroying a game", func() {
		It("removes the game", func() {
			id := f.createGame("alpha")
			Expect(f.call("game", "delete", "default", types.Args{"id": float64(id)}).Status()).To(Equal(types.StatusOK))
			resp := f.call("game", "get", "default", types.Args{"id": float64(id)})
			Expect(resp.Status()).To(Equal(types.StatusNotFound))
		})
		It("rejects an unknown id", func() {
			resp := f.call("game", "delete", "default", types.Args{"id": float64(4)})
			Expect(resp.Status()).To(Equal(types.StatusNotFound))
			Expect(resp.Message()).To(Equal("game not found"))
		})
	})

	Context("with the state feature disabled", func() {
		It("rejects dump, restore, dumplist and dump deletion", func() {
			id := f.createGame("alpha")
			for _, req := range []struct {
				method string
				action string
			}{
				{"post", "dump"},
				{"post", "restore"},
				{"get", "dumplist"},
				{"delete", "dump"},
			} {
				resp := f.call("game", req.method, req.action, types.Args{"id": float64(id)})
				Expect(resp.Status()).To(Equal(types.StatusUnsupported), req.action)
				Expect(resp.Message()).To(Equal(types.MsgStateDisabled))
			}
		})
	})

	Context("with the state feature enabled", func() {
		BeforeEach(func() {
			f.cleanup()
			f = newFixture(true)
		})

		It("dumps into sequential slots and lists them newest first", func() {
			id := f.createGame("alpha")
			resp := f.call("game", "post", "dump", types.Args{"id": float64(id)})
			Expect(resp.Status()).To(Equal(types.StatusOK))
			Expect(resp["slot"]).To(Equal(uint(0)))
			resp = f.call("game", "post", "dump", types.Args{"id": float64(id)})
			Expect(resp["slot"]).To(Equal(uint(1)))

			resp = f.call("game", "get", "dumplist", types.Args{"id": float64(id)})
			Expect(resp.Status()).To(Equal(types.StatusOK))
			Expect(resp).To(HaveKey("slots"))

			resp = f.call("game", "get", "dumplist", types.Args{})
			Expect(resp["games"]).To(Equal([]uint{id}))
		})

		It("restores a dumped game and reports the source slot", func() {
			id := f.createGame("alpha")
			Expect(f.call("game", "post", "dump", types.Args{"id": float64(id)}).Status()).To(Equal(types.StatusOK))
			Expect(f.call("game", "post", "restore", types.Args{"id": float64(id)}).Status()).To(Equal(types.StatusOK))
			resp := f.call("game", "get", "default", types.Args{"id": float64(id)})
			Expect(resp.Status()).To(Equal(types.StatusOK))
			Expect(resp["restored_from_slot"]).To(Equal(uint(0)))
		})

		It("rejects restoring a game that was never dumped", func() {
			resp := f.call("game", "post", "restore", types.Args{"id": float64(7)})
			Expect(resp.Status()).To(Equal(types.StatusNotFound))
			Expect(resp.Message()).To(Equal("dumped game not found"))
		})

		It("rejects restoring an unknown slot", func() {
			id := f.createGame("alpha")
			Expect(f.call("game", "post", "dump", types.Args{"id": float64(id)}).Status()).To(Equal(types.StatusOK))
			resp := f.call("game", "post", "restore", types.Args{"id": float64(id), "slot": float64(5)})
			Expect(resp.Status()).To(Equal(types.StatusNotFound))
			Expect(resp.Message()).To(Equal("game slot not found"))
		})

		It("deletes a single slot or the whole history", func() {
			id := f.createGame("alpha")
			Expect(f.call("game", "post", "dump", types.Args{"id": float64(id)}).Status()).To(Equal(types.StatusOK))
			Expect(f.call("game", "post", "dump", types.Args{"id": float64(id)}).Status()).To(Equal(types.StatusOK))
			resp := f.call("game", "delete", "dump", types.Args{"id": float64(id), "slot": float64(0)})
			Expect(resp.Status()).To(Equal(types.StatusOK))
			resp = f.call("game", "delete", "dump", types.Args{"id": float64(id)})
			Expect(resp.Status()).To(Equal(types.StatusOK))
			resp = f.call("game", "get", "dumplist", types.Args{})
			Expect(resp["games"]).To(BeEmpty())
		})
	})

	It("rejects unknown methods and actions with the canonical messages", func() {
		resp := f.call("game", "patch", "default", types.Args{})
		Expect(resp.Status()).To(Equal(types.StatusNotFound))
		Expect(resp.Message()).To(Equal(types.MsgMethodNotFound))

		resp = f.call("game", "get", "frobnicate", types.Args{})
		Expect(resp.Status()).To(Equal(types.StatusNotFound))
		Expect(resp.Message()).To(Equal(types.MsgActionNotFound))
	})
})
