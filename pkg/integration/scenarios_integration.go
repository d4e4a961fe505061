// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package integration

import (
	"runtime"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Daemon request path", func() {
	var d *daemon
	BeforeEach(func() {
		d = newDaemon(false, 0)
	})
	AfterEach(func() {
		d.close()
	})

	It("lists the definitions directory", func() {
		resp := d.request(`{"method":"get","scope":"game","action":"definitions"}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))
		Expect(resp["definitions"]).To(Equal([]interface{}{"game.xml"}))
	})

	It("creates, fetches and destroys a game", func() {
		resp := d.request(`{"method":"post","scope":"game","args":{"name":"myGame","definition":"game.xml"}}`)
		Expect(resp).To(Equal(map[string]interface{}{"status": float64(200), "id": float64(0)}))

		resp = d.request(`{"method":"get","scope":"game","args":{"id":0}}`)
		Expect(resp).To(Equal(map[string]interface{}{
			"status":       float64(200),
			"id":           float64(0),
			"name":         "myGame",
			"definition":   "game.xml",
			"current_time": float64(0),
			"is_running":   false,
		}))

		resp = d.request(`{"method":"delete","scope":"game","args":{"id":0}}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))

		resp = d.request(`{"method":"get","scope":"game","args":{"id":0}}`)
		Expect(resp).To(Equal(map[string]interface{}{
			"status":  float64(404),
			"message": "game not found",
		}))
	})

	It("round-trips game meta", func() {
		d.request(`{"method":"post","scope":"game","args":{"name":"myGame","definition":"game.xml"}}`)
		resp := d.request(`{"method":"set","scope":"game","action":"meta","args":{"id":0,"meta":{"k":"v"}}}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))
		resp = d.request(`{"method":"get","scope":"game","action":"meta","args":{"id":0,"meta":["k"]}}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))
		Expect(resp["meta"]).To(Equal(map[string]interface{}{"k": "v"}))
	})

	It("round-trips entity output", func() {
		d.request(`{"method":"post","scope":"game","args":{"name":"myGame","definition":"game.xml"}}`)
		resp := d.request(`{"method":"post","scope":"player","args":{"game_id":0,"name":"player"}}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))

		resp = d.request(`{"method":"post","scope":"entity","action":"output","args":{"game_id":0,"name":"player","channel":"test","message":"hi"}}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))

		resp = d.request(`{"method":"get","scope":"entity","action":"output","args":{"game_id":0,"name":"player","channel":"test"}}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))
		messages := resp["messages"].([]interface{})
		Expect(messages).To(HaveLen(1))
		message := messages[0].(map[string]interface{})
		Expect(message["order"]).To(BeNumerically("==", 0))
		Expect(message["content"]).To(Equal("hi\n"))
		Expect(message["timestamp"]).To(BeNumerically(">", 0))

		resp = d.request(`{"method":"get","scope":"entity","action":"output","args":{"game_id":0,"name":"player","channel":"test"}}`)
		Expect(resp["messages"]).To(BeEmpty())
	})

	It("feeds player input to the simulation in order", func() {
		d.request(`{"method":"post","scope":"game","args":{"name":"myGame","definition":"game.xml"}}`)
		Expect(d.request(`{"method":"set","scope":"game","action":"start","args":{"id":0}}`)["status"]).To(BeNumerically("==", 200))
		Expect(d.request(`{"method":"post","scope":"player","args":{"game_id":0,"name":"player"}}`)["status"]).To(BeNumerically("==", 200))

		w, ok := d.container.Game(0)
		Expect(ok).To(BeTrue())
		for i := 0; i < 2; i++ {
			resp := d.request(`{"method":"post","scope":"player","action":"input","args":{"game_id":0,"name":"player","command":"north"}}`)
			Expect(resp["status"]).To(BeNumerically("==", 200))
			Eventually(func() string {
				last, _ := w.LastCommand("player")
				return last
			}).Should(Equal("north"))
			Eventually(func() bool {
				pending, err := d.in.IsSet(0, "player")
				Expect(err).NotTo(HaveOccurred())
				return pending
			}).Should(BeFalse())
		}
	})

	It("answers every malformed envelope with its canonical message", func() {
		for raw, expected := range map[string]map[string]interface{}{
			``:                                   {"status": float64(400), "message": "request must be valid JSON"},
			`nonsense`:                           {"status": float64(400), "message": "request must be valid JSON"},
			`{}`:                                 {"status": float64(400), "message": "missing required method"},
			`{"method":"get"}`:                   {"status": float64(400), "message": "missing required scope"},
			`{"method":"get","scope":"nowhere"}`: {"status": float64(404), "message": "scope not found"},
		} {
			Expect(d.request(raw)).To(Equal(expected), raw)
		}
	})

	It("destroys a game without leaking its listener goroutines", func() {
		before := runtime.NumGoroutine()
		d.request(`{"method":"post","scope":"game","args":{"name":"myGame","definition":"game.xml"}}`)
		d.request(`{"method":"set","scope":"game","action":"start","args":{"id":0}}`)
		d.request(`{"method":"post","scope":"player","args":{"game_id":0,"name":"player"}}`)
		resp := d.request(`{"method":"delete","scope":"game","args":{"id":0}}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))
		Eventually(func() int {
			return runtime.NumGoroutine()
		}, time.Second).Should(BeNumerically("<=", before+1))
	})
})

var _ = Describe("Daemon state round-trip", func() {
	var d *daemon
	BeforeEach(func() {
		d = newDaemon(true, 1)
	})
	AfterEach(func() {
		d.close()
	})

	It("dumps the fleet, destroys a game and restores it", func() {
		d.request(`{"method":"post","scope":"game","args":{"name":"myGame","definition":"game.xml"}}`)
		Expect(d.request(`{"method":"post","scope":"global","action":"dump"}`)["status"]).To(BeNumerically("==", 200))
		Expect(d.request(`{"method":"delete","scope":"game","args":{"id":0}}`)["status"]).To(BeNumerically("==", 200))
		Expect(d.request(`{"method":"post","scope":"global","action":"restore"}`)["status"]).To(BeNumerically("==", 200))

		resp := d.request(`{"method":"get","scope":"game","args":{"id":0}}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))
		Expect(resp["name"]).To(Equal("myGame"))
		Expect(resp["restored_from_slot"]).To(BeNumerically("==", 0))
	})

	It("never reuses ids across a fresh process on the same state directory", func() {
		d.request(`{"method":"post","scope":"game","args":{"name":"first","definition":"game.xml"}}`)
		Expect(d.request(`{"method":"post","scope":"game","action":"dump","args":{"id":0}}`)["status"]).To(BeNumerically("==", 200))

		d.restart(1)
		resp := d.request(`{"method":"post","scope":"game","args":{"name":"second","definition":"game.xml"}}`)
		Expect(resp["status"]).To(BeNumerically("==", 200))
		Expect(resp["id"]).To(BeNumerically("==", 1))
	})
})
