// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package dispatcher_test

import (
	"encoding/json"

	. "github.com/fablehost/fabled/pkg/dispatcher"
	"github.com/fablehost/fabled/pkg/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var nopLogger = zap.NewNop().Sugar()

// echoScope records the last request it served and answers 200.
type echoScope struct {
	name string
	last *types.Request
}

func (s *echoScope) Name() string { return s.name }

func (s *echoScope) Handle(req *types.Request) types.Response {
	s.last = req
	return types.Success().With("echo", req.Action)
}

// panicScope panics on every request.
type panicScope struct{}

func (s *panicScope) Name() string { return "boom" }

func (s *panicScope) Handle(req *types.Request) types.Response {
	panic("handler exploded")
}

func decode(raw string) map[string]interface{} {
	var out map[string]interface{}
	ExpectWithOffset(1, json.Unmarshal([]byte(raw), &out)).To(Succeed())
	return out
}

var _ = Describe("Dispatcher", func() {
	var d *Dispatcher
	var echo *echoScope
	BeforeEach(func() {
		d = NewDispatcher()
		echo = &echoScope{name: "game"}
		Expect(d.Register(echo, true)).To(Succeed())
	})

	expectError := func(raw string, status int, message string) {
		resp := decode(d.Handle(nopLogger, raw))
		ExpectWithOffset(1, resp["status"]).To(BeNumerically("==", status))
		ExpectWithOffset(1, resp["message"]).To(Equal(message))
	}

	Context("when validating the envelope", func() {
		It("rejects malformed JSON", func() {
			for _, raw := range []string{"", "nonsense", "[1,2]", `"text"`, "42", "null"} {
				expectError(raw, 400, types.MsgInvalidJSON)
			}
		})
		It("rejects a missing method", func() {
			expectError(`{}`, 400, types.MsgMissingMethod)
			expectError(`{"scope":"game"}`, 400, types.MsgMissingMethod)
		})
		It("rejects a non-string or unknown method", func() {
			expectError(`{"method":7,"scope":"game"}`, 400, types.MsgInvalidMethod)
			expectError(`{"method":"steal","scope":"game"}`, 400, types.MsgInvalidMethod)
		})
		It("rejects a missing or non-string scope", func() {
			expectError(`{"method":"get"}`, 400, types.MsgMissingScope)
			expectError(`{"method":"get","scope":1}`, 400, types.MsgInvalidScope)
		})
		It("rejects an unregistered scope", func() {
			expectError(`{"method":"get","scope":"nowhere"}`, 404, types.MsgScopeNotFound)
		})
		It("rejects a non-string action", func() {
			expectError(`{"method":"get","scope":"game","action":1}`, 400, types.MsgInvalidAction)
		})
		It("rejects non-object args", func() {
			expectError(`{"method":"get","scope":"game","args":[1]}`, 400, types.MsgInvalidArgs)
		})
	})

	Context("when routing", func() {
		It("defaults the action and hands over empty args", func() {
			resp := decode(d.Handle(nopLogger, `{"method":"get","scope":"game"}`))
			Expect(resp["status"]).To(BeNumerically("==", 200))
			Expect(echo.last.Action).To(Equal("default"))
			Expect(echo.last.Args).To(BeEmpty())
		})
		It("lowercases method, scope and action", func() {
			d.Handle(nopLogger, `{"method":"GET","scope":"Game","action":"List"}`)
			Expect(echo.last.Method).To(Equal("get"))
			Expect(echo.last.Scope).To(Equal("game"))
			Expect(echo.last.Action).To(Equal("list"))
		})
		It("passes args through to the controller", func() {
			d.Handle(nopLogger, `{"method":"get","scope":"game","args":{"id":3}}`)
			Expect(echo.last.Args).To(HaveKeyWithValue("id", float64(3)))
		})
		It("contains controller panics", func() {
			Expect(d.Register(&panicScope{}, false)).To(Succeed())
			expectError(`{"method":"get","scope":"boom"}`, 500, types.MsgInternalError)
		})
	})

	Context("when logging requests", func() {
		var logs *observer.ObservedLogs
		var logged *zap.SugaredLogger
		BeforeEach(func() {
			core, recorded := observer.New(zapcore.InfoLevel)
			logs = recorded
			logged = zap.New(core).Sugar()
		})

		infoLines := func() []observer.LoggedEntry {
			var out []observer.LoggedEntry
			for _, e := range logs.All() {
				if e.Level == zapcore.InfoLevel {
					out = append(out, e)
				}
			}
			return out
		}

		It("writes one line per served request", func() {
			d.Handle(logged, `{"method":"get","scope":"game","action":"list"}`)
			lines := infoLines()
			Expect(lines).To(HaveLen(1))
			fields := lines[0].ContextMap()
			Expect(fields["status"]).To(BeNumerically("==", 200))
			Expect(fields["method"]).To(Equal("get"))
			Expect(fields["scope"]).To(Equal("game"))
			Expect(fields["action"]).To(Equal("list"))
		})
		It("writes one line per rejected request", func() {
			rejected := []string{
				"nonsense",
				`{}`,
				`{"method":7,"scope":"game"}`,
				`{"method":"get"}`,
				`{"method":"get","scope":"nowhere"}`,
				`{"method":"get","scope":"game","action":1}`,
				`{"method":"get","scope":"game","args":[1]}`,
			}
			for i, raw := range rejected {
				d.Handle(logged, raw)
				Expect(infoLines()).To(HaveLen(i + 1))
			}
		})
		It("carries the status and message of error responses", func() {
			d.Handle(logged, `{"method":"get","scope":"nowhere"}`)
			fields := infoLines()[0].ContextMap()
			Expect(fields["status"]).To(BeNumerically("==", 404))
			Expect(fields["message"]).To(Equal(types.MsgScopeNotFound))
		})
		It("logs contained panics once at INFO", func() {
			Expect(d.Register(&panicScope{}, false)).To(Succeed())
			d.Handle(logged, `{"method":"get","scope":"boom"}`)
			lines := infoLines()
			Expect(lines).To(HaveLen(1))
			fields := lines[0].ContextMap()
			Expect(fields["status"]).To(BeNumerically("==", 500))
			Expect(fields["message"]).To(Equal(types.MsgInternalError))
			Expect(fields["scope"]).To(Equal("boom"))
		})
	})

	Context("when managing the registry", func() {
		It("rejects duplicate registration", func() {
			Expect(d.Register(&echoScope{name: "game"}, false)).NotTo(Succeed())
		})
		It("refuses to unregister a built-in scope", func() {
			Expect(d.Unregister("game")).NotTo(Succeed())
			resp := decode(d.Handle(nopLogger, `{"method":"get","scope":"game"}`))
			Expect(resp["status"]).To(BeNumerically("==", 200))
		})
		It("unregisters extension scopes", func() {
			Expect(d.Register(&echoScope{name: "plugin"}, false)).To(Succeed())
			Expect(d.Unregister("plugin")).To(Succeed())
			expectError(`{"method":"get","scope":"plugin"}`, 404, types.MsgScopeNotFound)
		})
	})
})
