// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package extensions_test

import (
	"github.com/fablehost/fabled/pkg/dispatcher"
	"github.com/fablehost/fabled/pkg/drivers"
	. "github.com/fablehost/fabled/pkg/extensions"
	"github.com/fablehost/fabled/pkg/types"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var nopLogger = zap.NewNop().Sugar()

type stubScope struct {
	name string
}

func (s *stubScope) Name() string { return s.name }

func (s *stubScope) Handle(req *types.Request) types.Response {
	return types.Success()
}

var _ = Describe("Loader", func() {
	var d *dispatcher.Dispatcher
	var r *drivers.Registry
	var l *Loader
	BeforeEach(func() {
		d = dispatcher.NewDispatcher()
		r = drivers.NewRegistry()
		l = NewLoader(d, r, nopLogger)
	})

	It("registers an extension's scopes and drivers", func() {
		ext := &Extension{
			Name:          "arena",
			Scopes:        []dispatcher.Scope{&stubScope{name: "arena"}},
			OutputDrivers: map[string]drivers.OutputDriver{"arena": drivers.NewLocalOutput()},
			InputDrivers:  map[string]drivers.InputDriver{"arena": drivers.NewLocalInput()},
		}
		Expect(l.Register(ext)).To(Succeed())
		Expect(l.Loaded()).To(ConsistOf("arena"))
		Expect(d.Scopes()).To(ContainElement("arena"))
		_, err := r.Output("arena")
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Input("arena")
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an unnamed extension", func() {
		Expect(l.Register(&Extension{})).NotTo(Succeed())
	})

	It("rejects a whole manifest on a scope collision and rolls back", func() {
		Expect(d.Register(&stubScope{name: "game"}, true)).To(Succeed())
		ext := &Extension{
			Name: "clash",
			Scopes: []dispatcher.Scope{
				&stubScope{name: "ladder"},
				&stubScope{name: "game"},
			},
			OutputDrivers: map[string]drivers.OutputDriver{"clash": drivers.NewLocalOutput()},
		}
		Expect(l.Register(ext)).NotTo(Succeed())
		Expect(l.Loaded()).To(BeEmpty())
		Expect(d.Scopes()).NotTo(ContainElement("ladder"))
		_, err := r.Output("clash")
		Expect(err).To(HaveOccurred())
	})

	It("rejects loading the same extension twice", func() {
		Expect(l.Register(&Extension{Name: "arena"})).To(Succeed())
		Expect(l.Register(&Extension{Name: "arena"})).NotTo(Succeed())
	})

	It("unloads everything an extension contributed", func() {
		ext := &Extension{
			Name:         "arena",
			Scopes:       []dispatcher.Scope{&stubScope{name: "arena"}},
			InputDrivers: map[string]drivers.InputDriver{"arena": drivers.NewLocalInput()},
		}
		Expect(l.Register(ext)).To(Succeed())
		Expect(l.Unload("arena")).To(Succeed())
		Expect(l.Loaded()).To(BeEmpty())
		Expect(d.Scopes()).NotTo(ContainElement("arena"))
		_, err := r.Input("arena")
		Expect(err).To(HaveOccurred())
	})

	It("rejects unloading an unknown extension", func() {
		Expect(l.Unload("ghost")).NotTo(Succeed())
	})

	It("skips missing plugins without failing", func() {
		l.LoadPlugins("/nonexistent", []string{"ghost"})
		Expect(l.Loaded()).To(BeEmpty())
	})
})
