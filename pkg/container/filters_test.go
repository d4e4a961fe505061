// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package container_test

import (
	. "github.com/fablehost/fabled/pkg/container"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseFilters", func() {
	It("treats an object as a single group", func() {
		union, err := ParseFilters(map[string]interface{}{"is_running": true})
		Expect(err).NotTo(HaveOccurred())
		Expect(union).To(HaveLen(1))
		Expect(union[0]).To(HaveLen(1))
		Expect(union[0][0].Type).To(Equal("is_running"))
	})
	It("treats an array of objects as a union", func() {
		union, err := ParseFilters([]interface{}{
			map[string]interface{}{"is_running": true},
			map[string]interface{}{"name_starts": "my"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(union).To(HaveLen(2))
	})
	It("returns a nil union for absent filters", func() {
		union, err := ParseFilters(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(union).To(BeNil())
	})
	It("rejects scalars and mixed arrays with the canonical message", func() {
		_, err := ParseFilters("is_running")
		Expect(err).To(MatchError("filters must be expressed as a JSON object or array"))
		_, err = ParseFilters([]interface{}{"is_running"})
		Expect(err).To(MatchError(ErrFilterShape))
	})
})

var _ = Describe("Filter evaluation", func() {
	var f *fixture
	BeforeEach(func() {
		f = newFixture(false, 0)
		for _, name := range []string{"alpha", "alpine", "beta"} {
			_, err := f.container.CreateGame("game.xml", name, nil)
			Expect(err).NotTo(HaveOccurred())
		}
		// alpha=0 alpine=1 beta=2; start beta only.
		Expect(f.container.StartGame(2)).To(Succeed())
	})
	AfterEach(func() {
		f.cleanup()
	})
	games := func(raw interface{}) ([]uint, error) {
		union, err := ParseFilters(raw)
		if err != nil {
			return nil, err
		}
		return f.container.Games(union)
	}
	It("selects every game without filters", func() {
		ids, err := games(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]uint{0, 1, 2}))
	})
	It("evaluates is_running against the running index", func() {
		ids, err := games(map[string]interface{}{"is_running": true})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]uint{2}))
		ids, err = games(map[string]interface{}{"is_running": false})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]uint{0, 1}))
	})
	It("evaluates name_starts as a prefix scan", func() {
		ids, err := games(map[string]interface{}{"name_starts": "alp"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]uint{0, 1}))
	})
	It("intersects filters within a group", func() {
		ids, err := games(map[string]interface{}{"name_starts": "alp", "is_running": true})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(BeEmpty())
	})
	It("unions groups", func() {
		ids, err := games([]interface{}{
			map[string]interface{}{"name_starts": "alpha"},
			map[string]interface{}{"is_running": true},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]uint{0, 2}))
	})
	It("yields the empty set for a union of empty groups", func() {
		ids, err := games([]interface{}{map[string]interface{}{}})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(BeEmpty())
	})
	It("fails unknown filter types with the canonical message", func() {
		_, err := games(map[string]interface{}{"bogus": 1.0})
		Expect(err).To(MatchError("Unsupported filter 'bogus'"))
	})
	It("fails wrongly typed filter values", func() {
		_, err := games(map[string]interface{}{"is_running": "yes"})
		Expect(err).To(MatchError("invalid value for filter 'is_running'"))
	})
})
