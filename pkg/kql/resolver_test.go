// Licensed to Apache Software Foundation (ASF) under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Apache Software Foundation (ASF) licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package kql_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/apache/skywalking-kql/pkg/kql"
)

var _ = Describe("Resolver", func() {
	var (
		ctx     context.Context
		backend *fakeAreas
		r       *Resolver
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = &fakeAreas{areas: map[string]*Area{
			"2:Arizona":  {ID: 4},
			"3:Phoenix":  {ID: 9},
			"4:Downtown": {ID: 11},
		}}
		r = NewResolver(backend)
	})

	It("resolves a name through the backing lookup", func() {
		a, err := r.Resolve(ctx, 2, "Arizona", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(BeNil())
		Expect(a.ID).To(Equal(4.0))
		Expect(backend.calls).To(HaveLen(1))
	})

	It("passes the parent id to the lookup", func() {
		a, err := r.Resolve(ctx, 3, "Phoenix", &Area{ID: 4})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.ID).To(Equal(9.0))
		Expect(backend.calls[0].parent).NotTo(BeNil())
		Expect(*backend.calls[0].parent).To(Equal(4.0))
	})

	It("serves a second resolution from the cache", func() {
		first, err := r.Resolve(ctx, 2, "Arizona", nil)
		Expect(err).NotTo(HaveOccurred())
		second, err := r.Resolve(ctx, 2, "Arizona", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(BeIdenticalTo(first))
		Expect(backend.calls).To(HaveLen(1))
	})

	It("keys the cache by level and name", func() {
		_, err := r.Resolve(ctx, 2, "Arizona", nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Resolve(ctx, 3, "Arizona", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(backend.calls).To(HaveLen(2))
	})

	It("does not cache a miss", func() {
		for i := 0; i < 2; i++ {
			a, err := r.Resolve(ctx, 2, "Ghost", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(BeNil())
		}
		Expect(backend.calls).To(HaveLen(2))
	})

	It("does not cache a failed lookup", func() {
		backend.err = errors.New("areas down")
		_, err := r.Resolve(ctx, 2, "Arizona", nil)
		Expect(err).To(MatchError("areas down"))
		backend.err = nil
		a, err := r.Resolve(ctx, 2, "Arizona", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.ID).To(Equal(4.0))
		Expect(backend.calls).To(HaveLen(2))
	})

	Describe("chains", func() {
		It("threads the nearest resolved ancestor through the levels", func() {
			a, err := r.ResolveChain(ctx, []string{"Arizona", "Phoenix", "Downtown"})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ID).To(Equal(11.0))
			Expect(backend.calls).To(HaveLen(3))
			Expect(backend.calls[0].parent).To(BeNil())
			Expect(*backend.calls[1].parent).To(Equal(4.0))
			Expect(*backend.calls[2].parent).To(Equal(9.0))
		})

		It("returns the deepest area that resolved", func() {
			a, err := r.ResolveChain(ctx, []string{"Arizona", "Phoenix", "Ghost"})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ID).To(Equal(9.0))
		})

		It("skips an unresolved level without losing the parent", func() {
			a, err := r.ResolveChain(ctx, []string{"Arizona", "Ghost", "Downtown"})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ID).To(Equal(11.0))
			Expect(*backend.calls[2].parent).To(Equal(4.0))
		})

		It("returns nil when nothing resolves", func() {
			a, err := r.ResolveChain(ctx, []string{"Ghost", "Phantom"})
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(BeNil())
		})

		It("stops at the first lookup failure", func() {
			backend.err = errors.New("areas down")
			_, err := r.ResolveChain(ctx, []string{"Arizona", "Phoenix"})
			Expect(err).To(MatchError("areas down"))
			Expect(backend.calls).To(HaveLen(1))
		})

		It("reuses cached levels across chains", func() {
			_, err := r.ResolveChain(ctx, []string{"Arizona", "Phoenix"})
			Expect(err).NotTo(HaveOccurred())
			_, err = r.ResolveChain(ctx, []string{"Arizona", "Phoenix"})
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.calls).To(HaveLen(2))
		})
	})
})
