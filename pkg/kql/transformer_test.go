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
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/apache/skywalking-kql/pkg/kql"
)

type fakeRegistry struct {
	services map[string]float64
	err      error
	calls    int
}

func (f *fakeRegistry) FetchAll(_ context.Context) (map[string]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.services, nil
}

type lookupCall struct {
	parent *float64
	name   string
	level  int
}

type fakeAreas struct {
	areas map[string]*Area
	err   error
	calls []lookupCall
}

func (f *fakeAreas) Lookup(_ context.Context, level int, name string, parentID *float64) (*Area, error) {
	f.calls = append(f.calls, lookupCall{level: level, name: name, parent: parentID})
	if f.err != nil {
		return nil, f.err
	}
	return f.areas[fmt.Sprintf("%d:%s", level, name)], nil
}

type registration struct {
	url      string
	idField  string
	geometry string
}

type fakeSpatial struct {
	key           string
	err           error
	registrations []registration
}

func (f *fakeSpatial) Query(_ context.Context, _ string, _ *Value) ([]Row, error) {
	return nil, nil
}

func (f *fakeSpatial) Register(_ context.Context, url, idField, geometry string) (string, error) {
	f.registrations = append(f.registrations, registration{url: url, idField: idField, geometry: geometry})
	if f.err != nil {
		return "", f.err
	}
	return f.key, nil
}

type fakeRecords struct {
	rows    []Row
	err     error
	queries []map[string]*Value
}

func (f *fakeRecords) Query(_ context.Context, params map[string]*Value) ([]Row, error) {
	f.queries = append(f.queries, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeConstants map[Constant]*Value

func (f fakeConstants) Lookup(name Constant) (*Value, bool) {
	v, ok := f[name]
	return v, ok
}

type fixture struct {
	registry  *fakeRegistry
	areas     *fakeAreas
	spatial   *fakeSpatial
	records   *fakeRecords
	constants fakeConstants
}

func newFixture() *fixture {
	return &fixture{
		registry:  &fakeRegistry{services: map[string]float64{"orders": 7, "couriers": 12}},
		areas:     &fakeAreas{areas: make(map[string]*Area)},
		spatial:   &fakeSpatial{key: "resource:1"},
		records:   &fakeRecords{},
		constants: make(fakeConstants),
	}
}

func (f *fixture) transformer() *Transformer {
	return NewTransformer(f.registry, NewResolver(f.areas), f.spatial, f.records, f.constants)
}

func (f *fixture) transform(statement string) (*TransformResult, error) {
	GinkgoHelper()
	return f.transformer().Transform(context.Background(), parseSelect(statement))
}

func (f *fixture) mustTransform(statement string) *TransformResult {
	GinkgoHelper()
	res, err := f.transform(statement)
	Expect(err).NotTo(HaveOccurred())
	return res
}

func parseFetch(statement string) *FetchStatement {
	GinkgoHelper()
	stmt, err := Parse(statement)
	Expect(err).NotTo(HaveOccurred())
	fetch, ok := stmt.(*FetchStatement)
	Expect(ok).To(BeTrue(), "expected a fetch statement, got %T", stmt)
	return fetch
}

func parseCreate(statement string) *CreateStatement {
	GinkgoHelper()
	stmt, err := Parse(statement)
	Expect(err).NotTo(HaveOccurred())
	create, ok := stmt.(*CreateStatement)
	Expect(ok).To(BeTrue(), "expected a create statement, got %T", stmt)
	return create
}

var _ = Describe("Transformer", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	Describe("select compilation", func() {
		It("renders a bare scan with the default limit", func() {
			res := f.mustTransform("select * from tile38")
			Expect(res.Command).To(Equal("scan limit 100"))
			Expect(res.Backend).To(Equal(TargetSpatial))
			Expect(res.Params).To(BeEmpty())
			Expect(res.Filter).To(BeNil())
		})

		It("fetches the service registry exactly once per compilation", func() {
			f.mustTransform("select * from tile38")
			Expect(f.registry.calls).To(Equal(1))
		})

		It("fetches the registry even when only the record side is addressed", func() {
			f.mustTransform("select * from metabase where status = 'open'")
			Expect(f.registry.calls).To(Equal(1))
		})

		It("renders a verb condition as the command verb with its location", func() {
			res := f.mustTransform("select * from tile38 where nearby = point(33.462, -112.268, 6000)")
			Expect(res.Command).To(Equal("nearby limit 100 point 33.462 -112.268 6000"))
		})

		It("honors an explicit limit", func() {
			res := f.mustTransform("select * from tile38 where within = bounds(10, 10, 20, 20) limit 5")
			Expect(res.Command).To(Equal("within limit 5 bounds 10 10 20 20"))
		})

		It("places an id condition between the verb and the clauses", func() {
			res := f.mustTransform("select * from tile38 where within = bounds(10, 10, 20, 20) and id = 'truck1'")
			Expect(res.Command).To(Equal("within truck1 limit 100 bounds 10 10 20 20"))
		})

		It("maps status names onto their wire codes", func() {
			res := f.mustTransform("select * from tile38 where status in ['created', 'delivered', 'bogus']")
			Expect(res.Command).To(Equal("scan wherein status 2 0 5 limit 100"))
		})

		It("treats a scalar status like a one-element list", func() {
			res := f.mustTransform("select * from tile38 where order_status = 'cancelled'")
			Expect(res.Command).To(Equal("scan wherein order_status 1 6 limit 100"))
		})

		It("renders a generic membership condition as a wherein clause", func() {
			res := f.mustTransform("select * from tile38 where wheels in [4, 6]")
			Expect(res.Command).To(Equal("scan wherein wheels 2 4 6 limit 100"))
		})

		It("keeps the filter out of the command and hands it over verbatim", func() {
			res := f.mustTransform("select * from tile38 where within = bounds(1, 2, 3, 4) and filter = {'kind': 'truck'}")
			Expect(res.Command).To(Equal("within limit 100 bounds 1 2 3 4"))
			Expect(res.Filter).NotTo(BeNil())
			Expect(res.Filter.Type).To(Equal(ValueTypeObject))
			Expect(res.Filter.ToString()).To(Equal(`{"kind":"truck"}`))
		})

		It("renames id to card_id on the record side", func() {
			res := f.mustTransform("select * from metabase where id = 42")
			Expect(res.Backend).To(Equal(TargetRecord))
			Expect(res.Params).To(HaveLen(1))
			Expect(res.Params["card_id"].Number).To(Equal(42.0))
			Expect(res.Command).To(Equal("scan limit 100"))
		})

		DescribeTable("renders numeric comparisons as closed ranges",
			func(condition, clause string) {
				res := f.mustTransform("select * from tile38 where " + condition)
				Expect(res.Command).To(Equal("scan " + clause + " limit 100"))
			},
			Entry("equality", "speed = 30", "where speed 30 30"),
			Entry("greater than", "speed > 30", "where speed 30 +inf"),
			Entry("at least", "speed >= 30", "where speed 29 +inf"),
			Entry("less than", "speed < 30", "where speed -inf 30"),
			Entry("at most", "speed <= 30", "where speed -inf 29"),
		)
	})

	Describe("service clauses", func() {
		It("replaces service names with registry ids in source order", func() {
			res := f.mustTransform("select * from tile38 where service in ['orders', 'couriers']")
			Expect(res.Command).To(Equal("scan wherein service 2 7 12 limit 100"))
		})

		It("skips names the registry does not know", func() {
			res := f.mustTransform("select * from tile38 where service in ['orders', 'ghost']")
			Expect(res.Command).To(Equal("scan wherein service 1 7 limit 100"))
		})

		It("drops the clause when no name resolves", func() {
			res := f.mustTransform("select * from tile38 where service = 'ghost'")
			Expect(res.Command).To(Equal("scan limit 100"))
		})
	})

	Describe("area resolution", func() {
		BeforeEach(func() {
			f.areas.areas["2:Arizona"] = &Area{ID: 4}
			f.areas.areas["3:Phoenix"] = &Area{ID: 9}
			f.areas.areas["4:Downtown"] = &Area{ID: 11}
		})

		It("resolves nested names level by level and renders the deepest id", func() {
			res := f.mustTransform("select * from tile38 where within = get('Arizona', 'Phoenix')")
			Expect(res.Command).To(Equal("within limit 100 get 9"))
			Expect(f.areas.calls).To(HaveLen(2))
			Expect(f.areas.calls[0].level).To(Equal(2))
			Expect(f.areas.calls[0].parent).To(BeNil())
			Expect(f.areas.calls[1].level).To(Equal(3))
			Expect(f.areas.calls[1].parent).NotTo(BeNil())
			Expect(*f.areas.calls[1].parent).To(Equal(4.0))
		})

		It("serves repeated names from the cache", func() {
			tr := f.transformer()
			stmt := parseSelect("select * from tile38 where within = get('Arizona', 'Phoenix')")
			_, err := tr.Transform(context.Background(), stmt)
			Expect(err).NotTo(HaveOccurred())
			_, err = tr.Transform(context.Background(), stmt)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.registry.calls).To(Equal(2))
			Expect(f.areas.calls).To(HaveLen(2))
		})

		It("skips an unresolved middle level and keeps the last resolved parent", func() {
			res := f.mustTransform("select * from tile38 where within = get('Arizona', 'Ghost', 'Downtown')")
			Expect(res.Command).To(Equal("within limit 100 get 11"))
			Expect(f.areas.calls).To(HaveLen(3))
			Expect(f.areas.calls[2].parent).NotTo(BeNil())
			Expect(*f.areas.calls[2].parent).To(Equal(4.0))
		})

		It("drops the location when no name resolves", func() {
			res := f.mustTransform("select * from tile38 where within = get('Nowhere')")
			Expect(res.Command).To(Equal("within limit 100"))
		})

		It("rejects more area names than the hierarchy has levels", func() {
			_, err := f.transform("select * from tile38 where within = get('a', 'b', 'c', 'd')")
			var semErr *SemanticError
			Expect(errors.As(err, &semErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("at most 3 area names"))
			Expect(f.registry.calls).To(BeZero())
		})
	})

	Describe("joins", func() {
		It("replaces joined values with character-code surrogates", func() {
			f.records.rows = []Row{
				{"courier_id": "abc"},
				{"courier_id": 7.0},
				{"notes": "no key"},
			}
			res := f.mustTransform("select * from metabase as m join tile38 as t on t.truck_id = m.courier_id where t.speed > 10 and m.status = 'open'")
			Expect(res.Command).To(Equal("scan where speed 10 +inf wherein truck_id 2 979899 55 limit 100"))
			Expect(res.Backend).To(Equal(TargetRecord))
			Expect(f.records.queries).To(HaveLen(1))
			Expect(f.records.queries[0]).To(HaveKey("status"))
			Expect(res.Params["status"].Str).To(Equal("open"))
		})

		It("accepts the join predicate in either order", func() {
			res := f.mustTransform("select * from metabase as m join tile38 as t on m.courier_id = t.truck_id")
			Expect(res.Command).To(Equal("scan limit 100"))
			Expect(f.records.queries).To(HaveLen(1))
		})

		It("drops the clause when the join yields no usable rows", func() {
			f.records.rows = []Row{{"notes": "no key"}}
			res := f.mustTransform("select * from metabase as m join tile38 as t on t.truck_id = m.courier_id where t.speed > 10")
			Expect(res.Command).To(Equal("scan where speed 10 +inf limit 100"))
		})

		It("rejects a join that stays on one backend", func() {
			_, err := f.transform("select * from tile38 as t join metabase as m on t.a = t.b")
			var semErr *SemanticError
			Expect(errors.As(err, &semErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("join must pair a spatial key with a record key"))
			Expect(f.registry.calls).To(BeZero())
		})
	})

	Describe("dynamic registration", func() {
		It("registers the remaining parameters as a sorted url and targets the key", func() {
			f.spatial.key = "feed:81"
			res := f.mustTransform("select * from url where cast_to = 'http://feed/trucks' and id_field = 'truck_id' and geometry = 'location' and rank = 3 and fleet = 'west'")
			Expect(f.spatial.registrations).To(ConsistOf(registration{
				url:      "http://feed/trucks?fleet=west&rank=3",
				idField:  "truck_id",
				geometry: "location",
			}))
			Expect(res.Command).To(Equal("scan feed:81 limit 100"))
			Expect(res.Backend).To(Equal(TargetRecord))
			Expect(res.Params).To(HaveLen(2))
			Expect(res.Params["fleet"].Str).To(Equal("west"))
			Expect(res.Params["rank"].Number).To(Equal(3.0))
		})

		It("overrides an id target with the registration key", func() {
			f.spatial.key = "feed:9"
			res := f.mustTransform("select * from tile38 where id = 'truck9' and m.cast_to = 'http://feed' and m.id_field = 'tid' and m.geometry = 'loc'")
			Expect(f.spatial.registrations).To(ConsistOf(registration{url: "http://feed", idField: "tid", geometry: "loc"}))
			Expect(res.Command).To(Equal("scan feed:9 limit 100"))
			Expect(res.Backend).To(Equal(TargetSpatial))
		})

		It("fails before any backend call when a companion is missing", func() {
			_, err := f.transform("select * from url where cast_to = 'http://feed' and id_field = 'truck_id'")
			var semErr *SemanticError
			Expect(errors.As(err, &semErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("cast_to requires both id_field and geometry"))
			Expect(f.registry.calls).To(BeZero())
			Expect(f.spatial.registrations).To(BeEmpty())
		})
	})

	Describe("constants", func() {
		It("resolves a session constant into a location", func() {
			f.constants[ConstantCurrentBounds] = parseValue("select * from tile38 where v = bounds(1, 2, 3, 4)")
			res := f.mustTransform("select * from tile38 where within = current_bounds")
			Expect(res.Command).To(Equal("within limit 100 bounds 1 2 3 4"))
		})

		It("keeps the verb and drops the location when the constant has no value", func() {
			res := f.mustTransform("select * from tile38 where within = current_bounds")
			Expect(res.Command).To(Equal("within limit 100"))
		})
	})

	Describe("fetch compilation", func() {
		It("compiles the parameter list for the record service", func() {
			res, err := f.transformer().TransformFetch(parseFetch("fetch metabase(id = 42, status = 'open')"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Backend).To(Equal(TargetRecord))
			Expect(res.Command).To(BeEmpty())
			Expect(res.Params).To(HaveLen(2))
			Expect(res.Params["card_id"].Number).To(Equal(42.0))
			Expect(res.Params["status"].Str).To(Equal("open"))
		})

		It("rejects a spatial database", func() {
			_, err := f.transformer().TransformFetch(parseFetch("fetch tile38(id = 1)"))
			var semErr *SemanticError
			Expect(errors.As(err, &semErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("fetch targets the record service"))
		})
	})

	Describe("create compilation", func() {
		It("renders fields in source order with the location last", func() {
			res, err := f.transformer().TransformCreate(parseCreate("create truck 'truck1' (wheels = 6, name = 'Betsy', location = point(33.4, -112.2))"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Command).To(Equal("set truck truck1 field wheels 6 field name Betsy point 33.4 -112.2"))
			Expect(res.Backend).To(Equal(TargetSpatial))
		})

		It("keeps only the last location-capable value", func() {
			res, err := f.transformer().TransformCreate(parseCreate("create truck 't2' (spot = point(1, 2), area = bounds(1, 2, 3, 4))"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Command).To(Equal("set truck t2 bounds 1 2 3 4"))
		})

		It("renders an object parameter as an object location", func() {
			res, err := f.transformer().TransformCreate(parseCreate("create zone 'z1' (shape = {'type': 'Point'})"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Command).To(Equal(`set zone z1 object {"type":"Point"}`))
		})

		It("works without parameters", func() {
			res, err := f.transformer().TransformCreate(parseCreate("create fleet west"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Command).To(Equal("set fleet west"))
		})

		It("rejects an empty type or name", func() {
			_, err := f.transformer().TransformCreate(&CreateStatement{})
			var semErr *SemanticError
			Expect(errors.As(err, &semErr)).To(BeTrue())
		})
	})

	Describe("failures", func() {
		It("rejects an unknown database before any backend call", func() {
			_, err := f.transform("select * from nowhere")
			var semErr *SemanticError
			Expect(errors.As(err, &semErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(`unknown database "nowhere"`))
			Expect(f.registry.calls).To(BeZero())
		})

		It("aborts when the registry fetch fails", func() {
			f.registry.err = errors.New("registry down")
			_, err := f.transform("select * from tile38")
			Expect(err).To(MatchError("registry down"))
		})

		It("aborts when an area lookup fails", func() {
			f.areas.err = errors.New("areas down")
			_, err := f.transform("select * from tile38 where within = get('Arizona')")
			Expect(err).To(MatchError("areas down"))
		})

		It("aborts when the join fetch fails", func() {
			f.records.err = errors.New("records down")
			_, err := f.transform("select * from metabase as m join tile38 as t on t.truck_id = m.courier_id")
			Expect(err).To(MatchError("records down"))
		})

		It("aborts when the registration call fails", func() {
			f.spatial.err = errors.New("register down")
			_, err := f.transform("select * from url where cast_to = 'http://feed' and id_field = 'a' and geometry = 'b'")
			Expect(err).To(MatchError("register down"))
		})
	})
})
