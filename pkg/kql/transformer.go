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

package kql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/skywalking-kql/pkg/logger"
)

// Transformer compiles statements into backend query forms. One Transformer
// serves many compilations; the resolver cache is the only shared state.
type Transformer struct {
	registry  ServiceRegistry
	resolver  *Resolver
	spatial   SpatialEngine
	records   RecordService
	constants ConstantSource
	l         *logger.Logger
}

// NewTransformer wires a Transformer to its collaborators. constants may be
// nil when no session backs the compilation.
func NewTransformer(registry ServiceRegistry, resolver *Resolver, spatial SpatialEngine, records RecordService, constants ConstantSource) *Transformer {
	return &Transformer{
		registry:  registry,
		resolver:  resolver,
		spatial:   spatial,
		records:   records,
		constants: constants,
		l:         logger.GetLogger("kql", "transformer"),
	}
}

// TransformResult is the compiled form of a statement. Exactly one backend,
// named by Backend, receives it: the spatial engine gets Command and Filter,
// the record service gets Params.
type TransformResult struct {
	Params  map[string]*Value
	Filter  *Value
	Command string
	Backend TargetBackend
}

// Transform compiles a select statement. It runs the planning stage, then the
// dependent remote stages in their fixed order: registry fetch, hierarchical
// area resolution, join fetch, and resource registration. A failed remote
// call aborts the remaining stages; earlier calls are not rolled back.
func (t *Transformer) Transform(ctx context.Context, stmt *SelectStatement) (*TransformResult, error) {
	plan, err := newSelectPlan(stmt, t.constants, t.l)
	if err != nil {
		return nil, err
	}

	services, err := t.registry.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	plan.applyServices(services)

	if loc := plan.spatial.location; loc != nil && len(loc.areas) > 0 {
		area, rerr := t.resolver.ResolveChain(ctx, loc.areas)
		if rerr != nil {
			return nil, rerr
		}
		if area != nil {
			loc.args = []string{formatNumber(area.ID)}
		}
	}

	if plan.join != nil {
		rows, jerr := t.records.Query(ctx, plan.record.params)
		if jerr != nil {
			return nil, jerr
		}
		plan.applyJoinRows(rows)
	}

	if plan.register != nil {
		key, rerr := t.spatial.Register(ctx, plan.register.url(plan.record.params), plan.register.idField, plan.register.geometry)
		if rerr != nil {
			return nil, rerr
		}
		plan.spatial.targetID = key
	}

	res := &TransformResult{
		Params:  plan.record.params,
		Filter:  plan.spatial.filter,
		Command: plan.spatial.renderCommand(),
		Backend: plan.backend,
	}
	if e := t.l.Debug(); e.Enabled() {
		e.Stringer("backend", res.Backend).Str("command", res.Command).Int("params", len(res.Params)).Msg("compiled select statement")
	}
	return res, nil
}

// TransformFetch compiles a fetch statement. Fetch addresses the record
// service only; no remote call is needed to compile it.
func (t *Transformer) TransformFetch(stmt *FetchStatement) (*TransformResult, error) {
	backend, err := BackendForDatabase(stmt.Database.Name)
	if err != nil {
		return nil, err
	}
	if backend != TargetRecord {
		return nil, semanticErrorf("fetch targets the record service, database %q is spatial", stmt.Database.Name)
	}
	return &TransformResult{
		Params:  t.recordParams(stmt.Parameters),
		Backend: TargetRecord,
	}, nil
}

// TransformCreate compiles a create statement into a spatial set command.
// Scalar parameters become field pairs in source order and the last
// location-capable value becomes the trailing location section.
func (t *Transformer) TransformCreate(stmt *CreateStatement) (*TransformResult, error) {
	if stmt.Type == "" || stmt.Name == "" {
		return nil, semanticErrorf("create requires a type and a name")
	}
	p := &selectPlan{constants: t.constants, l: t.l}
	parts := []string{"set", stmt.Type, stmt.Name}
	var location []string
	for _, cond := range stmt.Parameters {
		v := p.resolveValue(cond.Right)
		if v == nil {
			continue
		}
		switch {
		case v.Type == ValueTypeCall && (v.Call.Name == "point" || v.Call.Name == "bounds"):
			location = location[:0]
			location = append(location, v.Call.Name)
			for _, a := range v.Call.Args {
				location = append(location, a.ToString())
			}
		case v.Type == ValueTypeObject:
			location = []string{"object", v.ToString()}
		case v.Type == ValueTypeCall || v.Type == ValueTypeArray:
			if e := t.l.Debug(); e.Enabled() {
				e.Str("key", cond.Left.Key).Str("type", v.Type.String()).Msg("value has no field rendering, skipping")
			}
		default:
			parts = append(parts, "field", cond.Left.Key, v.ToString())
		}
	}
	parts = append(parts, location...)
	res := &TransformResult{
		Command: strings.Join(parts, " "),
		Backend: TargetSpatial,
	}
	if e := t.l.Debug(); e.Enabled() {
		e.Str("command", res.Command).Msg("compiled create statement")
	}
	return res, nil
}

// recordParams builds a record-service parameter map out of a condition list,
// outside any select plan. Fetch and the config statements share it.
func (t *Transformer) recordParams(conds []*Condition) map[string]*Value {
	p := &selectPlan{constants: t.constants, l: t.l, record: recordPlan{params: make(map[string]*Value)}}
	for _, cond := range conds {
		p.applyRecord(cond)
	}
	return p.record.params
}

// applyServices fills the pending service clauses with registry ids. Names
// the registry does not know are skipped; a clause with no resolved id at all
// is dropped from the command.
func (p *selectPlan) applyServices(ids map[string]float64) {
	for _, c := range p.spatial.clauses {
		if c.pending == nil {
			continue
		}
		for _, name := range c.pending {
			id, ok := ids[name]
			if !ok {
				if e := p.l.Debug(); e.Enabled() {
					e.Str("service", name).Msg("service not in registry, skipping")
				}
				continue
			}
			c.values = append(c.values, formatNumber(id))
		}
		c.omitted = len(c.values) == 0
	}
}

// applyJoinRows turns the joined rows into a trailing wherein clause over the
// spatial side's join key. Each row's join value is replaced by a numeric
// surrogate built from its character codes.
func (p *selectPlan) applyJoinRows(rows []Row) {
	clause := &spatialClause{kind: clauseWherein, field: p.join.spatialKey}
	for _, row := range rows {
		raw, ok := row[p.join.recordKey]
		if !ok {
			continue
		}
		clause.values = append(clause.values, charCodeSurrogate(stringifyCell(raw)))
	}
	clause.omitted = len(clause.values) == 0
	if clause.omitted {
		if e := p.l.Debug(); e.Enabled() {
			e.Str("key", p.join.spatialKey).Msg("join produced no rows, dropping clause")
		}
	}
	p.spatial.clauses = append(p.spatial.clauses, clause)
}

// charCodeSurrogate renders a string as the concatenation of the decimal
// codes of its characters, e.g. abc becomes 979899. The result can exceed any
// integer range, so it stays a string.
func charCodeSurrogate(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		b.WriteString(strconv.Itoa(int(r)))
	}
	return b.String()
}

// stringifyCell renders a row cell the way its JSON source spells it.
func stringifyCell(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64:
		return formatNumber(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
