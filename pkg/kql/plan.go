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
	"net/url"
	"strconv"
	"strings"

	"github.com/apache/skywalking-kql/pkg/logger"
)

const (
	defaultLimit = 100

	// recordIDParam is the record-service parameter an id condition is
	// renamed to.
	recordIDParam = "card_id"

	castToParam   = "cast_to"
	idFieldParam  = "id_field"
	geometryParam = "geometry"

	maxAreaLevels = 3
)

// selectPlan is the pure outcome of planning a select statement. It holds
// everything later pipeline stages need, with slots left open for remotely
// resolved data: service ids, area ids, join surrogates, and the registration
// key.
type selectPlan struct {
	constants ConstantSource
	l         *logger.Logger
	primary   *DatabaseRef
	joined    *DatabaseRef
	join      *joinPlan
	register  *registerPlan
	record    recordPlan
	spatial   spatialPlan
	backend   TargetBackend
}

type spatialPlan struct {
	location *locationPlan
	filter   *Value
	verb     string
	targetID string
	clauses  []*spatialClause
	limit    int
}

type recordPlan struct {
	params map[string]*Value
}

type joinPlan struct {
	spatialKey string
	recordKey  string
}

type registerPlan struct {
	castTo   string
	idField  string
	geometry string
}

// url serializes the remaining record parameters onto the cast_to base. Keys
// are encoded in sorted order, so the result is deterministic.
func (rp *registerPlan) url(params map[string]*Value) string {
	if len(params) == 0 {
		return rp.castTo
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v.ToString())
	}
	return rp.castTo + "?" + q.Encode()
}

// locationPlan is the trailing location section of a spatial command. For a
// hierarchical get the area names wait for resolution and args stays empty
// until then.
type locationPlan struct {
	verb  string
	args  []string
	areas []string
}

type clauseKind int

const (
	clauseWherein clauseKind = iota
	clauseRange
)

// spatialClause is one rendered condition of a spatial command. A clause with
// pending service names receives its values in the registry stage; omitted
// marks a clause that resolved to nothing and is skipped when rendering.
type spatialClause struct {
	field   string
	values  []string
	pending []string
	kind    clauseKind
	omitted bool
}

func (c *spatialClause) render() string {
	if c.kind == clauseRange {
		return strings.Join([]string{"where", c.field, c.values[0], c.values[1]}, " ")
	}
	parts := make([]string, 0, len(c.values)+3)
	parts = append(parts, "wherein", c.field, strconv.Itoa(len(c.values)))
	parts = append(parts, c.values...)
	return strings.Join(parts, " ")
}

// fieldClass enumerates the spatial-side rendering behaviors.
type fieldClass int

const (
	fieldVerb fieldClass = iota
	fieldID
	fieldStatus
	fieldService
	fieldFilter
	fieldGeneric
)

func classifyField(key string) fieldClass {
	switch {
	case spatialVerbs[key]:
		return fieldVerb
	case key == "id":
		return fieldID
	case key == "status" || key == "order_status":
		return fieldStatus
	case key == "service":
		return fieldService
	case key == "filter":
		return fieldFilter
	default:
		return fieldGeneric
	}
}

// spatialHandlers is the closed dispatch table from field class to the
// renderer applying the condition to the plan.
var spatialHandlers = map[fieldClass]func(*selectPlan, *Condition) error{
	fieldVerb:    (*selectPlan).applyVerb,
	fieldID:      (*selectPlan).applyTargetID,
	fieldStatus:  (*selectPlan).applyStatus,
	fieldService: (*selectPlan).applyService,
	fieldFilter:  (*selectPlan).applyFilter,
	fieldGeneric: (*selectPlan).applyGeneric,
}

// newSelectPlan runs the pure planning stage. It validates database names and
// the cast_to companions, dispatches every condition to one side, and returns
// a plan ready for the remote stages. No remote call happens here.
func newSelectPlan(stmt *SelectStatement, constants ConstantSource, l *logger.Logger) (*selectPlan, error) {
	backend, err := BackendForDatabase(stmt.Database.Name)
	if err != nil {
		return nil, err
	}
	p := &selectPlan{
		constants: constants,
		l:         l,
		primary:   stmt.Database,
		backend:   backend,
		record:    recordPlan{params: make(map[string]*Value)},
		spatial:   spatialPlan{verb: "scan", limit: defaultLimit},
	}
	if stmt.Limit != nil {
		p.spatial.limit = *stmt.Limit
	}
	if stmt.Join != nil {
		if _, err = BackendForDatabase(stmt.Join.Database.Name); err != nil {
			return nil, err
		}
		p.joined = stmt.Join.Database
	}
	for _, cond := range stmt.Where {
		if err = p.applyCondition(cond); err != nil {
			return nil, err
		}
	}
	if stmt.Join != nil {
		if p.join, err = p.planJoin(stmt.Join); err != nil {
			return nil, err
		}
	}
	if err = p.extractRegistration(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *selectPlan) applyCondition(cond *Condition) error {
	if p.backendForKey(cond.Left) == TargetSpatial || spatialVerbs[cond.Left.Key] {
		return spatialHandlers[classifyField(cond.Left.Key)](p, cond)
	}
	p.applyRecord(cond)
	return nil
}

// backendForKey resolves a condition key to the backend it addresses: the
// declared alias of either database, a database name used directly as a
// qualifier, or the primary database when the key is unqualified.
func (p *selectPlan) backendForKey(k *Key) TargetBackend {
	alias := k.Alias
	if alias == "" {
		return p.backend
	}
	if p.primary.Alias != "" && alias == p.primary.Alias {
		return p.backend
	}
	if p.joined != nil {
		if alias == p.joined.Alias || strings.EqualFold(alias, p.joined.Name) {
			b, err := BackendForDatabase(p.joined.Name)
			if err == nil {
				return b
			}
		}
	}
	if b, err := BackendForDatabase(alias); err == nil {
		return b
	}
	return TargetRecord
}

// resolveValue replaces a named constant with its session value. A constant
// without a session entry resolves to nothing and the caller skips the
// condition.
func (p *selectPlan) resolveValue(v *Value) *Value {
	if v == nil || v.Type != ValueTypeConstant {
		return v
	}
	if p.constants != nil {
		if rv, ok := p.constants.Lookup(v.Constant); ok {
			return rv
		}
	}
	if e := p.l.Debug(); e.Enabled() {
		e.Str("constant", v.Constant.String()).Msg("constant has no session value, skipping")
	}
	return nil
}

func (p *selectPlan) applyVerb(cond *Condition) error {
	p.spatial.verb = cond.Left.Key
	v := p.resolveValue(cond.Right)
	if v == nil {
		return nil
	}
	switch {
	case v.Type == ValueTypeCall && (v.Call.Name == "point" || v.Call.Name == "bounds"):
		loc := &locationPlan{verb: v.Call.Name}
		for _, a := range v.Call.Args {
			loc.args = append(loc.args, a.ToString())
		}
		p.spatial.location = loc
	case v.Type == ValueTypeCall && v.Call.Name == "get":
		if len(v.Call.Args) > maxAreaLevels {
			return semanticErrorf("get() accepts at most %d area names, got %d", maxAreaLevels, len(v.Call.Args))
		}
		loc := &locationPlan{verb: "get"}
		for _, a := range v.Call.Args {
			loc.areas = append(loc.areas, a.ToString())
		}
		p.spatial.location = loc
	case v.Type == ValueTypeObject:
		p.spatial.location = &locationPlan{verb: "object", args: []string{v.ToString()}}
	default:
		if e := p.l.Debug(); e.Enabled() {
			e.Str("key", cond.Left.Key).Str("type", v.Type.String()).Msg("value cannot become a location, skipping")
		}
	}
	return nil
}

func (p *selectPlan) applyTargetID(cond *Condition) error {
	if v := p.resolveValue(cond.Right); v != nil {
		p.spatial.targetID = v.ToString()
	}
	return nil
}

func (p *selectPlan) applyStatus(cond *Condition) error {
	v := p.resolveValue(cond.Right)
	if v == nil {
		return nil
	}
	clause := &spatialClause{kind: clauseWherein, field: cond.Left.Key}
	for _, e := range elementsOf(v) {
		name := e.ToString()
		code, ok := orderStatuses[strings.ToLower(name)]
		if !ok {
			if ev := p.l.Debug(); ev.Enabled() {
				ev.Str("status", name).Msg("unknown status name, skipping")
			}
			continue
		}
		clause.values = append(clause.values, strconv.Itoa(code))
	}
	clause.omitted = len(clause.values) == 0
	p.spatial.clauses = append(p.spatial.clauses, clause)
	return nil
}

func (p *selectPlan) applyService(cond *Condition) error {
	v := p.resolveValue(cond.Right)
	if v == nil {
		return nil
	}
	clause := &spatialClause{kind: clauseWherein, field: cond.Left.Key}
	for _, e := range elementsOf(v) {
		clause.pending = append(clause.pending, e.ToString())
	}
	p.spatial.clauses = append(p.spatial.clauses, clause)
	return nil
}

func (p *selectPlan) applyFilter(cond *Condition) error {
	p.spatial.filter = cond.Right
	return nil
}

func (p *selectPlan) applyGeneric(cond *Condition) error {
	v := p.resolveValue(cond.Right)
	if v == nil {
		return nil
	}
	switch v.Type {
	case ValueTypeArray:
		clause := &spatialClause{kind: clauseWherein, field: cond.Left.Key}
		for _, e := range v.Array {
			clause.values = append(clause.values, e.ToString())
		}
		p.spatial.clauses = append(p.spatial.clauses, clause)
	case ValueTypeNumber:
		if clause := rangeClause(cond.Left.Key, cond.Operator, v.Number); clause != nil {
			p.spatial.clauses = append(p.spatial.clauses, clause)
		} else if e := p.l.Debug(); e.Enabled() {
			e.Str("key", cond.Left.Key).Str("operator", cond.Operator.String()).Msg("operator has no range form, skipping")
		}
	default:
		if e := p.l.Debug(); e.Enabled() {
			e.Str("key", cond.Left.Key).Str("type", v.Type.String()).Msg("value has no spatial rendering, skipping")
		}
	}
	return nil
}

// rangeClause renders a numeric comparison as a closed range. The inclusive
// bounds of >= and <= are produced by decrementing, which assumes an integer
// domain; the backend relies on this exact spelling.
func rangeClause(field string, op BinaryOperator, v float64) *spatialClause {
	var minVal, maxVal string
	switch op {
	case BinaryOpEqual:
		minVal, maxVal = formatNumber(v), formatNumber(v)
	case BinaryOpGreater:
		minVal, maxVal = formatNumber(v), "+inf"
	case BinaryOpGreaterEqual:
		minVal, maxVal = formatNumber(v-1), "+inf"
	case BinaryOpLess:
		minVal, maxVal = "-inf", formatNumber(v)
	case BinaryOpLessEqual:
		minVal, maxVal = "-inf", formatNumber(v-1)
	default:
		return nil
	}
	return &spatialClause{kind: clauseRange, field: field, values: []string{minVal, maxVal}}
}

func (p *selectPlan) applyRecord(cond *Condition) {
	v := p.resolveValue(cond.Right)
	if v == nil {
		return
	}
	key := cond.Left.Key
	if key == "id" {
		key = recordIDParam
	}
	p.record.params[key] = v
}

// planJoin validates the join predicate and fixes which side of it belongs to
// which backend.
func (p *selectPlan) planJoin(join *JoinClause) (*joinPlan, error) {
	left := p.backendForKey(join.On.Left)
	right := p.backendForKey(join.On.Right)
	switch {
	case left == TargetSpatial && right == TargetRecord:
		return &joinPlan{spatialKey: join.On.Left.Key, recordKey: join.On.Right.Key}, nil
	case left == TargetRecord && right == TargetSpatial:
		return &joinPlan{spatialKey: join.On.Right.Key, recordKey: join.On.Left.Key}, nil
	default:
		return nil, semanticErrorf("join must pair a spatial key with a record key, got %s and %s", join.On.Left, join.On.Right)
	}
}

// extractRegistration pulls cast_to and its mandatory companions out of the
// record parameters. Missing companions fail the whole compilation here,
// before any remote call.
func (p *selectPlan) extractRegistration() error {
	castTo, ok := p.record.params[castToParam]
	if !ok {
		return nil
	}
	idField, okID := p.record.params[idFieldParam]
	geometry, okGeom := p.record.params[geometryParam]
	if !okID || !okGeom {
		return semanticErrorf("%s requires both %s and %s parameters", castToParam, idFieldParam, geometryParam)
	}
	p.register = &registerPlan{
		castTo:   castTo.ToString(),
		idField:  idField.ToString(),
		geometry: geometry.ToString(),
	}
	delete(p.record.params, castToParam)
	delete(p.record.params, idFieldParam)
	delete(p.record.params, geometryParam)
	return nil
}

// elementsOf views a value as a list: arrays yield their elements, any other
// value yields itself.
func elementsOf(v *Value) []*Value {
	if v.Type == ValueTypeArray {
		return v.Array
	}
	return []*Value{v}
}

// renderCommand assembles the final spatial command line.
func (p *spatialPlan) renderCommand() string {
	parts := make([]string, 0, len(p.clauses)+8)
	parts = append(parts, p.verb)
	if p.targetID != "" {
		parts = append(parts, p.targetID)
	}
	for _, c := range p.clauses {
		if c.omitted {
			continue
		}
		parts = append(parts, c.render())
	}
	parts = append(parts, "limit", strconv.Itoa(p.limit))
	if loc := p.location; loc != nil && len(loc.args) > 0 {
		parts = append(parts, loc.verb)
		parts = append(parts, loc.args...)
	}
	return strings.Join(parts, " ")
}
