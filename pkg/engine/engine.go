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

// Package engine executes KQL statements end to end: parse, compile, then
// query the one backend the statement addresses.
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/apache/skywalking-kql/pkg/kql"
	"github.com/apache/skywalking-kql/pkg/logger"
)

// Engine runs statements against the configured backends.
type Engine struct {
	transformer *kql.Transformer
	spatial     kql.SpatialEngine
	records     kql.RecordService
	session     *Session
	l           *logger.Logger
}

// New wires an Engine. The session is shared with the transformer's constant
// source so that staged configuration is visible to compilations.
func New(transformer *kql.Transformer, spatial kql.SpatialEngine, records kql.RecordService, session *Session) *Engine {
	return &Engine{
		transformer: transformer,
		spatial:     spatial,
		records:     records,
		session:     session,
		l:           logger.GetLogger("engine"),
	}
}

// Result is the outcome of executing one statement. Command and Backend
// describe the compiled query for select, fetch and create; the config
// statements only fill Rows.
type Result struct {
	Command string
	QueryID string
	Rows    []kql.Row
	Backend kql.TargetBackend
}

// Execute parses and runs a single statement.
func (e *Engine) Execute(ctx context.Context, statement string) (*Result, error) {
	stmt, err := kql.Parse(statement)
	if err != nil {
		return nil, err
	}
	qid := uuid.NewString()
	switch s := stmt.(type) {
	case *kql.SelectStatement:
		res, terr := e.transformer.Transform(ctx, s)
		if terr != nil {
			return nil, terr
		}
		return e.dispatch(ctx, qid, res)
	case *kql.FetchStatement:
		res, terr := e.transformer.TransformFetch(s)
		if terr != nil {
			return nil, terr
		}
		return e.dispatch(ctx, qid, res)
	case *kql.CreateStatement:
		res, terr := e.transformer.TransformCreate(s)
		if terr != nil {
			return nil, terr
		}
		return e.dispatch(ctx, qid, res)
	case *kql.GetConfigStatement:
		return e.stageConfig(qid, s)
	case *kql.UpdateConfigStatement:
		return e.persistConfig(qid)
	default:
		return nil, errors.Errorf("unsupported statement type %T", stmt)
	}
}

// dispatch issues the compiled query to exactly one backend.
func (e *Engine) dispatch(ctx context.Context, qid string, res *kql.TransformResult) (*Result, error) {
	var rows []kql.Row
	var err error
	switch res.Backend {
	case kql.TargetSpatial:
		rows, err = e.spatial.Query(ctx, res.Command, res.Filter)
	case kql.TargetRecord:
		rows, err = e.records.Query(ctx, res.Params)
	default:
		return nil, errors.Errorf("unsupported backend %s", res.Backend)
	}
	if err != nil {
		return nil, err
	}
	if ev := e.l.Debug(); ev.Enabled() {
		ev.Str("query", qid).Stringer("backend", res.Backend).Str("command", res.Command).Int("rows", len(rows)).Msg("statement executed")
	}
	return &Result{
		Command: res.Command,
		QueryID: qid,
		Rows:    rows,
		Backend: res.Backend,
	}, nil
}

func (e *Engine) stageConfig(qid string, stmt *kql.GetConfigStatement) (*Result, error) {
	if e.session == nil {
		return nil, errors.New("no session to stage configuration in")
	}
	for _, cond := range stmt.Parameters {
		e.session.Stage(cond.Left.Key, cond.Right)
	}
	return &Result{QueryID: qid, Rows: e.session.Rows()}, nil
}

func (e *Engine) persistConfig(qid string) (*Result, error) {
	if e.session == nil {
		return nil, errors.New("no session to persist")
	}
	if err := e.session.Persist(); err != nil {
		return nil, err
	}
	if ev := e.l.Debug(); ev.Enabled() {
		ev.Str("query", qid).Msg("session configuration persisted")
	}
	return &Result{QueryID: qid, Rows: e.session.Rows()}, nil
}
