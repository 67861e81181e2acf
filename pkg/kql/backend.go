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
	"strings"
)

// Row is a single result row as returned by a backend.
type Row map[string]any

// TargetBackend identifies which backend a statement or condition addresses.
type TargetBackend int

// TargetBackend values.
const (
	TargetSpatial TargetBackend = iota
	TargetRecord
)

func (t TargetBackend) String() string {
	switch t {
	case TargetSpatial:
		return "spatial"
	case TargetRecord:
		return "record"
	default:
		return "unknown"
	}
}

// databaseBackends is the closed set of database names a statement may
// address. Names are matched case-insensitively.
var databaseBackends = map[string]TargetBackend{
	"t":        TargetSpatial,
	"tile38":   TargetSpatial,
	"m":        TargetRecord,
	"metabase": TargetRecord,
	"u":        TargetRecord,
	"url":      TargetRecord,
}

// BackendForDatabase resolves a database name to its backend. An unknown name
// yields a *SemanticError.
func BackendForDatabase(name string) (TargetBackend, error) {
	if b, ok := databaseBackends[strings.ToLower(name)]; ok {
		return b, nil
	}
	return 0, semanticErrorf("unknown database %q", name)
}

// spatialVerbs are the condition keys that select the spatial command verb.
var spatialVerbs = map[string]bool{
	"within":     true,
	"nearby":     true,
	"scan":       true,
	"intersects": true,
	"search":     true,
}

// orderStatuses maps delivery status names to their wire codes.
var orderStatuses = map[string]int{
	"created":    0,
	"accepted":   1,
	"assigned":   2,
	"picked_up":  3,
	"in_transit": 4,
	"delivered":  5,
	"cancelled":  6,
}

// Area is a resolved administrative area.
type Area struct {
	Geometry string
	ID       float64
}

// ServiceRegistry lists the known services and their numeric identifiers.
type ServiceRegistry interface {
	FetchAll(ctx context.Context) (map[string]float64, error)
}

// AreaLookup resolves one administrative area name at one level. A nil area
// with a nil error means the name did not resolve at that level.
type AreaLookup interface {
	Lookup(ctx context.Context, level int, name string, parentID *float64) (*Area, error)
}

// SpatialEngine runs compiled commands against the spatial store and
// registers external resources with it.
type SpatialEngine interface {
	Query(ctx context.Context, command string, filter *Value) ([]Row, error)
	Register(ctx context.Context, url, idField, geometry string) (string, error)
}

// RecordService runs parameterized record queries.
type RecordService interface {
	Query(ctx context.Context, params map[string]*Value) ([]Row, error)
}

// ConstantSource resolves named constants from the ambient session.
type ConstantSource interface {
	Lookup(name Constant) (*Value, bool)
}
