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
	"sync"

	"github.com/apache/skywalking-kql/pkg/logger"
)

// baseAreaLevel is the administrative level of the first area name in a
// get(...) call.
const baseAreaLevel = 2

type areaKey struct {
	name  string
	level int
}

// Resolver memoizes hierarchical area lookups. Only successful lookups are
// cached, and entries are never evicted, so repeat lookups are served locally.
// Concurrent compilations share one Resolver.
type Resolver struct {
	backend AreaLookup
	l       *logger.Logger
	cache   map[areaKey]*Area
	mu      sync.Mutex
}

// NewResolver returns a Resolver backed by the given lookup.
func NewResolver(backend AreaLookup) *Resolver {
	return &Resolver{
		backend: backend,
		l:       logger.GetLogger("kql", "resolver"),
		cache:   make(map[areaKey]*Area),
	}
}

// Resolve returns the area for (level, name), consulting the cache first. A
// nil area with a nil error means the name did not resolve at that level.
func (r *Resolver) Resolve(ctx context.Context, level int, name string, parent *Area) (*Area, error) {
	key := areaKey{name: name, level: level}
	r.mu.Lock()
	if a, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return a, nil
	}
	r.mu.Unlock()
	var parentID *float64
	if parent != nil {
		parentID = &parent.ID
	}
	a, err := r.backend.Lookup(ctx, level, name, parentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		if e := r.l.Debug(); e.Enabled() {
			e.Int("level", level).Str("name", name).Msg("area did not resolve, skipping")
		}
		return nil, nil
	}
	r.mu.Lock()
	r.cache[key] = a
	r.mu.Unlock()
	return a, nil
}

// ResolveChain resolves a list of nested area names starting at the base
// level, threading the nearest resolved ancestor into each lookup as the
// parent. It returns the deepest area that resolved, or nil when none did.
func (r *Resolver) ResolveChain(ctx context.Context, names []string) (*Area, error) {
	var deepest *Area
	for i, name := range names {
		a, err := r.Resolve(ctx, baseAreaLevel+i, name, deepest)
		if err != nil {
			return nil, err
		}
		if a != nil {
			deepest = a
		}
	}
	return deepest, nil
}
