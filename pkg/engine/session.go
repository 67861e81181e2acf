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

package engine

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/apache/skywalking-kql/pkg/kql"
)

// sessionKey is the config section the session lives under.
const sessionKey = "session"

var _ kql.ConstantSource = (*Session)(nil)

// constantEntries maps each named constant to the session entry backing it.
// The entry carries the constant's own spelling, so staging current_bounds
// through get config is what a later select reads back.
var constantEntries = map[kql.Constant]string{
	kql.ConstantCurrentBounds:   "current_bounds",
	kql.ConstantCurrentPoints:   "current_points",
	kql.ConstantCurrentFeatures: "current_features",
}

// Session holds the configuration entries staged by get config and persisted
// by update config. It also backs the named constants of the language.
type Session struct {
	v       *viper.Viper
	entries map[string]*kql.Value
	mu      sync.Mutex
}

// NewSession loads the session section of the given config. A nil viper
// yields an in-memory session that cannot be persisted.
func NewSession(v *viper.Viper) *Session {
	s := &Session{v: v, entries: make(map[string]*kql.Value)}
	if v != nil {
		for k, raw := range v.GetStringMap(sessionKey) {
			s.entries[k] = kql.ValueFromAny(raw)
		}
	}
	return s
}

// Stage sets one entry. It overwrites any previous value under the name.
func (s *Session) Stage(name string, v *kql.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = v
}

// Lookup implements kql.ConstantSource over the staged entries.
func (s *Session) Lookup(c kql.Constant) (*kql.Value, bool) {
	name, ok := constantEntries[c]
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[name]
	return v, ok
}

// Rows renders the session as name/value rows, sorted by name.
func (s *Session) Rows() []kql.Row {
	s.mu.Lock()
	names := make([]string, 0, len(s.entries))
	for k := range s.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	rows := make([]kql.Row, 0, len(names))
	for _, n := range names {
		rows = append(rows, kql.Row{"name": n, "value": s.entries[n].Interface()})
	}
	s.mu.Unlock()
	return rows
}

// Persist writes the staged entries back to the backing config file.
func (s *Session) Persist() error {
	if s.v == nil {
		return errors.New("no config file backs the session")
	}
	s.mu.Lock()
	plain := make(map[string]any, len(s.entries))
	for k, v := range s.entries {
		plain[k] = v.Interface()
	}
	s.mu.Unlock()
	s.v.Set(sessionKey, plain)
	if err := s.v.WriteConfig(); err != nil {
		return errors.WithMessage(err, "persist session configuration")
	}
	return nil
}
