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

// Package logger wraps rs/zerolog with a module tag naming the scope
// that emitted each log event.
package logger

import (
	"strings"

	"github.com/rs/zerolog"
)

// rootName is the module tag of the root logger.
const rootName = "root"

// Logging is the config info.
type Logging struct {
	Env     string
	Level   string
	Modules []string
	Levels  []string
}

// Logger is a rs/zerolog logger bound to a module tag.
type Logger struct {
	*zerolog.Logger
	modules map[string]zerolog.Level
	module  string
}

// Module returns logger's module name.
func (l Logger) Module() string {
	return l.module
}

// Named derives a sub logger whose module tag extends the receiver's.
// A level configured for the new tag or any of its ancestors overrides
// the root level. The deepest configured ancestor wins.
func (l *Logger) Named(name ...string) *Logger {
	parts := name
	if l.module != rootName {
		parts = append([]string{l.module}, name...)
	}
	module := strings.ToUpper(strings.Join(parts, "."))
	level := l.GetLevel()
	matched := -1
	for prefix, overridden := range l.modules {
		if len(prefix) <= matched {
			continue
		}
		if module == prefix || strings.HasPrefix(module, prefix+".") {
			matched = len(prefix)
			level = overridden
		}
	}
	sub := root.l.With().Str("module", module).Logger().Level(level)
	return &Logger{module: module, modules: l.modules, Logger: &sub}
}
