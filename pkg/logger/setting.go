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

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var root = rootLogger{}

// rootLogger builds a default logger lazily so packages can log before
// Init runs, while Init can still replace the default with user config.
type rootLogger struct {
	done uint32
	m    sync.Mutex
	l    *Logger
}

func (rl *rootLogger) verify() {
	if atomic.LoadUint32(&rl.done) == 1 {
		return
	}
	rl.m.Lock()
	defer rl.m.Unlock()
	if rl.done == 0 {
		l, err := newRoot(Logging{Env: "prod", Level: "info"})
		if err != nil {
			panic(err)
		}
		rl.l = l
		atomic.StoreUint32(&rl.done, 1)
	}
}

func (rl *rootLogger) set(cfg Logging) error {
	rl.m.Lock()
	defer rl.m.Unlock()
	l, err := newRoot(cfg)
	if err != nil {
		return err
	}
	rl.l = l
	atomic.StoreUint32(&rl.done, 1)
	return nil
}

// GetLogger return logger with a scope
func GetLogger(scope ...string) *Logger {
	root.verify()
	if len(scope) < 1 {
		return root.l
	}
	return root.l.Named(scope...)
}

// Init initializes the root logger from user config
func Init(cfg Logging) error {
	return root.set(cfg)
}

// newRoot builds a root logger. Query results print to stdout, so log
// events keep to stderr.
func newRoot(cfg Logging) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if len(cfg.Levels) < len(cfg.Modules) {
		return nil, fmt.Errorf("%d modules configured but only %d levels", len(cfg.Modules), len(cfg.Levels))
	}
	modules := make(map[string]zerolog.Level, len(cfg.Modules))
	for i, m := range cfg.Modules {
		ml, perr := zerolog.ParseLevel(cfg.Levels[i])
		if perr != nil {
			return nil, perr
		}
		modules[strings.ToUpper(m)] = ml
	}
	var w io.Writer = os.Stderr
	if cfg.Env == "dev" {
		w = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-5s|", i))
			},
		}
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &Logger{module: rootName, modules: modules, Logger: &l}, nil
}
