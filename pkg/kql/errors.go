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
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"
)

// ParseError reports input the grammar could not match. Pos points at the
// offending token and Expected lists what the parser would have accepted
// there, when known.
type ParseError struct {
	Message  string
	Expected string
	Pos      lexer.Position
}

func (e *ParseError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("parse error at %d:%d: %s (expected %s)", e.Pos.Line, e.Pos.Column, e.Message, e.Expected)
	}
	return fmt.Sprintf("parse error at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// SemanticError reports a statement that parsed but cannot be compiled, such
// as a cast_to without its companion parameters or an unknown database name.
type SemanticError struct {
	Msg string
}

func (e *SemanticError) Error() string {
	return "semantic error: " + e.Msg
}

func semanticErrorf(format string, args ...any) *SemanticError {
	return &SemanticError{Msg: fmt.Sprintf(format, args...)}
}

// BackendError reports a failed call to one of the backing systems. The
// compiler propagates it as-is, partial results are never produced.
type BackendError struct {
	Err    error
	System string
	Op     string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.System, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
