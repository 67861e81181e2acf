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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Node represents a node in the Abstract Syntax Tree.
type Node interface{}

// Statement represents a KQL statement.
type Statement interface {
	Node
	statementNode()
}

// Expression represents a KQL expression.
type Expression interface {
	Node
	expressionNode()
}

// SelectStatement represents a select query against one of the configured
// databases, optionally joined with a second one.
type SelectStatement struct {
	Database *DatabaseRef `json:"database"`
	Join     *JoinClause  `json:"join,omitempty"`
	Limit    *int         `json:"limit,omitempty"`
	Where    []*Condition `json:"where,omitempty"`
}

func (s *SelectStatement) statementNode() {}

// FetchStatement represents a direct parameterized fetch from a database.
type FetchStatement struct {
	Database   *DatabaseRef `json:"database"`
	Parameters []*Condition `json:"parameters"`
}

func (s *FetchStatement) statementNode() {}

// CreateStatement represents the creation of a named spatial resource.
type CreateStatement struct {
	Type       string       `json:"type"`
	Name       string       `json:"name"`
	Parameters []*Condition `json:"parameters,omitempty"`
}

func (s *CreateStatement) statementNode() {}

// GetConfigStatement stages session configuration entries and echoes the
// session back.
type GetConfigStatement struct {
	Parameters []*Condition `json:"parameters"`
}

func (s *GetConfigStatement) statementNode() {}

// UpdateConfigStatement persists the staged session configuration.
type UpdateConfigStatement struct{}

func (s *UpdateConfigStatement) statementNode() {}

// DatabaseRef names a database, optionally bound to an alias.
type DatabaseRef struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

func (d *DatabaseRef) expressionNode() {}

// Key is a field reference, optionally qualified by a database alias.
type Key struct {
	Alias string `json:"alias,omitempty"`
	Key   string `json:"key"`
}

func (k *Key) expressionNode() {}

func (k *Key) String() string {
	if k.Alias == "" {
		return k.Key
	}
	return k.Alias + "." + k.Key
}

// Condition is a single key-operator-value comparison.
type Condition struct {
	Left     *Key           `json:"left"`
	Right    *Value         `json:"right"`
	Operator BinaryOperator `json:"operator"`
}

func (c *Condition) expressionNode() {}

// JoinClause joins a second database into a select statement.
type JoinClause struct {
	Database *DatabaseRef   `json:"database"`
	On       *JoinCondition `json:"on"`
}

func (j *JoinClause) expressionNode() {}

// JoinCondition is the equality predicate of a join clause.
type JoinCondition struct {
	Left  *Key `json:"left"`
	Right *Key `json:"right"`
}

func (j *JoinCondition) expressionNode() {}

// BinaryOperator is the operator of a condition.
type BinaryOperator int

// BinaryOperator values.
const (
	BinaryOpEqual BinaryOperator = iota
	BinaryOpGreater
	BinaryOpGreaterEqual
	BinaryOpLess
	BinaryOpLessEqual
	BinaryOpIn
	BinaryOpIs
)

func (o BinaryOperator) String() string {
	switch o {
	case BinaryOpEqual:
		return "="
	case BinaryOpGreater:
		return ">"
	case BinaryOpGreaterEqual:
		return ">="
	case BinaryOpLess:
		return "<"
	case BinaryOpLessEqual:
		return "<="
	case BinaryOpIn:
		return "in"
	case BinaryOpIs:
		return "is"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the operator by its source spelling.
func (o BinaryOperator) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// ValueType is the type of a Value.
type ValueType int

// ValueType values.
const (
	ValueTypeNull ValueType = iota
	ValueTypeString
	ValueTypeNumber
	ValueTypeBool
	ValueTypeArray
	ValueTypeObject
	ValueTypeCall
	ValueTypeConstant
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeNull:
		return "null"
	case ValueTypeString:
		return "string"
	case ValueTypeNumber:
		return "number"
	case ValueTypeBool:
		return "bool"
	case ValueTypeArray:
		return "array"
	case ValueTypeObject:
		return "object"
	case ValueTypeCall:
		return "call"
	case ValueTypeConstant:
		return "constant"
	default:
		return "unknown"
	}
}

// Call is a function-style value such as point(33.5, -112.2).
type Call struct {
	Name string
	Args []*Value
}

// Value is a literal on the right-hand side of a condition. Exactly the field
// selected by Type is meaningful.
type Value struct {
	Object   map[string]*Value
	Call     *Call
	Array    []*Value
	Str      string
	Number   float64
	Type     ValueType
	Constant Constant
	Bool     bool
}

func (v *Value) expressionNode() {}

// ToString renders the value as a single command-line argument. Strings are
// rendered without quotes, numbers without a trailing zero fraction, and
// composite values as compact JSON.
func (v *Value) ToString() string {
	switch v.Type {
	case ValueTypeNull:
		return "null"
	case ValueTypeString:
		return v.Str
	case ValueTypeNumber:
		return formatNumber(v.Number)
	case ValueTypeBool:
		return strconv.FormatBool(v.Bool)
	case ValueTypeConstant:
		return v.Constant.String()
	case ValueTypeCall:
		args := make([]string, 0, len(v.Call.Args))
		for _, a := range v.Call.Args {
			args = append(args, a.ToString())
		}
		return fmt.Sprintf("%s(%s)", v.Call.Name, strings.Join(args, ","))
	case ValueTypeArray, ValueTypeObject:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as plain JSON. Calls and constants, which have
// no JSON counterpart, are encoded as their string forms.
func (v *Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case ValueTypeNull:
		return []byte("null"), nil
	case ValueTypeString:
		return json.Marshal(v.Str)
	case ValueTypeNumber:
		return json.Marshal(v.Number)
	case ValueTypeBool:
		return json.Marshal(v.Bool)
	case ValueTypeArray:
		if v.Array == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Array)
	case ValueTypeObject:
		return json.Marshal(v.Object)
	case ValueTypeCall, ValueTypeConstant:
		return json.Marshal(v.ToString())
	default:
		return nil, fmt.Errorf("unknown value type %d", v.Type)
	}
}

// Interface converts the value to the equivalent plain Go value, suitable for
// handing to encoders that do not know about Value.
func (v *Value) Interface() any {
	switch v.Type {
	case ValueTypeNull:
		return nil
	case ValueTypeString:
		return v.Str
	case ValueTypeNumber:
		return v.Number
	case ValueTypeBool:
		return v.Bool
	case ValueTypeArray:
		out := make([]any, 0, len(v.Array))
		for _, e := range v.Array {
			out = append(out, e.Interface())
		}
		return out
	case ValueTypeObject:
		out := make(map[string]any, len(v.Object))
		for k, e := range v.Object {
			out[k] = e.Interface()
		}
		return out
	default:
		return v.ToString()
	}
}

// ValueFromAny converts a plain Go value, typically decoded from JSON or YAML,
// into a Value. Unrecognized types are rendered through fmt as strings.
func ValueFromAny(raw any) *Value {
	switch rv := raw.(type) {
	case nil:
		return &Value{Type: ValueTypeNull}
	case bool:
		return &Value{Type: ValueTypeBool, Bool: rv}
	case string:
		return &Value{Type: ValueTypeString, Str: rv}
	case float64:
		return &Value{Type: ValueTypeNumber, Number: rv}
	case float32:
		return &Value{Type: ValueTypeNumber, Number: float64(rv)}
	case int:
		return &Value{Type: ValueTypeNumber, Number: float64(rv)}
	case int64:
		return &Value{Type: ValueTypeNumber, Number: float64(rv)}
	case json.Number:
		n, err := rv.Float64()
		if err != nil {
			return &Value{Type: ValueTypeString, Str: rv.String()}
		}
		return &Value{Type: ValueTypeNumber, Number: n}
	case []any:
		arr := make([]*Value, 0, len(rv))
		for _, e := range rv {
			arr = append(arr, ValueFromAny(e))
		}
		return &Value{Type: ValueTypeArray, Array: arr}
	case map[string]any:
		obj := make(map[string]*Value, len(rv))
		for k, e := range rv {
			obj[k] = ValueFromAny(e)
		}
		return &Value{Type: ValueTypeObject, Object: obj}
	default:
		return &Value{Type: ValueTypeString, Str: fmt.Sprintf("%v", raw)}
	}
}

// Constant is a named constant resolved from the session at compile time.
type Constant int

// Constant values.
const (
	ConstantCurrentBounds Constant = iota
	ConstantCurrentPoints
	ConstantCurrentFeatures
)

func (c Constant) String() string {
	switch c {
	case ConstantCurrentBounds:
		return "current_bounds"
	case ConstantCurrentPoints:
		return "current_points"
	case ConstantCurrentFeatures:
		return "current_features"
	default:
		return "unknown"
	}
}

// ConstantFromName maps a bare word to a named constant. The match is
// case-insensitive.
func ConstantFromName(name string) (Constant, bool) {
	switch strings.ToLower(name) {
	case "current_bounds":
		return ConstantCurrentBounds, true
	case "current_points":
		return ConstantCurrentPoints, true
	case "current_features":
		return ConstantCurrentFeatures, true
	default:
		return 0, false
	}
}

// formatNumber renders a float without a trailing zero fraction, so integral
// numbers keep their integral spelling.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
