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
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Grammar is the root of the KQL grammar. The alternatives are tried in
// order, so a statement starting with fetch never reaches the select branch.
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type Grammar struct {
	Fetch        *GrammarFetchStatement        `parser:"  @@"`
	Select       *GrammarSelectStatement       `parser:"| @@"`
	Create       *GrammarCreateStatement       `parser:"| @@"`
	GetConfig    *GrammarGetConfigStatement    `parser:"| @@"`
	UpdateConfig *GrammarUpdateConfigStatement `parser:"| @@"`
}

func (g *Grammar) toAST() (Statement, error) {
	switch {
	case g.Fetch != nil:
		return g.Fetch.toAST()
	case g.Select != nil:
		return g.Select.toAST()
	case g.Create != nil:
		return g.Create.toAST()
	case g.GetConfig != nil:
		return g.GetConfig.toAST()
	case g.UpdateConfig != nil:
		return &UpdateConfigStatement{}, nil
	default:
		return nil, fmt.Errorf("empty statement")
	}
}

// GrammarSelectStatement matches select * from <db> [join ...] [where ...] [limit ...].
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarSelectStatement struct {
	Pos      lexer.Position
	Select   string              `parser:"@'select' '*' 'from'"`
	Database *GrammarDatabaseRef `parser:"@@"`
	Join     *GrammarJoinClause  `parser:"@@?"`
	Where    []*GrammarCondition `parser:"('where' @@ ('and' @@)*)?"`
	Limit    *int                `parser:"('limit' @Number)?"`
}

func (g *GrammarSelectStatement) toAST() (Statement, error) {
	stmt := &SelectStatement{
		Database: g.Database.toAST(),
		Limit:    g.Limit,
	}
	if g.Join != nil {
		stmt.Join = g.Join.toAST()
	}
	for _, c := range g.Where {
		cond, err := c.toAST()
		if err != nil {
			return nil, err
		}
		stmt.Where = append(stmt.Where, cond)
	}
	return stmt, nil
}

// GrammarFetchStatement matches fetch <db> (<cond>, ...).
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarFetchStatement struct {
	Pos        lexer.Position
	Fetch      string              `parser:"@'fetch'"`
	Database   *GrammarDatabaseRef `parser:"@@"`
	Parameters []*GrammarCondition `parser:"'(' @@ (',' @@)* ')'"`
}

func (g *GrammarFetchStatement) toAST() (Statement, error) {
	stmt := &FetchStatement{Database: g.Database.toAST()}
	for _, c := range g.Parameters {
		cond, err := c.toAST()
		if err != nil {
			return nil, err
		}
		stmt.Parameters = append(stmt.Parameters, cond)
	}
	return stmt, nil
}

// GrammarCreateStatement matches create <type> <name> [(<cond>, ...)].
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarCreateStatement struct {
	Pos        lexer.Position
	Create     string              `parser:"@'create'"`
	Type       string              `parser:"@Ident"`
	Name       string              `parser:"@(Ident | String)"`
	Parameters []*GrammarCondition `parser:"('(' @@ (',' @@)* ')')?"`
}

func (g *GrammarCreateStatement) toAST() (Statement, error) {
	stmt := &CreateStatement{Type: strings.ToLower(g.Type), Name: g.Name}
	for _, c := range g.Parameters {
		cond, err := c.toAST()
		if err != nil {
			return nil, err
		}
		stmt.Parameters = append(stmt.Parameters, cond)
	}
	return stmt, nil
}

// GrammarGetConfigStatement matches get config (<cond>, ...).
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarGetConfigStatement struct {
	Pos        lexer.Position
	Get        string              `parser:"@'get' 'config'"`
	Parameters []*GrammarCondition `parser:"'(' @@ (',' @@)* ')'"`
}

func (g *GrammarGetConfigStatement) toAST() (Statement, error) {
	stmt := &GetConfigStatement{}
	for _, c := range g.Parameters {
		cond, err := c.toAST()
		if err != nil {
			return nil, err
		}
		stmt.Parameters = append(stmt.Parameters, cond)
	}
	return stmt, nil
}

// GrammarUpdateConfigStatement matches update config.
type GrammarUpdateConfigStatement struct {
	Pos    lexer.Position
	Update string `parser:"@'update' 'config'"`
}

// GrammarDatabaseRef matches <name> [as <alias>].
type GrammarDatabaseRef struct {
	Name  string  `parser:"@Ident"`
	Alias *string `parser:"('as' @Ident)?"`
}

func (g *GrammarDatabaseRef) toAST() *DatabaseRef {
	ref := &DatabaseRef{Name: strings.ToLower(g.Name)}
	if g.Alias != nil {
		ref.Alias = *g.Alias
	}
	return ref
}

// GrammarJoinClause matches join <db> on <key> = <key>.
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarJoinClause struct {
	Join     string              `parser:"@'join'"`
	Database *GrammarDatabaseRef `parser:"@@"`
	On       string              `parser:"@'on'"`
	Left     *GrammarKey         `parser:"@@ '='"`
	Right    *GrammarKey         `parser:"@@"`
}

func (g *GrammarJoinClause) toAST() *JoinClause {
	return &JoinClause{
		Database: g.Database.toAST(),
		On: &JoinCondition{
			Left:  g.Left.toAST(),
			Right: g.Right.toAST(),
		},
	}
}

// GrammarKey matches a field reference, optionally qualified as <alias>.<key>.
type GrammarKey struct {
	First *GrammarIdentifierPart `parser:"@@"`
	Sub   *GrammarIdentifierPart `parser:"('.' @@)?"`
}

func (g *GrammarKey) toAST() *Key {
	if g.Sub != nil {
		return &Key{Alias: g.First.Value(), Key: g.Sub.Value()}
	}
	return &Key{Key: g.First.Value()}
}

// GrammarIdentifierPart matches a single identifier segment. Keywords are
// admitted so that fields named like get or in stay addressable.
type GrammarIdentifierPart struct {
	Ident   *string `parser:"  @Ident"`
	Keyword *string `parser:"| @Keyword"`
}

// Value returns the text of the identifier part.
func (g *GrammarIdentifierPart) Value() string {
	if g.Ident != nil {
		return *g.Ident
	}
	if g.Keyword != nil {
		return *g.Keyword
	}
	return ""
}

// GrammarCondition matches <key> <op> <value>.
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarCondition struct {
	Left     *GrammarKey   `parser:"@@"`
	Operator string        `parser:"@('=' | '>=' | '>' | '<=' | '<' | 'in' | 'is')"`
	Right    *GrammarValue `parser:"@@"`
}

func (g *GrammarCondition) toAST() (*Condition, error) {
	op, err := binaryOperatorFrom(g.Operator)
	if err != nil {
		return nil, err
	}
	val, err := g.Right.toAST()
	if err != nil {
		return nil, err
	}
	return &Condition{Left: g.Left.toAST(), Operator: op, Right: val}, nil
}

func binaryOperatorFrom(op string) (BinaryOperator, error) {
	switch strings.ToLower(op) {
	case "=":
		return BinaryOpEqual, nil
	case ">":
		return BinaryOpGreater, nil
	case ">=":
		return BinaryOpGreaterEqual, nil
	case "<":
		return BinaryOpLess, nil
	case "<=":
		return BinaryOpLessEqual, nil
	case "in":
		return BinaryOpIn, nil
	case "is":
		return BinaryOpIs, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", op)
	}
}

// GrammarValue matches a single literal. A call is tried before a bare word so
// that point(1, 2) does not stop at the word point.
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarValue struct {
	Call   *GrammarCall   `parser:"  @@"`
	Object *GrammarObject `parser:"| @@"`
	Array  *GrammarArray  `parser:"| @@"`
	Str    *string        `parser:"| @String"`
	Number *float64       `parser:"| @Number"`
	Bool   *GrammarBool   `parser:"| @('true' | 'false')"`
	Null   bool           `parser:"| @'null'"`
	Word   *string        `parser:"| @Ident"`
}

func (g *GrammarValue) toAST() (*Value, error) {
	switch {
	case g.Call != nil:
		return g.Call.toAST()
	case g.Object != nil:
		return g.Object.toAST()
	case g.Array != nil:
		return g.Array.toAST()
	case g.Str != nil:
		return &Value{Type: ValueTypeString, Str: *g.Str}, nil
	case g.Number != nil:
		return &Value{Type: ValueTypeNumber, Number: *g.Number}, nil
	case g.Bool != nil:
		return &Value{Type: ValueTypeBool, Bool: bool(*g.Bool)}, nil
	case g.Null:
		return &Value{Type: ValueTypeNull}, nil
	case g.Word != nil:
		if c, ok := ConstantFromName(*g.Word); ok {
			return &Value{Type: ValueTypeConstant, Constant: c}, nil
		}
		return &Value{Type: ValueTypeString, Str: *g.Word}, nil
	default:
		return nil, fmt.Errorf("empty value")
	}
}

// GrammarBool captures a boolean keyword.
type GrammarBool bool

// Capture implements participle's Capture for boolean keywords.
func (b *GrammarBool) Capture(values []string) error {
	*b = GrammarBool(strings.EqualFold(values[0], "true"))
	return nil
}

// GrammarCall matches <name>(<value>, ...).
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarCall struct {
	Name *GrammarIdentifierPart `parser:"@@"`
	Args []*GrammarValue        `parser:"'(' (@@ (',' @@)*)? ')'"`
}

func (g *GrammarCall) toAST() (*Value, error) {
	name := strings.ToLower(g.Name.Value())
	if name == "" {
		return nil, fmt.Errorf("empty function name")
	}
	call := &Call{Name: name}
	for _, a := range g.Args {
		v, err := a.toAST()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, v)
	}
	return &Value{Type: ValueTypeCall, Call: call}, nil
}

// GrammarArray matches an element list in brackets or parentheses. The two
// spellings are equivalent.
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarArray struct {
	LBracket bool            `parser:"  @'['"`
	Bracket  []*GrammarValue `parser:"  (@@ (',' @@)*)? ']'"`
	LParen   bool            `parser:"| @'('"`
	Paren    []*GrammarValue `parser:"  (@@ (',' @@)*)? ')'"`
}

func (g *GrammarArray) toAST() (*Value, error) {
	elements := g.Bracket
	if g.LParen {
		elements = g.Paren
	}
	arr := make([]*Value, 0, len(elements))
	for _, e := range elements {
		v, err := e.toAST()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return &Value{Type: ValueTypeArray, Array: arr}, nil
}

// GrammarObject matches {'key': <value>, ...}.
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarObject struct {
	LBrace  bool                  `parser:"@'{'"`
	Entries []*GrammarObjectEntry `parser:"(@@ (',' @@)*)? '}'"`
}

func (g *GrammarObject) toAST() (*Value, error) {
	obj := make(map[string]*Value, len(g.Entries))
	for _, e := range g.Entries {
		v, err := e.Value.toAST()
		if err != nil {
			return nil, err
		}
		obj[e.Key] = v
	}
	return &Value{Type: ValueTypeObject, Object: obj}, nil
}

// GrammarObjectEntry matches a single 'key': <value> pair.
//
//nolint:govet // fieldalignment: the struct layout mirrors the grammar.
type GrammarObjectEntry struct {
	Key   string        `parser:"@String ':'"`
	Value *GrammarValue `parser:"@@"`
}
