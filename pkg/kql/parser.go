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
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// kqlKeywords are the reserved words of the language. They are matched
// case-insensitively; identifiers and string contents keep their case.
var kqlKeywords = []string{
	"select", "fetch", "create", "get", "update", "config",
	"from", "as", "join", "on", "where", "and", "limit",
	"in", "is", "null", "true", "false",
}

var (
	kqlLexer        lexer.Definition
	statementParser *participle.Parser[Grammar]
)

func init() {
	var err error
	kqlLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "whitespace", Pattern: `\s+`},
		{Name: "comment", Pattern: `--[^\n]*`},
		{Name: "Keyword", Pattern: fmt.Sprintf(`(?i)\b(%s)\b`, strings.Join(kqlKeywords, "|"))},
		{Name: "Ident", Pattern: `(?:[a-zA-Z_]|\\.)(?:[a-zA-Z0-9_-]|\\.)*`},
		{Name: "Number", Pattern: `[-+]?(?:0|[1-9][0-9]*)(?:\.[0-9]+)?(?:[eE][-+]?[0-9]+)?`},
		{Name: "String", Pattern: `'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`},
		{Name: "Operators", Pattern: `>=|<=|[=><,.(){}\[\]:*]`},
	})
	statementParser, err = participle.Build[Grammar](
		participle.Lexer(kqlLexer),
		participle.CaseInsensitive("Keyword"),
		participle.UseLookahead(2),
		participle.Map(unquoteString, "String"),
		participle.Map(unescapeIdent, "Ident"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to build the KQL parser: %v", err))
	}
}

// Parse parses a single KQL statement and returns its AST. A statement the
// grammar cannot match yields a *ParseError.
func Parse(statement string) (Statement, error) {
	grammar, err := statementParser.ParseString("", statement)
	if err != nil {
		return nil, wrapParseError(err)
	}
	return grammar.toAST()
}

func wrapParseError(err error) error {
	if perr, ok := err.(participle.Error); ok {
		expected := ""
		if uerr, ok := err.(*participle.UnexpectedTokenError); ok {
			expected = uerr.Expect
		}
		return &ParseError{
			Message:  perr.Message(),
			Expected: expected,
			Pos:      perr.Position(),
		}
	}
	return &ParseError{Message: err.Error()}
}

// unquoteString strips the surrounding quotes of a string token and
// interprets its escape sequences.
func unquoteString(t lexer.Token) (lexer.Token, error) {
	if len(t.Value) >= 2 {
		t.Value = interpretEscapes(t.Value[1 : len(t.Value)-1])
	}
	return t, nil
}

// unescapeIdent interprets escape sequences in a bare identifier.
func unescapeIdent(t lexer.Token) (lexer.Token, error) {
	if strings.ContainsRune(t.Value, '\\') {
		t.Value = interpretEscapes(t.Value)
	}
	return t, nil
}

// interpretEscapes rewrites the JSON-style escapes \b \f \n \r \t and \uXXXX.
// Any other escaped character is kept as-is, so \' and \" yield the plain
// quote characters.
func interpretEscapes(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			if i+4 < len(s) {
				if n, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(n))
					i += 4
					continue
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
