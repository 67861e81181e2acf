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

// Package kql implements the KQL query language: parsing statements into an
// AST and compiling select statements into the query forms of the two
// backends, the line-command spatial engine and the parameterized record
// service.
//
// The grammar, in EBNF. Keywords match case-insensitively. Database names,
// create types, function names and constant references fold to lower case in
// the AST; aliases, condition keys and string contents keep theirs.
// Whitespace and "--" line comments may appear between any two tokens.
//
//	statement    = fetch | select | create | getconfig | updateconfig .
//	fetch        = "fetch" database "(" condition { "," condition } ")" .
//	select       = "select" "*" "from" database [ join ] [ where ] [ limit ] .
//	create       = "create" ident ( ident | string ) [ "(" condition { "," condition } ")" ] .
//	getconfig    = "get" "config" "(" condition { "," condition } ")" .
//	updateconfig = "update" "config" .
//
//	database     = ident [ "as" ident ] .
//	join         = "join" database "on" key "=" key .
//	where        = "where" condition { "and" condition } .
//	limit        = "limit" number .
//
//	condition    = key operator value .
//	key          = part [ "." part ] .
//	part         = ident | keyword .
//	operator     = "=" | ">" | ">=" | "<" | "<=" | "in" | "is" .
//
//	value        = call | object | array | string | number
//	             | "true" | "false" | "null" | word .
//	call         = part "(" [ value { "," value } ] ")" .
//	array        = "[" [ value { "," value } ] "]"
//	             | "(" [ value { "," value } ] ")" .
//	object       = "{" [ entry { "," entry } ] "}" .
//	entry        = string ":" value .
//
//	ident        = ( letter | "_" | escape ) { letter | digit | "_" | "-" | escape } .
//	number       = [ "-" | "+" ] int [ frac ] [ exp ] .
//	string       = "'" { char } "'" | `"` { char } `"` .
//	escape       = "\" any .
//
// The two array spellings are equivalent, so in ('a', 'b') and in ['a', 'b']
// parse to the same ordered sequence. A bare word that names one of the
// session constants (current_bounds, current_points, current_features)
// becomes a constant reference; any other bare word is a string.
//
// Strings and identifiers interpret the escapes \b, \f, \n, \r, \t and
// \uXXXX; any other escaped character stands for itself. A string must close
// with the same quote character it opened with.
package kql
