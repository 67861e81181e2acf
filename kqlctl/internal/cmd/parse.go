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

package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/apache/skywalking-kql/pkg/kql"
	"github.com/apache/skywalking-kql/pkg/version"
)

type parsedStatement struct {
	AST  kql.Statement `json:"ast"`
	Kind string        `json:"kind"`
}

func newParseCmd() *cobra.Command {
	parseCmd := &cobra.Command{
		Use:     "parse [statement ...]",
		Version: version.Build(),
		Short:   "Parse KQL statements and print their syntax trees without touching any backend",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			statements, err := readStatements(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(statements) == 0 {
				return errors.New("no statement to parse")
			}
			for i, statement := range statements {
				stmt, err := kql.Parse(statement)
				if err != nil {
					return errors.WithMessage(err, statement)
				}
				if err = printYAML(i, parsedStatement{Kind: statementKind(stmt), AST: stmt}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	parseCmd.Flags().StringVarP(&filePath, "file", "f", "", "the file path with one statement per line, - for stdin")
	return parseCmd
}

func statementKind(stmt kql.Statement) string {
	switch stmt.(type) {
	case *kql.SelectStatement:
		return "select"
	case *kql.FetchStatement:
		return "fetch"
	case *kql.CreateStatement:
		return "create"
	case *kql.GetConfigStatement:
		return "get_config"
	case *kql.UpdateConfigStatement:
		return "update_config"
	default:
		return "unknown"
	}
}
