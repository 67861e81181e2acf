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
	"context"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"

	"github.com/apache/skywalking-kql/pkg/kql"
	"github.com/apache/skywalking-kql/pkg/logger"
	"github.com/apache/skywalking-kql/pkg/version"
)

type runResult struct {
	Query   string    `json:"query"`
	Command string    `json:"command,omitempty"`
	Rows    []kql.Row `json:"rows"`
}

func newRunCmd() *cobra.Command {
	var timeout string
	runCmd := &cobra.Command{
		Use:     "run [statement ...]",
		Version: version.Build(),
		Short:   "Run KQL statements against the configured backends",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			statements, err := readStatements(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(statements) == 0 {
				return errors.New("no statement to run")
			}
			ctx := cmd.Context()
			if timeout != "" {
				// str2duration understands day and week units on top of time.ParseDuration.
				d, derr := str2duration.ParseDuration(timeout)
				if derr != nil {
					return errors.WithMessagef(derr, "invalid timeout %q", timeout)
				}
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			eng := newEngine()
			l := logger.GetLogger(configName)
			for i, statement := range statements {
				result, err := eng.Execute(ctx, statement)
				if err != nil {
					return errors.WithMessage(err, statement)
				}
				rows := result.Rows
				if rows == nil {
					rows = []kql.Row{}
				}
				if err = printYAML(i, runResult{Query: result.QueryID, Command: result.Command, Rows: rows}); err != nil {
					return err
				}
				l.Info().Str("query", result.QueryID).Msgf("fetched %s rows", humanize.Comma(int64(len(rows))))
			}
			return nil
		},
	}
	runCmd.Flags().StringVarP(&filePath, "file", "f", "", "the file path with one statement per line, - for stdin")
	runCmd.Flags().StringVar(&timeout, "timeout", "", "the deadline for the whole run, e.g. 30s, 5m or 1d")
	return runCmd
}
