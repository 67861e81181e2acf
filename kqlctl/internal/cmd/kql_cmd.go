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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/apache/skywalking-kql/kqlctl/pkg/file"
)

func newKQLCmd() []*cobra.Command {
	runCmd := newRunCmd()
	parseCmd := newParseCmd()
	return []*cobra.Command{runCmd, parseCmd}
}

// readStatements collects the statements to process, either from the
// command line arguments or from the file flag. Blank lines and lines
// holding nothing but a comment are dropped.
func readStatements(args []string, reader io.Reader) ([]string, error) {
	if filePath == "" {
		return args, nil
	}
	contents, err := file.Read(filePath, reader)
	if err != nil {
		return nil, err
	}
	var statements []string
	for _, content := range contents {
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			statements = append(statements, line)
		}
	}
	return statements, nil
}

func printYAML(index int, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	yamlResult, err := yaml.JSONToYAML(body)
	if err != nil {
		return err
	}
	if index > 0 {
		fmt.Println("---")
	}
	fmt.Print(string(yamlResult))
	return nil
}
