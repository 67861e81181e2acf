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

package cmd_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"github.com/zenizh/go-capturer"

	"github.com/apache/skywalking-kql/kqlctl/internal/cmd"
)

var _ = Describe("parsing statements offline", func() {
	var rootCmd *cobra.Command
	BeforeEach(func() {
		rootCmd = cmd.NewRoot()
	})

	It("prints the syntax tree of a select statement", func() {
		rootCmd.SetArgs([]string{"parse", "select * from tile38 as t where t.nearby = point(33.462, -112.268) limit 10"})
		out := capturer.CaptureStdout(func() {
			err := rootCmd.Execute()
			Expect(err).NotTo(HaveOccurred())
		})
		Expect(out).To(ContainSubstring("kind: select"))
		Expect(out).To(ContainSubstring("name: tile38"))
		Expect(out).To(ContainSubstring("alias: t"))
		Expect(out).To(ContainSubstring("limit: 10"))
	})

	It("prints one document per statement", func() {
		rootCmd.SetArgs([]string{"parse", "get config (language = 'en')", "update config"})
		out := capturer.CaptureStdout(func() {
			err := rootCmd.Execute()
			Expect(err).NotTo(HaveOccurred())
		})
		Expect(out).To(ContainSubstring("kind: get_config"))
		Expect(out).To(ContainSubstring("kind: update_config"))
		Expect(out).To(ContainSubstring("---"))
	})

	It("reads statements from stdin", func() {
		rootCmd.SetIn(strings.NewReader("-- warm the cache first\nfetch metabase(id = 42)\n"))
		rootCmd.SetArgs([]string{"parse", "-f", "-"})
		out := capturer.CaptureStdout(func() {
			err := rootCmd.Execute()
			Expect(err).NotTo(HaveOccurred())
		})
		Expect(out).To(ContainSubstring("kind: fetch"))
		Expect(out).To(ContainSubstring("name: metabase"))
	})

	It("fails on a malformed statement", func() {
		rootCmd.SetArgs([]string{"parse", "select from tile38"})
		err := rootCmd.Execute()
		Expect(err).To(HaveOccurred())
	})
})
