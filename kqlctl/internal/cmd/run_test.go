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
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"github.com/zenizh/go-capturer"

	"github.com/apache/skywalking-kql/kqlctl/internal/cmd"
)

var _ = Describe("running statements against stub backends", func() {
	var rootCmd *cobra.Command
	var spatial, records *httptest.Server
	var spatialCommands []string

	BeforeEach(func() {
		spatialCommands = nil
		spatial = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Command string `json:"command"`
			}
			Expect(json.NewDecoder(req.Body).Decode(&body)).To(Succeed())
			spatialCommands = append(spatialCommands, body.Command)
			Expect(json.NewEncoder(w).Encode(map[string]any{
				"ok":   true,
				"rows": []map[string]any{{"id": "truck1"}},
			})).To(Succeed())
		}))
		records = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var rows []map[string]any
			switch req.URL.Path {
			case "/api/card/1/query":
				rows = []map[string]any{{"name": "orders", "id": 7}}
			default:
				rows = []map[string]any{{"order_id": 42, "status": "created"}}
			}
			Expect(json.NewEncoder(w).Encode(map[string]any{"rows": rows})).To(Succeed())
		}))
		rootCmd = cmd.NewRoot()
	})

	AfterEach(func() {
		spatial.Close()
		records.Close()
	})

	run := func(statement string) string {
		rootCmd.SetArgs([]string{"run", "--spatial-addr", spatial.URL, "--record-addr", records.URL, statement})
		return capturer.CaptureStdout(func() {
			err := rootCmd.Execute()
			Expect(err).NotTo(HaveOccurred())
		})
	}

	It("renders and runs a spatial select", func() {
		out := run("select * from tile38 where within = bounds(10, 10, 20, 20)")
		Expect(out).To(ContainSubstring("command: within limit 100 bounds 10 10 20 20"))
		Expect(out).To(ContainSubstring("id: truck1"))
		Expect(spatialCommands).To(ConsistOf("within limit 100 bounds 10 10 20 20"))
	})

	It("routes a record select to its card", func() {
		out := run("select * from metabase where id = 42")
		Expect(out).To(ContainSubstring("order_id: 42"))
		Expect(out).To(ContainSubstring("status: created"))
		Expect(spatialCommands).To(BeEmpty())
	})

	It("runs a fetch without compiling a command", func() {
		out := run("fetch metabase(id = 42)")
		Expect(out).To(ContainSubstring("order_id: 42"))
		Expect(out).NotTo(ContainSubstring("command:"))
	})

	It("stages session configuration without touching a backend", func() {
		out := run("get config (current_bounds = bounds(1, 2, 3, 4))")
		Expect(out).To(ContainSubstring("name: current_bounds"))
		Expect(spatialCommands).To(BeEmpty())
	})

	It("resolves service names through the registry", func() {
		out := run("select * from tile38 where service in ['orders', 'ghost']")
		Expect(out).To(ContainSubstring("command: scan wherein service 1 7 limit 100"))
		Expect(spatialCommands).To(ConsistOf("scan wherein service 1 7 limit 100"))
	})

	It("honors a deadline in day units", func() {
		rootCmd.SetArgs([]string{
			"run", "--spatial-addr", spatial.URL, "--record-addr", records.URL,
			"--timeout", "1d", "select * from tile38 where within = bounds(10, 10, 20, 20)",
		})
		out := capturer.CaptureStdout(func() {
			Expect(rootCmd.Execute()).To(Succeed())
		})
		Expect(out).To(ContainSubstring("id: truck1"))
	})

	It("rejects a malformed deadline before touching a backend", func() {
		rootCmd.SetArgs([]string{
			"run", "--spatial-addr", spatial.URL, "--record-addr", records.URL,
			"--timeout", "tomorrow", "select * from tile38 where id = 'truck1'",
		})
		err := rootCmd.Execute()
		Expect(err).To(MatchError(ContainSubstring(`invalid timeout "tomorrow"`)))
		Expect(spatialCommands).To(BeEmpty())
	})
})
