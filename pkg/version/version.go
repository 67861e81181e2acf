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

// Package version exposes the build version stamped into the binary.
package version

import (
	"runtime/debug"
	"strings"
)

// build is populated at build time using -ldflags -X.
var build string

// Build returns the stamped version. Binaries installed straight from
// the module proxy carry no stamp, so it falls back to the module
// version the Go toolchain recorded.
func Build() string {
	if build != "" {
		if strings.HasPrefix(strings.ToLower(build), "v") {
			return build
		}
		return "v" + build
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "v0.0.0-unofficial"
}
