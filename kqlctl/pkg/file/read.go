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

// Package file loads statement sources.
package file

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Read returns the contents of path, one slice per source. `-` reads
// stdin, and a directory reads every .kql file under it in lexical
// order.
func Read(path string, stdin io.Reader) ([][]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		return [][]byte{b}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		b, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, rerr
		}
		return [][]byte{b}, nil
	}
	var contents [][]byte
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if d.IsDir() || filepath.Ext(p) != ".kql" {
			return nil
		}
		b, rerr := os.ReadFile(p)
		if rerr != nil {
			return rerr
		}
		contents = append(contents, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contents, nil
}
