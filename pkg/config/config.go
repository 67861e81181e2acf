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

// Package config fills command line flags from an optional config file
// and from prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// envPrefix namespaces the environment variables bound to flags, so a
// flag like --record-addr reads KQL_RECORD_ADDR.
const envPrefix = "KQL"

// Load fills unset flags in fs from ./<name>.yaml when that file
// exists, and from KQL_* environment variables. Explicit flag values
// always win.
func Load(name string, fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetConfigName(name)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, a malformed one is not.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return err
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return bindFlags(fs, v)
}

func bindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if strings.Contains(f.Name, "-") {
			// Dashes are not legal in environment variable names.
			envVar := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			err = multierr.Append(err, v.BindEnv(f.Name, envVar))
		}
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		err = multierr.Append(err, fs.Set(f.Name, render(v.Get(f.Name))))
	})
	return err
}

// render formats a viper value so pflag can parse it back. Slices join
// with commas to satisfy the CSV based slice flags.
func render(val interface{}) string {
	items, ok := val.([]interface{})
	if !ok {
		return fmt.Sprintf("%v", val)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%v", item))
	}
	return strings.Join(parts, ",")
}
