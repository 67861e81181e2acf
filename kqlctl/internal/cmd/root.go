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

// Package cmd implements the sub commands of the kqlctl command line tool.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apache/skywalking-kql/pkg/config"
	"github.com/apache/skywalking-kql/pkg/engine"
	"github.com/apache/skywalking-kql/pkg/kql"
	"github.com/apache/skywalking-kql/pkg/logger"
	"github.com/apache/skywalking-kql/pkg/metabase"
	"github.com/apache/skywalking-kql/pkg/tile38"
	"github.com/apache/skywalking-kql/pkg/version"
)

const configName = "kqlctl"

var (
	spatialAddr  string
	recordAddr   string
	servicesCard int
	areaCard2    int
	areaCard3    int
	areaCard4    int
	filePath     string

	// sessionViper backs the engine session. It stays nil when no
	// kqlctl config file exists, which makes "update config" fail
	// with a clear error instead of writing to a surprise location.
	sessionViper *viper.Viper
)

// NewRoot returns the root command
func NewRoot() *cobra.Command {
	logging := logger.Logging{}
	cmd := &cobra.Command{
		Use:               configName,
		DisableAutoGenTag: true,
		Version:           version.Build(),
		Short:             "kqlctl is the command line tool of the KQL engine",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err = config.Load(configName, cmd.Flags()); err != nil {
				return err
			}

			if err = logger.Init(logging); err != nil {
				return err
			}

			viper.SetConfigType("yaml")
			viper.SetConfigName(configName)
			viper.AddConfigPath(".")
			if err = viper.ReadInConfig(); err != nil {
				if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
					return err
				}
				return nil
			}
			sessionViper = viper.GetViper()
			return nil
		},
	}
	cmd.AddCommand(newKQLCmd()...)
	cmd.PersistentFlags().StringVar(&spatialAddr, "spatial-addr", "http://127.0.0.1:9851", "the http address of the spatial engine")
	cmd.PersistentFlags().StringVar(&recordAddr, "record-addr", "http://127.0.0.1:3000", "the http address of the record service")
	cmd.PersistentFlags().IntVar(&servicesCard, "services-card", 1, "the record service card listing registered services")
	cmd.PersistentFlags().IntVar(&areaCard2, "area-card-2", 2, "the record service card resolving level 2 area names")
	cmd.PersistentFlags().IntVar(&areaCard3, "area-card-3", 3, "the record service card resolving level 3 area names")
	cmd.PersistentFlags().IntVar(&areaCard4, "area-card-4", 4, "the record service card resolving level 4 area names")
	cmd.PersistentFlags().StringVar(&logging.Env, "logging-env", "prod", "the logging env, prod or dev")
	cmd.PersistentFlags().StringVar(&logging.Level, "logging-level", "info", "the root logging level")
	cmd.PersistentFlags().StringSliceVar(&logging.Modules, "logging-modules", nil, "modules with a dedicated logging level")
	cmd.PersistentFlags().StringSliceVar(&logging.Levels, "logging-levels", nil, "levels matching --logging-modules by position")
	return cmd
}

func newEngine() *engine.Engine {
	records := metabase.NewClient(metabase.Config{
		Addr:         recordAddr,
		ServicesCard: servicesCard,
		AreaCards:    map[int]int{2: areaCard2, 3: areaCard3, 4: areaCard4},
	})
	spatial := tile38.NewClient(spatialAddr)
	session := engine.NewSession(sessionViper)
	transformer := kql.NewTransformer(records, kql.NewResolver(records), spatial, records, session)
	return engine.New(transformer, spatial, records, session)
}
