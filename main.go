// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mendersoftware/go-lib-micro/config"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	dconfig "github.com/thumbworx/fleetconnect/config"
	"github.com/thumbworx/fleetconnect/server"
	"github.com/thumbworx/fleetconnect/store"
	"github.com/thumbworx/fleetconnect/store/memory"
	"github.com/thumbworx/fleetconnect/store/mongo"
	"github.com/thumbworx/fleetconnect/store/postgres"
)

var Version string = "unknown"

func main() {
	doMain(os.Args)
}

func doMain(args []string) {
	var configPath string

	app := &cli.App{
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name: "config",
				Usage: "Configuration `FILE`. " +
					"Supports JSON, TOML, YAML and HCL " +
					"formatted configs.",
				Value:       "config.yaml",
				Destination: &configPath,
			},
		},
		Commands: []cli.Command{
			{
				Name:   "server",
				Usage:  "Run the HTTP API server",
				Action: cmdServer,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "automigrate",
						Usage: "Run database migrations before starting.",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Run the migrations",
				Action: cmdMigrate,
			},
		},
	}
	app.Usage = "Fleet Connect"
	app.Version = Version
	app.Action = cmdServer

	app.Before = func(args *cli.Context) error {
		err := config.FromConfigFile(configPath, dconfig.Defaults)
		if err != nil {
			return cli.NewExitError(
				fmt.Sprintf("error loading configuration: %s", err),
				1)
		}

		// Enable setting config values by environment variables
		config.Config.SetEnvPrefix("FLEETCONNECT")
		config.Config.AutomaticEnv()
		config.Config.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

		return nil
	}

	err := app.Run(args)
	if err != nil {
		log.Fatal(err)
	}
}

func connectFunc(conf config.Reader, automigrate bool) (store.ConnectFunc, error) {
	switch driver := strings.ToLower(conf.GetString(dconfig.SettingStoreDriver)); driver {
	case "mongo", "mongodb":
		return func(ctx context.Context) (store.DataStore, error) {
			ds, err := mongo.SetupDataStore(ctx, conf, automigrate)
			if err != nil {
				return nil, err
			}
			return ds, nil
		}, nil
	case "postgres", "postgresql":
		return func(ctx context.Context) (store.DataStore, error) {
			ds, err := postgres.NewDataStore(ctx,
				conf.GetString(dconfig.SettingPostgresDSN), automigrate)
			if err != nil {
				return nil, err
			}
			return ds, nil
		}, nil
	case "memory":
		return func(context.Context) (store.DataStore, error) {
			return memory.NewDataStoreMemory(), nil
		}, nil
	default:
		return nil, errors.Errorf("unknown store driver %q", driver)
	}
}

func setupDataStore(automigrate bool) (store.DataStore, error) {
	connect, err := connectFunc(config.Config, automigrate)
	if err != nil {
		return nil, err
	}
	return store.ConnectWithRetry(context.Background(),
		config.Config.GetInt(dconfig.SettingStoreConnectRetries),
		time.Duration(config.Config.GetInt(dconfig.SettingStoreConnectInterval))*time.Second,
		connect,
	)
}

func cmdServer(args *cli.Context) error {
	dataStore, err := setupDataStore(args.Bool("automigrate"))
	if err != nil {
		return err
	}
	defer dataStore.Close()
	return server.InitAndRun(config.Config, dataStore)
}

func cmdMigrate(args *cli.Context) error {
	dataStore, err := setupDataStore(true)
	if err != nil {
		return err
	}
	return dataStore.Close()
}
