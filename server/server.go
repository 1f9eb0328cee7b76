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

package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/mendersoftware/go-lib-micro/config"
	"github.com/mendersoftware/go-lib-micro/log"

	api "github.com/thumbworx/fleetconnect/api/http"
	"github.com/thumbworx/fleetconnect/app"
	"github.com/thumbworx/fleetconnect/cache"
	"github.com/thumbworx/fleetconnect/client/nats"
	"github.com/thumbworx/fleetconnect/client/proxy"
	"github.com/thumbworx/fleetconnect/client/traccar"
	dconfig "github.com/thumbworx/fleetconnect/config"
	"github.com/thumbworx/fleetconnect/store"
)

const shutdownTimeout = 5 * time.Second

func seconds(conf config.Reader, key string) time.Duration {
	return time.Duration(conf.GetInt(key)) * time.Second
}

// NewDeviceCache returns the device list cache selected by the config
func NewDeviceCache(ctx context.Context, conf config.Reader) (cache.DeviceCache, error) {
	ttl := seconds(conf, dconfig.SettingDevicesCacheTTL)
	switch kind := strings.ToLower(conf.GetString(dconfig.SettingDevicesCache)); kind {
	case "memory", "":
		return cache.NewMemory(ttl, nil), nil
	case "redis":
		return cache.NewRedis(ctx, conf.GetString(dconfig.SettingRedisURL), ttl)
	case "none":
		return cache.Nop{}, nil
	default:
		return nil, errors.Errorf("unknown devices cache %q", kind)
	}
}

// NewApp builds the application from the config
func NewApp(
	ctx context.Context,
	conf config.Reader,
	dataStore store.DataStore,
) (app.App, func(), error) {
	l := log.FromContext(ctx)
	cleanup := func() {}

	upstream := traccar.NewClient(
		conf.GetString(dconfig.SettingTraccarURL),
		traccar.ClientOptions{
			User:     conf.GetString(dconfig.SettingTraccarUser),
			Password: conf.GetString(dconfig.SettingTraccarPassword),
			Timeout:  seconds(conf, dconfig.SettingTraccarTimeout),
		},
	)
	proxyClient := proxy.NewClient(
		conf.GetString(dconfig.SettingProxyURL),
		proxy.ClientOptions{
			Timeout: seconds(conf, dconfig.SettingProxyTimeout),
		},
	)

	devCache, err := NewDeviceCache(ctx, conf)
	if err != nil {
		return nil, cleanup, err
	}
	if closer, ok := devCache.(interface{ Close() error }); ok {
		cleanup = func() { _ = closer.Close() }
	}

	appConfig := app.Config{
		UpstreamTimeout:              seconds(conf, dconfig.SettingTraccarTimeout),
		ProxyTimeout:                 seconds(conf, dconfig.SettingProxyTimeout),
		HealthProbeTimeout:           seconds(conf, dconfig.SettingHealthProbeTimeout),
		FreshnessWindow:              seconds(conf, dconfig.SettingDeviceFreshnessWindow),
		PositionsFallbackLimit:       conf.GetInt(dconfig.SettingPositionsFallbackLimit),
		CachedPositionsFallbackLimit: conf.GetInt(dconfig.SettingPositionsCachedFallbackLimit),
		WriteBehind: app.WriteBehindConfig{
			Workers:   conf.GetInt(dconfig.SettingWriteBehindWorkers),
			QueueSize: conf.GetInt(dconfig.SettingWriteBehindQueueSize),
			Timeout:   seconds(conf, dconfig.SettingWriteBehindTimeout),
		},
		DeviceCache: devCache,
	}

	if natsURI := conf.GetString(dconfig.SettingNatsURI); natsURI != "" {
		natsClient, err := nats.NewClientWithDefaults(
			natsURI, conf.GetString(dconfig.SettingNatsSubject))
		if err != nil {
			cleanup()
			return nil, func() {}, errors.Wrap(err, "failed to connect to nats")
		}
		appConfig.Publisher = natsClient
		prev := cleanup
		cleanup = func() {
			natsClient.Close()
			prev()
		}
	} else {
		l.Info("nats_uri not set, live positions will not be published")
	}

	return app.New(dataStore, upstream, proxyClient, appConfig), cleanup, nil
}

// InitAndRun initializes the server and runs it
func InitAndRun(conf config.Reader, dataStore store.DataStore) error {
	ctx := context.Background()

	log.Setup(conf.GetBool(dconfig.SettingDebugLog))
	l := log.FromContext(ctx)

	fleetApp, cleanup, err := NewApp(ctx, conf, dataStore)
	if err != nil {
		return err
	}
	defer cleanup()

	var listen = conf.GetString(dconfig.SettingListen)
	router, err := api.NewRouter(fleetApp,
		conf.GetStringSlice(dconfig.SettingAllowedOrigins))
	if err != nil {
		l.Fatal(err)
	}
	srv := &http.Server{
		Addr:    listen,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, unix.SIGINT, unix.SIGTERM)
	<-quit

	l.Info("Shutdown Server ...")

	ctxWithTimeout, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctxWithTimeout); err != nil {
		l.Error("Server Shutdown: ", err)
	}

	// drain the pending write-behind jobs before closing the store
	fleetApp.Shutdown(seconds(conf, dconfig.SettingWriteBehindTimeout))
	fleetApp.ShutdownDone()

	return nil
}
