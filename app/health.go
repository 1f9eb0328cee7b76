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

package app

import (
	"context"
	"sync"

	"github.com/mendersoftware/go-lib-micro/log"

	"github.com/thumbworx/fleetconnect/client/traccar"
	"github.com/thumbworx/fleetconnect/model"
)

// HealthCheck probes the provider, the proxy and the store concurrently,
// each under its own timeout. A failing probe only marks its own source.
func (a *app) HealthCheck(ctx context.Context) model.Health {
	probes := []struct {
		name  string
		probe func(ctx context.Context) error
	}{{
		name: "traccar",
		probe: func(ctx context.Context) error {
			_, err := a.upstream.Fetch(ctx, traccar.ResourceDevices)
			return err
		},
	}, {
		name:  "proxy",
		probe: a.proxy.CheckHealth,
	}, {
		name:  "store",
		probe: a.store.Ping,
	}}

	l := log.FromContext(ctx)
	results := make([]bool, len(probes))
	var wg sync.WaitGroup
	wg.Add(len(probes))
	for i := range probes {
		go func(i int) {
			defer wg.Done()
			_, err := runBounded(ctx, a.HealthProbeTimeout,
				func(ctx context.Context) (struct{}, error) {
					return struct{}{}, probes[i].probe(ctx)
				})
			if err != nil {
				l.Warnf("health: %s: %s", probes[i].name, err)
			}
			results[i] = err == nil
		}(i)
	}
	wg.Wait()

	return model.Health{
		Upstream:      results[0],
		FallbackProxy: results[1],
		DurableStore:  results[2],
	}
}
