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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	proxy_mocks "github.com/thumbworx/fleetconnect/client/proxy/mocks"
	"github.com/thumbworx/fleetconnect/client/traccar"
	traccar_mocks "github.com/thumbworx/fleetconnect/client/traccar/mocks"
	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
	store_mocks "github.com/thumbworx/fleetconnect/store/mocks"
)

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	const probeTimeout = 100 * time.Millisecond

	testCases := []struct {
		Name string

		Upstream func(c *mock.Call)
		Proxy    func(c *mock.Call)
		Store    func(c *mock.Call)

		Health model.Health
	}{{
		Name:     "all healthy",
		Upstream: func(c *mock.Call) { c.Return([]model.RawRecord{}, nil) },
		Proxy:    func(c *mock.Call) { c.Return(nil) },
		Store:    func(c *mock.Call) { c.Return(nil) },
		Health: model.Health{
			Upstream:      true,
			FallbackProxy: true,
			DurableStore:  true,
		},
	}, {
		Name: "upstream hangs",
		Upstream: func(c *mock.Call) {
			c.After(10*time.Second).Return([]model.RawRecord{}, nil)
		},
		Proxy: func(c *mock.Call) { c.Return(nil) },
		Store: func(c *mock.Call) { c.Return(nil) },
		Health: model.Health{
			FallbackProxy: true,
			DurableStore:  true,
		},
	}, {
		Name:     "upstream rejects credentials, proxy panics",
		Upstream: func(c *mock.Call) { c.Return(nil, traccar.ErrAuthFailure) },
		Proxy: func(c *mock.Call) {
			c.Run(func(mock.Arguments) { panic("boom") })
		},
		Store: func(c *mock.Call) { c.Return(nil) },
		Health: model.Health{
			DurableStore: true,
		},
	}, {
		Name:     "store down",
		Upstream: func(c *mock.Call) { c.Return([]model.RawRecord{}, nil) },
		Proxy:    func(c *mock.Call) { c.Return(nil) },
		Store: func(c *mock.Call) {
			c.Return(errors.Wrap(store.ErrStorage, "no reachable servers"))
		},
		Health: model.Health{
			Upstream:      true,
			FallbackProxy: true,
		},
	}}

	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			upstream := &traccar_mocks.Client{}
			tc.Upstream(upstream.On("Fetch", contextMatcher, traccar.ResourceDevices))
			proxyClient := &proxy_mocks.Client{}
			tc.Proxy(proxyClient.On("CheckHealth", contextMatcher))
			ds := &store_mocks.DataStore{}
			tc.Store(ds.On("Ping", contextMatcher))

			a := New(ds, upstream, proxyClient, Config{HealthProbeTimeout: probeTimeout})
			defer shutdown(t, a)

			start := time.Now()
			health := a.HealthCheck(context.Background())
			assert.Less(t, time.Since(start), probeTimeout+time.Second)
			assert.Equal(t, tc.Health, health)
			ds.AssertNotCalled(t, "UpsertPositions", mock.Anything, mock.Anything)
		})
	}
}
