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
	"time"

	"github.com/mendersoftware/go-lib-micro/log"

	"github.com/thumbworx/fleetconnect/cache"
	"github.com/thumbworx/fleetconnect/client/traccar"
	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
	"github.com/thumbworx/fleetconnect/utils"
)

// deviceCacheTier serves the device list fetched from the provider while
// it is within the cache TTL.
type deviceCacheTier struct {
	cache cache.DeviceCache
}

func (t *deviceCacheTier) Name() string         { return "device-cache" }
func (t *deviceCacheTier) Source() model.Source { return model.SourceLive }

func (t *deviceCacheTier) Attempt(ctx context.Context) Outcome[model.Device] {
	entry, err := t.cache.Get(ctx)
	if err != nil {
		return Outcome[model.Device]{Kind: OutcomeError, Err: err}
	} else if entry == nil {
		return Outcome[model.Device]{Kind: OutcomeEmpty}
	}
	out := outcomeOf(entry.Devices, nil, true)
	out.At = entry.StoredAt
	return out
}

// liveDeviceTier fetches the device list from the provider and refreshes
// the cache on success.
type liveDeviceTier struct {
	client  traccar.Client
	cache   cache.DeviceCache
	timeout time.Duration
}

func (t *liveDeviceTier) Name() string         { return "traccar" }
func (t *liveDeviceTier) Source() model.Source { return model.SourceLive }

func (t *liveDeviceTier) Attempt(ctx context.Context) Outcome[model.Device] {
	raws, err := runBounded(ctx, t.timeout,
		func(ctx context.Context) ([]model.RawRecord, error) {
			return t.client.Fetch(ctx, traccar.ResourceDevices)
		})
	if err != nil {
		return outcomeOf[model.Device](nil, err, false)
	}
	devices, errs := model.NormalizeDevices(raws)
	l := log.FromContext(ctx)
	for _, err := range errs {
		l.Warnf("%s: dropping device: %s", t.Name(), err)
	}
	out := outcomeOf(devices, nil, false)
	if out.Kind == OutcomeOK {
		if err := t.cache.Set(ctx, out.Items); err != nil {
			l.Warnf("%s: failed to cache devices: %s", t.Name(), err)
		}
	}
	return out
}

// snapshotDeviceTier derives the device list from the latest persisted
// position of every device.
type snapshotDeviceTier struct {
	store     store.DataStore
	clock     utils.Clock
	freshness time.Duration
	timeout   time.Duration
}

func (t *snapshotDeviceTier) Name() string         { return "store" }
func (t *snapshotDeviceTier) Source() model.Source { return model.SourceDurableSnapshot }

func (t *snapshotDeviceTier) Attempt(ctx context.Context) Outcome[model.Device] {
	positions, err := runBounded(ctx, t.timeout, t.store.LatestPerDevice)
	if err != nil {
		return outcomeOf[model.Device](nil, err, true)
	}
	now := t.clock.Now()
	devices := make([]model.Device, len(positions))
	for i, p := range positions {
		devices[i] = model.DeviceFromPosition(p, now, t.freshness)
	}
	return outcomeOf(devices, nil, true)
}
