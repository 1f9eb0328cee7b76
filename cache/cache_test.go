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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/utils"
)

func TestMemoryCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := utils.NewManualClock(storedAt)
	c := NewMemory(30*time.Second, clock)

	entry, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry, "empty cache must miss")

	devices := []model.Device{
		{ID: "1", Name: "Truck 1", Status: model.DeviceStatusOnline},
		{ID: "2", Name: "Truck 2", Status: model.DeviceStatusOffline},
	}
	require.NoError(t, c.Set(ctx, devices))

	// mutating the caller's slice does not leak into the cache
	devices[0].Name = "changed"

	clock.Advance(29 * time.Second)
	entry, err = c.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, storedAt, entry.StoredAt, "hits report the time the list was stored")
	if assert.Len(t, entry.Devices, 2) {
		assert.Equal(t, "Truck 1", entry.Devices[0].Name)
	}

	clock.Advance(time.Second)
	entry, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry, "entry must expire after the TTL")

	require.NoError(t, c.Set(ctx, nil))
	entry, _ = c.Get(ctx)
	require.NotNil(t, entry)
	assert.Empty(t, entry.Devices)
	assert.Equal(t, clock.Now(), entry.StoredAt)
}

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	var c DeviceCache = Nop{}
	assert.NoError(t, c.Set(ctx, []model.Device{{ID: "1"}}))
	entry, err := c.Get(ctx)
	assert.NoError(t, err)
	assert.Nil(t, entry)
}
