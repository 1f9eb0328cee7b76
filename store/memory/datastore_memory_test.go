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

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func pos(deviceID string, offset time.Duration, lat float64) model.Position {
	return model.Position{
		DeviceID:   deviceID,
		Latitude:   lat,
		Longitude:  120.98,
		Speed:      10,
		DeviceTime: t0.Add(offset),
	}
}

func TestUpsertPositionsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := NewDataStoreMemory()

	batch := []model.Position{pos("1", 0, 14.6), pos("2", 0, 14.7)}
	require.NoError(t, db.UpsertPositions(ctx, batch))
	require.NoError(t, db.UpsertPositions(ctx, batch))

	count, err := db.CountPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// a stored position is never overwritten
	changed := pos("1", 0, 10.0)
	require.NoError(t, db.UpsertPositions(ctx, []model.Position{changed}))
	latest, err := db.LatestPositions(ctx, 10)
	require.NoError(t, err)
	for _, p := range latest {
		if p.DeviceID == "1" {
			assert.Equal(t, 14.6, p.Latitude)
		}
	}
}

func TestUpsertPositionsSkipsInvalid(t *testing.T) {
	ctx := context.Background()
	db := NewDataStoreMemory()

	invalid := pos("2", 0, 95)
	err := db.UpsertPositions(ctx, []model.Position{pos("1", 0, 14.6), invalid})
	require.NoError(t, err)

	count, err := db.CountPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertPositionsConcurrent(t *testing.T) {
	ctx := context.Background()
	db := NewDataStoreMemory()
	batch := []model.Position{pos("1", 0, 14.6), pos("1", time.Second, 14.6)}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, db.UpsertPositions(ctx, batch))
		}()
	}
	wg.Wait()

	count, err := db.CountPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestLatestPositions(t *testing.T) {
	ctx := context.Background()
	db := NewDataStoreMemory()

	require.NoError(t, db.UpsertPositions(ctx, []model.Position{
		pos("a", -time.Minute, 1),
		pos("b", 0, 2),
		pos("c", time.Minute, 3),
	}))
	// same device time as "b", inserted later
	require.NoError(t, db.UpsertPositions(ctx, []model.Position{pos("d", 0, 4)}))

	latest, err := db.LatestPositions(ctx, 3)
	require.NoError(t, err)
	ids := []string{}
	for _, p := range latest {
		ids = append(ids, p.DeviceID)
	}
	assert.Equal(t, []string{"c", "b", "d"}, ids)

	latest, err = db.LatestPositions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, latest)

	latest, err = db.LatestPositions(ctx, -1)
	require.NoError(t, err)
	assert.NotNil(t, latest)
	assert.Empty(t, latest)
}

func TestLatestPerDevice(t *testing.T) {
	ctx := context.Background()
	db := NewDataStoreMemory()

	latest, err := db.LatestPerDevice(ctx)
	require.NoError(t, err)
	assert.Empty(t, latest)

	require.NoError(t, db.UpsertPositions(ctx, []model.Position{
		pos("1", -2*time.Minute, 1),
		pos("1", -time.Minute, 2),
		pos("2", -3*time.Minute, 3),
		pos("2", time.Minute, 4),
	}))

	latest, err = db.LatestPerDevice(ctx)
	require.NoError(t, err)
	if assert.Len(t, latest, 2) {
		assert.Equal(t, "2", latest[0].DeviceID)
		assert.Equal(t, 4.0, latest[0].Latitude)
		assert.Equal(t, "1", latest[1].DeviceID)
		assert.Equal(t, 2.0, latest[1].Latitude)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	db := NewDataStoreMemory()

	err := db.Ping(ctx)
	assert.True(t, errors.Is(err, store.ErrStorage))
	_, err = db.LatestPositions(ctx, 1)
	assert.True(t, errors.Is(err, store.ErrStorage))
	assert.NoError(t, db.Close())
}
