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

package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thumbworx/fleetconnect/model"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func pos(deviceID string, offset time.Duration, lat float64) model.Position {
	return model.Position{
		DeviceID:   deviceID,
		Latitude:   lat,
		Longitude:  120.98,
		Speed:      35,
		DeviceTime: t0.Add(offset),
		Attributes: model.Attributes{"ignition": true, "odometer": int64(1200)},
	}
}

func TestRowRoundTrip(t *testing.T) {
	p := pos("7", 0, 14.6)
	p.DeviceTime = p.DeviceTime.In(time.FixedZone("PHT", 8*3600))
	row := rowFromPosition(p)
	assert.Equal(t, time.UTC, row.DeviceTime.Location())
	assert.JSONEq(t, `{"ignition": true, "odometer": 1200}`, row.Attributes)

	back := row.position()
	assert.Equal(t, "7", back.DeviceID)
	assert.True(t, p.DeviceTime.Equal(back.DeviceTime))
	assert.Equal(t, true, back.Attributes["ignition"])
	assert.Equal(t, int64(1200), back.Attributes["odometer"])
}

func setup(t *testing.T) (context.Context, *DataStorePostgres) {
	if testing.Short() {
		t.Skipf("skipping %s in short mode.", t.Name())
	}
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.TODO(), 10*time.Second)
	t.Cleanup(cancel)

	ds, err := NewDataStore(ctx, dsn, true)
	require.NoError(t, err)
	require.NoError(t, ds.db.Exec("TRUNCATE TABLE "+TableName+" RESTART IDENTITY").Error)
	t.Cleanup(func() { ds.Close() })
	return ctx, ds
}

func TestPing(t *testing.T) {
	ctx, ds := setup(t)
	assert.NoError(t, ds.Ping(ctx))
}

func TestUpsertPositions(t *testing.T) {
	ctx, ds := setup(t)

	batch := []model.Position{pos("1", 0, 14.6), pos("2", 0, 14.7), pos("3", 0, -91)}
	require.NoError(t, ds.UpsertPositions(ctx, batch))
	require.NoError(t, ds.UpsertPositions(ctx, batch))

	count, err := ds.CountPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, ds.UpsertPositions(ctx, []model.Position{pos("1", 0, 1.0)}))
	latest, err := ds.LatestPositions(ctx, 10)
	require.NoError(t, err)
	for _, p := range latest {
		if p.DeviceID == "1" {
			assert.Equal(t, 14.6, p.Latitude)
		}
	}
}

func TestUpsertPositionsConcurrent(t *testing.T) {
	ctx, ds := setup(t)
	batch := []model.Position{pos("1", 0, 14.6), pos("1", time.Minute, 14.6)}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ds.UpsertPositions(ctx, batch))
		}()
	}
	wg.Wait()

	count, err := ds.CountPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestLatestPositions(t *testing.T) {
	ctx, ds := setup(t)

	require.NoError(t, ds.UpsertPositions(ctx, []model.Position{
		pos("a", -time.Minute, 1),
		pos("b", 0, 2),
		pos("c", time.Minute, 3),
	}))
	require.NoError(t, ds.UpsertPositions(ctx, []model.Position{pos("d", 0, 4)}))

	latest, err := ds.LatestPositions(ctx, 3)
	require.NoError(t, err)
	ids := []string{}
	for _, p := range latest {
		ids = append(ids, p.DeviceID)
	}
	assert.Equal(t, []string{"c", "b", "d"}, ids)
}

func TestLatestPerDevice(t *testing.T) {
	ctx, ds := setup(t)

	require.NoError(t, ds.UpsertPositions(ctx, []model.Position{
		pos("1", -2*time.Minute, 1),
		pos("1", -time.Minute, 2),
		pos("2", -3*time.Minute, 3),
		pos("2", time.Minute, 4),
	}))

	latest, err := ds.LatestPerDevice(ctx)
	require.NoError(t, err)
	if assert.Len(t, latest, 2) {
		assert.Equal(t, "2", latest[0].DeviceID)
		assert.Equal(t, 4.0, latest[0].Latitude)
		assert.Equal(t, "1", latest[1].DeviceID)
		assert.Equal(t, 2.0, latest[1].Latitude)
	}
}
