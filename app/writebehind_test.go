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
	"github.com/stretchr/testify/require"

	nats_mocks "github.com/thumbworx/fleetconnect/client/nats/mocks"
	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
	store_mocks "github.com/thumbworx/fleetconnect/store/mocks"
)

var batch = []model.Position{{
	DeviceID:   "1",
	Latitude:   14.6,
	Longitude:  120.98,
	DeviceTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}}

func TestWriteBehindPublishes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		Name string

		UpsertError  error
		PublishError error
		Publish      bool
	}{{
		Name:    "ok",
		Publish: true,
	}, {
		Name:         "ok, publish failure is only logged",
		PublishError: errors.New("nats: connection closed"),
		Publish:      true,
	}, {
		Name:        "store failure, nothing published",
		UpsertError: errors.Wrap(store.ErrStorage, "disk full"),
	}}

	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			ds := &store_mocks.DataStore{}
			ds.On("UpsertPositions",
				mock.MatchedBy(func(ctx context.Context) bool {
					_, ok := ctx.Deadline()
					return ok
				}),
				batch,
			).Return(tc.UpsertError)
			publisher := &nats_mocks.Client{}
			if tc.Publish {
				publisher.On("PublishLiveEvent",
					contextMatcher,
					mock.MatchedBy(func(event *model.LiveEvent) bool {
						return event.RequestID == "req-1" &&
							assert.Equal(t, batch, event.Positions)
					}),
				).Return(tc.PublishError)
			}

			wb := NewWriteBehind(ds, publisher, WriteBehindConfig{Workers: 1})
			assert.True(t, wb.Submit("req-1", time.Now(), batch))
			require.NoError(t, wb.Shutdown(context.Background()))

			ds.AssertExpectations(t)
			publisher.AssertExpectations(t)
			if !tc.Publish {
				publisher.AssertNotCalled(t, "PublishLiveEvent", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestWriteBehindQueueFull(t *testing.T) {
	t.Parallel()
	release := make(chan time.Time)

	ds := &store_mocks.DataStore{}
	ds.On("UpsertPositions", contextMatcher, batch).
		WaitUntil(release).
		Return(nil)

	wb := NewWriteBehind(ds, nil, WriteBehindConfig{Workers: 1, QueueSize: 1})

	// first job occupies the worker, second fills the queue
	assert.True(t, wb.Submit("req-1", time.Now(), batch))
	assert.Eventually(t, func() bool {
		return len(wb.jobs) == 0
	}, time.Second, time.Millisecond)
	assert.True(t, wb.Submit("req-2", time.Now(), batch))

	start := time.Now()
	assert.False(t, wb.Submit("req-3", time.Now(), batch), "queue is full")
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Submit must not block")

	close(release)
	require.NoError(t, wb.Shutdown(context.Background()))
	ds.AssertNumberOfCalls(t, "UpsertPositions", 2)
}

func TestWriteBehindShutdown(t *testing.T) {
	t.Parallel()

	ds := &store_mocks.DataStore{}
	ds.On("UpsertPositions", contextMatcher, batch).
		After(500 * time.Millisecond).
		Return(nil)

	wb := NewWriteBehind(ds, nil, WriteBehindConfig{Workers: 1})
	assert.False(t, wb.Submit("req-0", time.Now(), nil), "empty batches are ignored")
	assert.True(t, wb.Submit("req-1", time.Now(), batch))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := wb.Shutdown(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error: %v", err)

	assert.False(t, wb.Submit("req-2", time.Now(), batch), "closed pool rejects jobs")
	require.NoError(t, wb.Shutdown(context.Background()))
	ds.AssertNumberOfCalls(t, "UpsertPositions", 1)
}

func TestWriteBehindRecoversPanic(t *testing.T) {
	t.Parallel()

	ds := &store_mocks.DataStore{}
	ds.On("UpsertPositions", contextMatcher, batch).
		Run(func(mock.Arguments) { panic("boom") })

	wb := NewWriteBehind(ds, nil, WriteBehindConfig{Workers: 1})
	assert.True(t, wb.Submit("req-1", time.Now(), batch))
	assert.True(t, wb.Submit("req-2", time.Now(), batch))
	require.NoError(t, wb.Shutdown(context.Background()))
	ds.AssertNumberOfCalls(t, "UpsertPositions", 2)
}
