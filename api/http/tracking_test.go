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

package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/thumbworx/fleetconnect/app"
	app_mocks "github.com/thumbworx/fleetconnect/app/mocks"
	"github.com/thumbworx/fleetconnect/model"
)

var (
	contextMatcher = mock.MatchedBy(func(_ context.Context) bool { return true })
	resolvedAt     = time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)
)

func TestPositions(t *testing.T) {
	t.Parallel()

	result := &model.ResolutionResult{
		Positions: []model.Position{{
			DeviceID:   "1",
			Latitude:   14.6,
			Longitude:  120.98,
			Speed:      35,
			DeviceTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Attributes: model.Attributes{},
		}},
		Source:     model.SourceLive,
		ResolvedAt: resolvedAt,
	}

	testCases := []struct {
		Name string

		URL    string
		Method string

		Result *model.ResolutionResult
		Error  error

		HTTPStatus int
		HTTPBody   string
		Source     string
	}{{
		Name:   "ok",
		URL:    APIURLPositions,
		Method: "ResolvePositions",
		Result: result,

		HTTPStatus: http.StatusOK,
		HTTPBody: `[{"deviceId":"1","latitude":14.6,"longitude":120.98,"speed":35,
			"deviceTime":"2024-01-01T00:00:00Z","attributes":{}}]`,
		Source: "live",
	}, {
		Name:   "ok, cached",
		URL:    APIURLPositionsCached,
		Method: "ResolveCachedPositions",
		Result: &model.ResolutionResult{
			Positions:  []model.Position{},
			Source:     model.SourceDurableSnapshot,
			ResolvedAt: resolvedAt,
		},

		HTTPStatus: http.StatusOK,
		HTTPBody:   `[]`,
		Source:     "durable-snapshot",
	}, {
		Name:   "ok, through the proxy",
		URL:    APIURLPositionsFlask,
		Method: "ResolveProxyPositions",
		Result: &model.ResolutionResult{
			Positions:  result.Positions,
			Source:     model.SourceFallbackProxy,
			ResolvedAt: resolvedAt,
		},

		HTTPStatus: http.StatusOK,
		HTTPBody: `[{"deviceId":"1","latitude":14.6,"longitude":120.98,"speed":35,
			"deviceTime":"2024-01-01T00:00:00Z","attributes":{}}]`,
		Source: "fallback-proxy",
	}, {
		Name:   "exhausted, through the proxy",
		URL:    APIURLPositionsFlask,
		Method: "ResolveProxyPositions",
		Error:  errors.Wrap(app.ErrExhausted, "connection reset"),

		HTTPStatus: http.StatusOK,
		HTTPBody:   `[]`,
	}, {
		Name:   "exhausted, empty list",
		URL:    APIURLPositions,
		Method: "ResolvePositions",
		Error:  errors.Wrap(app.ErrExhausted, "connection reset"),

		HTTPStatus: http.StatusOK,
		HTTPBody:   `[]`,
	}, {
		Name:   "exhausted, cached",
		URL:    APIURLPositionsCached,
		Method: "ResolveCachedPositions",
		Error:  errors.Wrap(app.ErrExhausted, "connection reset"),

		HTTPStatus: http.StatusOK,
		HTTPBody:   `[]`,
	}}

	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			fleetApp := &app_mocks.App{}
			fleetApp.On(tc.Method, contextMatcher).Return(tc.Result, tc.Error)

			router, _ := NewRouter(fleetApp, nil)
			req, _ := http.NewRequest(http.MethodGet, tc.URL, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.HTTPStatus, w.Code)
			assert.JSONEq(t, tc.HTTPBody, w.Body.String())
			assert.Equal(t, tc.Source, w.Header().Get(HdrResolutionSource))
			if tc.Source != "" {
				assert.Equal(t, "2024-01-01T00:00:05Z", w.Header().Get(HdrResolvedAt))
			}
			fleetApp.AssertExpectations(t)
		})
	}
}

func TestDevices(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		Name string

		Result *model.DeviceResolution
		Error  error

		HTTPStatus int
		HTTPBody   string
	}{{
		Name: "ok",
		Result: &model.DeviceResolution{
			Devices: []model.Device{{
				ID:         "1",
				Name:       "Truck 1",
				Status:     model.DeviceStatusOnline,
				LastUpdate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			}},
			Source:     model.SourceDurableSnapshot,
			ResolvedAt: resolvedAt,
		},
		HTTPStatus: http.StatusOK,
		HTTPBody: `[{"id":"1","name":"Truck 1","status":"online",
			"lastUpdate":"2024-01-01T00:00:00Z"}]`,
	}, {
		Name:       "exhausted",
		Error:      errors.Wrap(app.ErrExhausted, "no reachable servers"),
		HTTPStatus: http.StatusServiceUnavailable,
		HTTPBody:   `{"error":"failed to fetch devices","fallback_devices":[]}`,
	}}

	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			fleetApp := &app_mocks.App{}
			fleetApp.On("ResolveDevices", contextMatcher).Return(tc.Result, tc.Error)

			router, _ := NewRouter(fleetApp, nil)
			req, _ := http.NewRequest(http.MethodGet, APIURLDevices, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.HTTPStatus, w.Code)
			assert.JSONEq(t, tc.HTTPBody, w.Body.String())
			fleetApp.AssertExpectations(t)
		})
	}
}
