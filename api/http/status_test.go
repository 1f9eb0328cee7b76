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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_mocks "github.com/thumbworx/fleetconnect/app/mocks"
	"github.com/thumbworx/fleetconnect/model"
)

func TestAlive(t *testing.T) {
	fleetApp := &app_mocks.App{}

	router, _ := NewRouter(fleetApp, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", APIURLAlive, nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)

	fleetApp.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	testCases := []struct {
		Name   string
		Health model.Health

		HTTPStatus int
		Status     string
		Services   map[string]string
	}{
		{
			Name: "ok",
			Health: model.Health{
				Upstream:      true,
				FallbackProxy: true,
				DurableStore:  true,
			},
			HTTPStatus: http.StatusOK,
			Status:     StatusHealthy,
			Services: map[string]string{
				"traccar":  StatusHealthy,
				"flask":    StatusHealthy,
				"database": StatusHealthy,
			},
		},
		{
			Name: "degraded, provider down",
			Health: model.Health{
				FallbackProxy: true,
				DurableStore:  true,
			},
			HTTPStatus: http.StatusOK,
			Status:     StatusDegraded,
			Services: map[string]string{
				"traccar":  StatusUnhealthy,
				"flask":    StatusHealthy,
				"database": StatusHealthy,
			},
		},
		{
			Name: "ko, database down",
			Health: model.Health{
				Upstream:      true,
				FallbackProxy: true,
			},
			HTTPStatus: http.StatusServiceUnavailable,
			Status:     StatusDegraded,
			Services: map[string]string{
				"traccar":  StatusHealthy,
				"flask":    StatusHealthy,
				"database": StatusUnhealthy,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			fleetApp := &app_mocks.App{}
			fleetApp.On("HealthCheck",
				mock.MatchedBy(func(_ context.Context) bool {
					return true
				})).Return(tc.Health)

			router, _ := NewRouter(fleetApp, nil)
			req, err := http.NewRequest("GET", APIURLHealth, nil)
			if !assert.NoError(t, err) {
				t.FailNow()
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.HTTPStatus, w.Code)

			var report HealthReport
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
			assert.Equal(t, tc.Status, report.Status)
			assert.Equal(t, tc.Services, report.Services)
			assert.False(t, report.Timestamp.IsZero())

			fleetApp.AssertExpectations(t)
		})
	}
}
