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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mendersoftware/go-lib-micro/log"

	"github.com/thumbworx/fleetconnect/app"
)

const (
	defaultTimeout = time.Second * 10
)

// Service states reported by the health end-point
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthReport is the body of GET /api/health
type HealthReport struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
}

func serviceStatus(ok bool) string {
	if ok {
		return StatusHealthy
	}
	return StatusUnhealthy
}

// StatusController contains status-related end-points
type StatusController struct {
	app app.App
}

// NewStatusController returns a new StatusController
func NewStatusController(app app.App) *StatusController {
	return &StatusController{app: app}
}

// Alive responds to GET /alive
func (h StatusController) Alive(c *gin.Context) {
	c.Writer.WriteHeader(http.StatusNoContent)
}

// Health responds to GET /health. The service is degraded when any source
// is down and unavailable only without the durable store.
func (h StatusController) Health(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.FromContext(ctx)
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	health := h.app.HealthCheck(ctx)
	report := HealthReport{
		Status: StatusHealthy,
		Services: map[string]string{
			"traccar":  serviceStatus(health.Upstream),
			"flask":    serviceStatus(health.FallbackProxy),
			"database": serviceStatus(health.DurableStore),
		},
		Timestamp: time.Now().UTC(),
	}
	code := http.StatusOK
	if !health.Upstream || !health.FallbackProxy || !health.DurableStore {
		report.Status = StatusDegraded
		l.Warnf("health check degraded: %v", report.Services)
	}
	if !health.DurableStore {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}
