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
	"github.com/pkg/errors"

	"github.com/thumbworx/fleetconnect/app"
	"github.com/thumbworx/fleetconnect/model"
)

// Provenance headers set on every resolved response
const (
	HdrResolutionSource = "X-Resolution-Source"
	HdrResolvedAt       = "X-Resolved-At"
)

// TrackingController serves devices and positions
type TrackingController struct {
	app app.App
}

// NewTrackingController returns a new TrackingController
func NewTrackingController(app app.App) *TrackingController {
	return &TrackingController{app: app}
}

func setProvenance(c *gin.Context, source model.Source, resolvedAt time.Time) {
	c.Header(HdrResolutionSource, string(source))
	c.Header(HdrResolvedAt, resolvedAt.UTC().Format(time.RFC3339))
}

// Devices responds to GET /api/traccar/devices
func (h TrackingController) Devices(c *gin.Context) {
	ctx := c.Request.Context()

	res, err := h.app.ResolveDevices(ctx)
	if err != nil {
		log.FromContext(ctx).Error(errors.Wrap(err, "failed to resolve devices"))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":            "failed to fetch devices",
			"fallback_devices": []model.Device{},
		})
		return
	}
	setProvenance(c, res.Source, res.ResolvedAt)
	c.JSON(http.StatusOK, res.Devices)
}

// Positions responds to GET /api/traccar/positions
func (h TrackingController) Positions(c *gin.Context) {
	h.positions(c, h.app.ResolvePositions)
}

// PositionsCached responds to GET /api/traccar/positions-cached
func (h TrackingController) PositionsCached(c *gin.Context) {
	h.positions(c, h.app.ResolveCachedPositions)
}

// PositionsFlask responds to GET /api/traccar/positions-flask
func (h TrackingController) PositionsFlask(c *gin.Context) {
	h.positions(c, h.app.ResolveProxyPositions)
}

// positions answers with an empty list when even the durable store fails.
func (h TrackingController) positions(
	c *gin.Context,
	resolve func(context.Context) (*model.ResolutionResult, error),
) {
	ctx := c.Request.Context()

	res, err := resolve(ctx)
	if err != nil {
		log.FromContext(ctx).Error(errors.Wrap(err, "failed to resolve positions"))
		c.JSON(http.StatusOK, []model.Position{})
		return
	}
	setProvenance(c, res.Source, res.ResolvedAt)
	c.JSON(http.StatusOK, res.Positions)
}
