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
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mendersoftware/go-lib-micro/accesslog"
	"github.com/mendersoftware/go-lib-micro/requestid"

	"github.com/thumbworx/fleetconnect/app"
)

// API URL used by the HTTP router
const (
	APIURLTraccar = "/api/traccar"

	APIURLDevices         = APIURLTraccar + "/devices"
	APIURLPositions       = APIURLTraccar + "/positions"
	APIURLPositionsCached = APIURLTraccar + "/positions-cached"
	APIURLPositionsFlask  = APIURLTraccar + "/positions-flask"

	APIURLAlive  = "/api/alive"
	APIURLHealth = "/api/health"
)

// NewRouter returns the gin router
func NewRouter(
	app app.App,
	allowedOrigins []string,
) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	gin.DisableConsoleColor()

	router := gin.New()
	router.Use(accesslog.Middleware())
	router.Use(gin.Recovery())
	router.Use(requestid.Middleware())
	router.Use(cors.New(corsConfig(allowedOrigins)))

	status := NewStatusController(app)
	router.GET(APIURLAlive, status.Alive)
	router.GET(APIURLHealth, status.Health)

	tracking := NewTrackingController(app)
	router.GET(APIURLDevices, tracking.Devices)
	router.GET(APIURLPositions, tracking.Positions)
	router.GET(APIURLPositionsCached, tracking.PositionsCached)
	router.GET(APIURLPositionsFlask, tracking.PositionsFlask)

	return router, nil
}
