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
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
)

// originChecker returns the CORS origin predicate for the configured
// origins; an empty list accepts every origin.
func originChecker(origins []string) func(origin string) bool {
	switch len(origins) {
	case 0:
		return func(string) bool { return true }
	case 1:
		allowed := origins[0]
		return func(origin string) bool {
			return origin == allowed
		}
	default:
		// Compile a hashmap of valid origins for fast lookup
		originSet := make(map[string]struct{}, len(origins))
		for _, origin := range origins {
			originSet[origin] = struct{}{}
		}
		return func(origin string) bool {
			_, ok := originSet[origin]
			return ok
		}
	}
}

func corsConfig(origins []string) cors.Config {
	conf := cors.Config{
		AllowHeaders: []string{
			"Accept",
			"Allow",
			"Content-Type",
			"Origin",
			"Accept-Encoding",
			"Access-Control-Request-Headers",
			"Header-Access-Control-Request",
		},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodOptions,
		},
		ExposeHeaders: []string{
			HdrResolutionSource,
			HdrResolvedAt,
		},
		MaxAge: time.Hour * 12,
	}
	if len(origins) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOriginFunc = originChecker(origins)
	}
	return conf
}
