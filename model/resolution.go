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

package model

import "time"

// Source identifies the tier that answered a resolution.
type Source string

// Resolution sources, in default priority order
const (
	SourceLive            Source = "live"
	SourceFallbackProxy   Source = "fallback-proxy"
	SourceDurableSnapshot Source = "durable-snapshot"
)

// ResolutionResult is the outcome of a position resolution
type ResolutionResult struct {
	Positions  []Position `json:"positions"`
	Source     Source     `json:"source"`
	ResolvedAt time.Time  `json:"resolvedAt"`
}

// DeviceResolution is the outcome of a device list resolution
type DeviceResolution struct {
	Devices    []Device  `json:"devices"`
	Source     Source    `json:"source"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Health is the per-source availability reported by the health check
type Health struct {
	Upstream      bool `json:"upstream"`
	FallbackProxy bool `json:"fallbackProxy"`
	DurableStore  bool `json:"durableStore"`
}

// LiveEvent is published for every batch of live positions persisted by
// the write-behind.
type LiveEvent struct {
	RequestID  string     `msgpack:"request_id"`
	ResolvedAt time.Time  `msgpack:"resolved_at"`
	Positions  []Position `msgpack:"positions"`
}
