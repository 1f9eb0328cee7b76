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

package store

import (
	"context"

	"github.com/mendersoftware/go-lib-micro/log"

	"github.com/thumbworx/fleetconnect/model"
)

// ValidPositions returns the positions satisfying model.Position.Validate,
// in their original order. Rejected positions are logged and skipped.
func ValidPositions(ctx context.Context, positions []model.Position) []model.Position {
	l := log.FromContext(ctx)
	valid := make([]model.Position, 0, len(positions))
	for _, p := range positions {
		if err := p.Validate(); err != nil {
			l.Warnf("store: skipping malformed position of device %q: %s",
				p.DeviceID, err)
			continue
		}
		valid = append(valid, p)
	}
	return valid
}
