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

import (
	"encoding/json"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// AttrTimeSynthetic flags positions whose device time was substituted by
// the resolution wall-clock time.
const AttrTimeSynthetic = "time-synthetic"

const coordinatePrecision = 1e7

// Device times outside [MinDeviceTime, MaxDeviceTime] are not plausible
// fixes and are treated as unparseable.
var (
	MinDeviceTime = time.Unix(0, 0).UTC()
	MaxDeviceTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// MaxDeviceTimeSkew is how far ahead of the resolution time a device time
// may be before it is replaced.
const MaxDeviceTimeSkew = 24 * time.Hour

// Attributes is the provider-defined attribute set of a position. Values
// are restricted to the scalars string, float64, int64, bool and nil.
type Attributes map[string]interface{}

// TimeSynthetic reports whether the device time was synthesized.
func (a Attributes) TimeSynthetic() bool {
	v, ok := a[AttrTimeSynthetic].(bool)
	return ok && v
}

// Position is a single GPS fix reported by a device. Positions are
// immutable facts identified by (DeviceID, DeviceTime).
type Position struct {
	DeviceID   string     `json:"deviceId" bson:"device_id"`
	Latitude   float64    `json:"latitude" bson:"latitude"`
	Longitude  float64    `json:"longitude" bson:"longitude"`
	Speed      float64    `json:"speed" bson:"speed"`
	DeviceTime time.Time  `json:"deviceTime" bson:"device_time"`
	Attributes Attributes `json:"attributes" bson:"attributes,omitempty"`
}

// Validate checks the coordinate ranges and required fields.
func (p Position) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DeviceID, validation.Required),
		validation.Field(&p.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&p.Longitude, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&p.Speed, validation.Min(0.0)),
		validation.Field(&p.DeviceTime, validation.Required,
			validation.Min(MinDeviceTime), validation.Max(MaxDeviceTime)),
	)
}

// Key returns the idempotency key of the position.
func (p Position) Key() string {
	return p.DeviceID + "|" + p.DeviceTime.UTC().Format(time.RFC3339Nano)
}

// MarshalAttributes encodes the attribute set as JSON text.
func (p Position) MarshalAttributes() string {
	if len(p.Attributes) == 0 {
		return "{}"
	}
	b, err := json.Marshal(p.Attributes)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// UnmarshalAttributes decodes a JSON attribute set into scalar values.
func UnmarshalAttributes(data string) Attributes {
	raw := map[string]interface{}{}
	if err := decodeJSON([]byte(data), &raw); err != nil {
		return Attributes{}
	}
	return normalizeAttributes(raw)
}

func roundCoordinate(v float64) float64 {
	return math.Round(v*coordinatePrecision) / coordinatePrecision
}
