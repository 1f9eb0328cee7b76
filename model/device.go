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
	"strings"
	"time"
)

// Values for the device status attribute
const (
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
	DeviceStatusUnknown = "unknown"
)

// Device represents a tracked vehicle and its attributes
type Device struct {
	ID         string    `json:"id" bson:"_id"`
	Name       string    `json:"name" bson:"name"`
	Status     string    `json:"status" bson:"status"`
	LastUpdate time.Time `json:"lastUpdate" bson:"last_update,omitempty"`
}

// NormalizeDeviceStatus maps a provider status onto the supported values.
func NormalizeDeviceStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case DeviceStatusOnline:
		return DeviceStatusOnline
	case DeviceStatusOffline:
		return DeviceStatusOffline
	default:
		return DeviceStatusUnknown
	}
}

// DeviceFromPosition projects the latest known position of a device into a
// Device record; the device is online only if the position is no older
// than freshness.
func DeviceFromPosition(p Position, now time.Time, freshness time.Duration) Device {
	status := DeviceStatusOffline
	if !p.DeviceTime.IsZero() && now.Sub(p.DeviceTime) <= freshness {
		status = DeviceStatusOnline
	}
	return Device{
		ID:         p.DeviceID,
		Status:     status,
		LastUpdate: p.DeviceTime,
	}
}
