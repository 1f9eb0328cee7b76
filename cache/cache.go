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

// Package cache keeps the short-lived device list served by the provider.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/utils"
)

// Entry is a cached device list and the time it was stored.
type Entry struct {
	Devices  []model.Device `json:"devices"`
	StoredAt time.Time      `json:"stored_at"`
}

// DeviceCache stores the last device list fetched from the provider.
//
//go:generate ../utils/mockgen.sh
type DeviceCache interface {
	// Get returns the cached entry, or nil when there is none or it expired
	Get(ctx context.Context) (*Entry, error)
	Set(ctx context.Context, devices []model.Device) error
}

func copyDevices(devices []model.Device) []model.Device {
	c := make([]model.Device, len(devices))
	copy(c, devices)
	return c
}

// Memory is an in-process DeviceCache with an explicit TTL and clock.
type Memory struct {
	clock utils.Clock
	ttl   time.Duration

	mu       sync.RWMutex
	devices  []model.Device
	storedAt time.Time
	set      bool
}

// NewMemory returns a Memory cache; a nil clock uses the wall clock.
func NewMemory(ttl time.Duration, clock utils.Clock) *Memory {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &Memory{
		clock: clock,
		ttl:   ttl,
	}
}

func (m *Memory) Get(ctx context.Context) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set || m.clock.Now().Sub(m.storedAt) >= m.ttl {
		return nil, nil
	}
	return &Entry{
		Devices:  copyDevices(m.devices),
		StoredAt: m.storedAt,
	}, nil
}

func (m *Memory) Set(ctx context.Context, devices []model.Device) error {
	stored := copyDevices(devices)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = stored
	m.storedAt = m.clock.Now()
	m.set = true
	return nil
}

// Nop never holds anything.
type Nop struct{}

func (Nop) Get(context.Context) (*Entry, error) { return nil, nil }
func (Nop) Set(context.Context, []model.Device) error { return nil }
