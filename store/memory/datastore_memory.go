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

// Package memory is an in-process DataStore for development setups and
// tests. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"

	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
)

type entry struct {
	position model.Position
	seq      uint64
}

// DataStoreMemory is the in-memory store.DataStore
type DataStoreMemory struct {
	positions cmap.ConcurrentMap[string, entry]
	seq       uint64
}

// NewDataStoreMemory returns an empty store
func NewDataStoreMemory() *DataStoreMemory {
	return &DataStoreMemory{
		positions: cmap.New[entry](),
	}
}

var _ store.DataStore = (*DataStoreMemory)(nil)

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(store.ErrStorage, err.Error())
	}
	return nil
}

func (db *DataStoreMemory) Ping(ctx context.Context) error {
	return checkContext(ctx)
}

func (db *DataStoreMemory) UpsertPositions(
	ctx context.Context,
	positions []model.Position,
) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	for _, p := range store.ValidPositions(ctx, positions) {
		p.DeviceTime = p.DeviceTime.UTC()
		// the sequence number may skip values on duplicates; only its
		// order matters
		db.positions.SetIfAbsent(p.Key(), entry{
			position: p,
			seq:      atomic.AddUint64(&db.seq, 1),
		})
	}
	return nil
}

// sorted returns the entries by device time, newest first, then by
// insertion order.
func sorted(entries []entry) []entry {
	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].position.DeviceTime, entries[j].position.DeviceTime
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}

func (db *DataStoreMemory) snapshot() []entry {
	entries := make([]entry, 0, db.positions.Count())
	for item := range db.positions.IterBuffered() {
		entries = append(entries, item.Val)
	}
	return entries
}

func positionsOf(entries []entry) []model.Position {
	positions := make([]model.Position, len(entries))
	for i, e := range entries {
		positions[i] = e.position
	}
	return positions
}

func (db *DataStoreMemory) LatestPositions(
	ctx context.Context,
	limit int,
) ([]model.Position, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []model.Position{}, nil
	}
	entries := sorted(db.snapshot())
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return positionsOf(entries), nil
}

func (db *DataStoreMemory) LatestPerDevice(ctx context.Context) ([]model.Position, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	latest := []entry{}
	for _, e := range sorted(db.snapshot()) {
		if _, ok := seen[e.position.DeviceID]; ok {
			continue
		}
		seen[e.position.DeviceID] = struct{}{}
		latest = append(latest, e)
	}
	return positionsOf(latest), nil
}

func (db *DataStoreMemory) CountPositions(ctx context.Context) (int64, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	return int64(db.positions.Count()), nil
}

func (db *DataStoreMemory) Close() error {
	return nil
}
