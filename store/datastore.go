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
	"errors"

	"github.com/thumbworx/fleetconnect/model"
)

// DataStore interface for DataStore services
//
//go:generate ../utils/mockgen.sh
type DataStore interface {
	Ping(ctx context.Context) error
	// UpsertPositions inserts the positions not yet stored; positions
	// already present for the same device and device time are left as is.
	UpsertPositions(ctx context.Context, positions []model.Position) error
	// LatestPositions returns up to limit positions, newest device time
	// first.
	LatestPositions(ctx context.Context, limit int) ([]model.Position, error)
	// LatestPerDevice returns the newest position of every device.
	LatestPerDevice(ctx context.Context) ([]model.Position, error)
	CountPositions(ctx context.Context) (int64, error)
	Close() error
}

var (
	ErrStorage = errors.New("store: storage failure")
)
