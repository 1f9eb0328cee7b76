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

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	fcclient "github.com/thumbworx/fleetconnect/client"
	"github.com/thumbworx/fleetconnect/client/proxy"
	"github.com/thumbworx/fleetconnect/client/traccar"
	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
	"github.com/thumbworx/fleetconnect/utils"
)

// OutcomeKind classifies a single tier attempt
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeEmpty
	OutcomeTimeout
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Outcome is the typed result of one tier attempt. Items is only set for
// OutcomeOK, Err only for OutcomeTimeout and OutcomeError. At is set when
// the items were fetched before the attempt.
type Outcome[T any] struct {
	Kind  OutcomeKind
	Items []T
	Err   error
	At    time.Time
}

// Tier is one source the pipeline can resolve from.
type Tier[T any] interface {
	// Name identifies the tier in logs
	Name() string
	Source() model.Source
	Attempt(ctx context.Context) Outcome[T]
}

type (
	PositionTier = Tier[model.Position]
	DeviceTier   = Tier[model.Device]
)

// outcomeOf classifies the result of a fetch. An empty result is a miss
// unless emptyIsOK is set.
func outcomeOf[T any](items []T, err error, emptyIsOK bool) Outcome[T] {
	switch {
	case err != nil && fcclient.IsTimeout(err):
		return Outcome[T]{Kind: OutcomeTimeout, Err: err}
	case err != nil:
		return Outcome[T]{Kind: OutcomeError, Err: err}
	case len(items) == 0 && !emptyIsOK:
		return Outcome[T]{Kind: OutcomeEmpty}
	}
	if items == nil {
		items = []T{}
	}
	return Outcome[T]{Kind: OutcomeOK, Items: items}
}

type boundedResult[T any] struct {
	value T
	err   error
}

// runBounded runs fetch in its own goroutine and waits at most timeout for
// its result. Once the deadline passes the call is abandoned and whatever
// it returns later is dropped.
func runBounded[T any](
	ctx context.Context,
	timeout time.Duration,
	fetch func(ctx context.Context) (T, error),
) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan boundedResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- boundedResult[T]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		value, err := fetch(ctx)
		done <- boundedResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrapf(fcclient.ErrTimeout,
			"abandoned after %s: %s", timeout, ctx.Err())
	}
}

// liveTier resolves positions from the tracking provider.
type liveTier struct {
	client  traccar.Client
	clock   utils.Clock
	timeout time.Duration
}

func (t *liveTier) Name() string         { return "traccar" }
func (t *liveTier) Source() model.Source { return model.SourceLive }

func (t *liveTier) Attempt(ctx context.Context) Outcome[model.Position] {
	raws, err := runBounded(ctx, t.timeout,
		func(ctx context.Context) ([]model.RawRecord, error) {
			return t.client.Fetch(ctx, traccar.ResourcePositions)
		})
	if err != nil {
		return outcomeOf[model.Position](nil, err, false)
	}
	return outcomeOf(normalizePositions(ctx, t.Name(), raws, t.clock.Now()), nil, false)
}

// proxyTier resolves positions from the fallback proxy cache.
type proxyTier struct {
	client   proxy.Client
	resource proxy.Resource
	clock    utils.Clock
	timeout  time.Duration
}

func (t *proxyTier) Name() string         { return "proxy" }
func (t *proxyTier) Source() model.Source { return model.SourceFallbackProxy }

func (t *proxyTier) Attempt(ctx context.Context) Outcome[model.Position] {
	raws, err := runBounded(ctx, t.timeout,
		func(ctx context.Context) ([]model.RawRecord, error) {
			return t.client.Fetch(ctx, t.resource)
		})
	if err != nil {
		return outcomeOf[model.Position](nil, err, false)
	}
	return outcomeOf(normalizePositions(ctx, t.Name(), raws, t.clock.Now()), nil, false)
}

// snapshotTier reads the latest persisted positions. An empty snapshot is
// still an answer.
type snapshotTier struct {
	store   store.DataStore
	limit   int
	timeout time.Duration
}

func (t *snapshotTier) Name() string         { return "store" }
func (t *snapshotTier) Source() model.Source { return model.SourceDurableSnapshot }

func (t *snapshotTier) Attempt(ctx context.Context) Outcome[model.Position] {
	positions, err := runBounded(ctx, t.timeout,
		func(ctx context.Context) ([]model.Position, error) {
			return t.store.LatestPositions(ctx, t.limit)
		})
	return outcomeOf(positions, err, true)
}

func normalizePositions(
	ctx context.Context,
	tier string,
	raws []model.RawRecord,
	now time.Time,
) []model.Position {
	positions, errs := model.NormalizePositions(raws, now)
	if len(errs) > 0 {
		l := log.FromContext(ctx)
		for _, err := range errs {
			l.Warnf("%s: dropping record: %s", tier, err)
		}
	}
	return positions
}
