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
	"sync"
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	"github.com/thumbworx/fleetconnect/client/nats"
	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
)

const (
	defaultWriteBehindWorkers   = 2
	defaultWriteBehindQueueSize = 64
	defaultWriteBehindTimeout   = 10 * time.Second
)

// WriteBehindConfig sizes the write-behind worker pool
type WriteBehindConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single job, store write and publish included
	Timeout time.Duration
}

type writeJob struct {
	requestID  string
	resolvedAt time.Time
	positions  []model.Position
}

// WriteBehind persists live positions in the background. Jobs never block
// the submitter: when the queue is full the batch is dropped.
type WriteBehind struct {
	store     store.DataStore
	publisher nats.Client
	timeout   time.Duration

	jobs   chan writeJob
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewWriteBehind starts the workers
func NewWriteBehind(
	ds store.DataStore,
	publisher nats.Client,
	config WriteBehindConfig,
) *WriteBehind {
	if config.Workers <= 0 {
		config.Workers = defaultWriteBehindWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaultWriteBehindQueueSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultWriteBehindTimeout
	}
	wb := &WriteBehind{
		store:     ds,
		publisher: publisher,
		timeout:   config.Timeout,
		jobs:      make(chan writeJob, config.QueueSize),
	}
	wb.wg.Add(config.Workers)
	for i := 0; i < config.Workers; i++ {
		go wb.worker()
	}
	return wb
}

func (wb *WriteBehind) worker() {
	defer wb.wg.Done()
	for job := range wb.jobs {
		wb.process(job)
	}
}

// Submit queues the batch and reports whether it was accepted.
func (wb *WriteBehind) Submit(
	requestID string,
	resolvedAt time.Time,
	positions []model.Position,
) bool {
	if len(positions) == 0 {
		return false
	}
	l := log.NewEmpty().F(log.Ctx{"request_id": requestID})
	batch := make([]model.Position, len(positions))
	copy(batch, positions)

	wb.mu.RLock()
	defer wb.mu.RUnlock()
	if wb.closed {
		l.Warnf("write-behind: shutting down, dropping %d positions", len(batch))
		return false
	}
	select {
	case wb.jobs <- writeJob{
		requestID:  requestID,
		resolvedAt: resolvedAt,
		positions:  batch,
	}:
		return true
	default:
		l.Warnf("write-behind: queue full, dropping %d positions", len(batch))
		return false
	}
}

// process runs detached from the request that produced the job.
func (wb *WriteBehind) process(job writeJob) {
	l := log.NewEmpty().F(log.Ctx{"request_id": job.requestID})
	defer func() {
		if r := recover(); r != nil {
			l.Errorf("write-behind: panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), wb.timeout)
	defer cancel()
	ctx = log.WithContext(ctx, l)

	if err := wb.store.UpsertPositions(ctx, job.positions); err != nil {
		l.Errorf("write-behind: failed to persist %d positions: %s",
			len(job.positions), err)
		return
	}
	l.Debugf("write-behind: persisted %d positions", len(job.positions))

	if wb.publisher == nil {
		return
	}
	err := wb.publisher.PublishLiveEvent(ctx, &model.LiveEvent{
		RequestID:  job.requestID,
		ResolvedAt: job.resolvedAt,
		Positions:  job.positions,
	})
	if err != nil {
		l.Warnf("write-behind: failed to publish live event: %s", err)
	}
}

// Shutdown stops accepting jobs and waits for the queue to drain or for
// ctx to expire.
func (wb *WriteBehind) Shutdown(ctx context.Context) error {
	wb.mu.Lock()
	if !wb.closed {
		wb.closed = true
		close(wb.jobs)
	}
	wb.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wb.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "jobs left unfinished")
	}
}
