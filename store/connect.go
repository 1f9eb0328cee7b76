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
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"
)

// ConnectFunc opens a DataStore
type ConnectFunc func(ctx context.Context) (DataStore, error)

// ConnectWithRetry calls connect until it succeeds, at most attempts times,
// waiting interval between attempts.
func ConnectWithRetry(
	ctx context.Context,
	attempts int,
	interval time.Duration,
	connect ConnectFunc,
) (DataStore, error) {
	l := log.FromContext(ctx)
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; ; i++ {
		var ds DataStore
		ds, err = connect(ctx)
		if err == nil {
			return ds, nil
		}
		if i >= attempts {
			break
		}
		l.Warnf("store: connection attempt %d/%d failed: %s", i, attempts, err)
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "store: connection aborted")
		}
	}
	return nil, errors.Wrapf(err, "store: giving up after %d attempts", attempts)
}
