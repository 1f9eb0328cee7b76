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

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/utils"
)

// KeyDevices is the redis key holding the cached device list
const KeyDevices = "fleetconnect:devices"

// Redis is a DeviceCache shared between service instances; expiry is
// delegated to the redis TTL.
type Redis struct {
	client *redis.Client
	clock  utils.Clock
	ttl    time.Duration
}

// NewRedis connects to the redis server at url
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "cache: invalid redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "cache: failed to reach redis")
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing redis client
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		clock:  utils.RealClock{},
		ttl:    ttl,
	}
}

func (r *Redis) Get(ctx context.Context) (*Entry, error) {
	data, err := r.client.Get(ctx, KeyDevices).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "cache: failed to read devices")
	}
	entry := &Entry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, errors.Wrap(err, "cache: corrupt device list")
	}
	return entry, nil
}

func (r *Redis) Set(ctx context.Context, devices []model.Device) error {
	if devices == nil {
		devices = []model.Device{}
	}
	data, err := json.Marshal(Entry{
		Devices:  devices,
		StoredAt: r.clock.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "cache: failed to encode devices")
	}
	return errors.Wrap(
		r.client.SetEx(ctx, KeyDevices, data, r.ttl).Err(),
		"cache: failed to store devices",
	)
}

// Close closes the underlying redis client
func (r *Redis) Close() error {
	return r.client.Close()
}
