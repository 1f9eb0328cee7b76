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

package nats

import (
	"context"
	"time"

	natsio "github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mendersoftware/go-lib-micro/log"

	"github.com/thumbworx/fleetconnect/model"
)

const (
	// Set reconnect buffer size in bytes (10 MB)
	reconnectBufSize = 10 * 1024 * 1024
	// Set reconnect interval to 1 second
	reconnectWaitTime = 1 * time.Second
)

// Client is the nats client
//
//go:generate ../../utils/mockgen.sh
type Client interface {
	PublishLiveEvent(ctx context.Context, event *model.LiveEvent) error
	ChanSubscribe(subject string, ch chan *natsio.Msg) (*natsio.Subscription, error)
	Close()
}

// NewClient returns a new nats client publishing live events on subject
func NewClient(url, subject string, opts ...natsio.Option) (Client, error) {
	natsClient, err := natsio.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &client{
		nats:    natsClient,
		subject: subject,
	}, nil
}

// NewClientWithDefaults returns a new nats client with default options
func NewClientWithDefaults(url, subject string) (Client, error) {
	l := log.NewEmpty()

	natsClient, err := NewClient(url, subject,
		func(o *natsio.Options) error {
			o.AllowReconnect = true
			o.MaxReconnect = -1
			o.ReconnectBufSize = reconnectBufSize
			o.ReconnectWait = reconnectWaitTime
			o.RetryOnFailedConnect = true
			o.ClosedCB = func(_ *natsio.Conn) {
				l.Info("nats client closed the connection")
			}
			o.DisconnectedErrCB = func(_ *natsio.Conn, e error) {
				if e != nil {
					l.Warnf("nats client disconnected, err: %v", e)
				}
			}
			o.ReconnectedCB = func(_ *natsio.Conn) {
				l.Warn("nats client reconnected")
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return natsClient, nil
}

type client struct {
	nats    *natsio.Conn
	subject string
}

// PublishLiveEvent encodes the event with msgpack and publishes it on the
// configured subject.
func (c *client) PublishLiveEvent(ctx context.Context, event *model.LiveEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "nats: failed to encode live event")
	}
	return c.nats.Publish(c.subject, data)
}

func (c *client) ChanSubscribe(subject string,
	channel chan *natsio.Msg) (*natsio.Subscription, error) {
	return c.nats.ChanSubscribe(subject, channel)
}

func (c *client) Close() {
	c.nats.Close()
}
