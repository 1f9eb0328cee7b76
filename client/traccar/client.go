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

package traccar

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	fcclient "github.com/thumbworx/fleetconnect/client"
	"github.com/thumbworx/fleetconnect/model"
)

// Traccar errors
var (
	ErrAuthFailure = errors.New("traccar: credentials rejected")
	ErrUpstream    = errors.New("traccar: upstream error")
)

// Resource is a collection served by the Traccar REST API
type Resource string

// Traccar resources
const (
	ResourceDevices   Resource = "/api/devices"
	ResourcePositions Resource = "/api/positions"
)

const (
	defaultTimeout = time.Duration(15) * time.Second
)

// Client is the Traccar client
//
//go:generate ../../utils/mockgen.sh
type Client interface {
	Fetch(ctx context.Context, resource Resource) ([]model.RawRecord, error)
}

type ClientOptions struct {
	Client   *http.Client
	User     string
	Password string
	Timeout  time.Duration
}

// NewClient returns a new Traccar client
func NewClient(url string, opts ...ClientOptions) Client {
	var clientOpts = ClientOptions{
		Client:  &http.Client{},
		Timeout: defaultTimeout,
	}
	for _, opt := range opts {
		if opt.Client != nil {
			clientOpts.Client = opt.Client
		}
		if opt.User != "" {
			clientOpts.User = opt.User
			clientOpts.Password = opt.Password
		}
		if opt.Timeout > 0 {
			clientOpts.Timeout = opt.Timeout
		}
	}

	return &client{
		url:      strings.TrimSuffix(url, "/"),
		client:   clientOpts.Client,
		user:     clientOpts.User,
		password: clientOpts.Password,
		timeout:  clientOpts.Timeout,
	}
}

type client struct {
	url      string
	client   *http.Client
	user     string
	password string
	timeout  time.Duration
}

func (c *client) Fetch(ctx context.Context, resource Resource) ([]model.RawRecord, error) {
	l := log.FromContext(ctx)
	l.Debugf("traccar: fetching %s", resource)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+string(resource), nil)
	if err != nil {
		return nil, errors.Wrap(ErrUpstream, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	rsp, err := c.client.Do(req)
	if err != nil {
		if fcclient.IsTimeout(err) {
			return nil, errors.Wrapf(fcclient.ErrTimeout,
				"traccar: %s after %s", resource, c.timeout)
		}
		return nil, errors.Wrapf(ErrUpstream, "%s request failed: %s", resource, err)
	}
	defer rsp.Body.Close()

	switch {
	case rsp.StatusCode == http.StatusUnauthorized || rsp.StatusCode == http.StatusForbidden:
		return nil, errors.Wrapf(ErrAuthFailure, "%s: %s", resource, rsp.Status)
	case rsp.StatusCode < 200 || rsp.StatusCode >= 300:
		return nil, errors.Wrapf(ErrUpstream,
			"%s: unexpected HTTP status %s", resource, rsp.Status)
	}

	records, err := model.DecodeRawRecords(rsp.Body)
	if err != nil {
		if fcclient.IsTimeout(err) {
			return nil, errors.Wrapf(fcclient.ErrTimeout,
				"traccar: %s after %s", resource, c.timeout)
		}
		return nil, errors.Wrapf(ErrUpstream, "%s: error parsing response: %s", resource, err)
	}
	return records, nil
}
