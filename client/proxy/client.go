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

package proxy

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

// ErrProxy is returned when the proxy answers with an error or garbage.
var ErrProxy = errors.New("proxy: error response")

// Resource is a collection served by the fallback proxy
type Resource string

// Proxy resources
const (
	// ResourcePositions makes the proxy query the provider on our behalf
	ResourcePositions Resource = "/api/traccar/positions"
	// ResourcePositionsCached is served from the proxy's own cache
	ResourcePositionsCached Resource = "/api/positions_cached"

	HealthCheckURI = "/health"
)

const (
	defaultTimeout = time.Duration(10) * time.Second
)

// Client is the fallback proxy client
//
//go:generate ../../utils/mockgen.sh
type Client interface {
	Fetch(ctx context.Context, resource Resource) ([]model.RawRecord, error)
	CheckHealth(ctx context.Context) error
}

type ClientOptions struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewClient returns a new fallback proxy client
func NewClient(url string, opts ...ClientOptions) Client {
	var clientOpts = ClientOptions{
		Client:  &http.Client{},
		Timeout: defaultTimeout,
	}
	for _, opt := range opts {
		if opt.Client != nil {
			clientOpts.Client = opt.Client
		}
		if opt.Timeout > 0 {
			clientOpts.Timeout = opt.Timeout
		}
	}

	return &client{
		url:     strings.TrimSuffix(url, "/"),
		client:  clientOpts.Client,
		timeout: clientOpts.Timeout,
	}
}

type client struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

func (c *client) do(ctx context.Context, uri string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+uri, nil)
	if err != nil {
		return nil, errors.Wrap(ErrProxy, err.Error())
	}
	rsp, err := c.client.Do(req)
	if err != nil {
		if fcclient.IsTimeout(err) {
			return nil, errors.Wrapf(fcclient.ErrTimeout, "proxy: %s after %s", uri, c.timeout)
		}
		return nil, errors.Wrapf(ErrProxy, "%s request failed: %s", uri, err)
	}
	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		rsp.Body.Close()
		return nil, errors.Wrapf(ErrProxy, "%s: unexpected HTTP status %s", uri, rsp.Status)
	}
	return rsp, nil
}

func (c *client) Fetch(ctx context.Context, resource Resource) ([]model.RawRecord, error) {
	l := log.FromContext(ctx)
	l.Debugf("proxy: fetching %s", resource)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rsp, err := c.do(ctx, string(resource))
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()

	records, err := model.DecodeRawRecords(rsp.Body)
	if err != nil {
		if fcclient.IsTimeout(err) {
			return nil, errors.Wrapf(fcclient.ErrTimeout,
				"proxy: %s after %s", resource, c.timeout)
		}
		return nil, errors.Wrapf(ErrProxy, "%s: error parsing response: %s", resource, err)
	}
	return records, nil
}

func (c *client) CheckHealth(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	rsp, err := c.do(ctx, HealthCheckURI)
	if err != nil {
		return err
	}
	rsp.Body.Close()
	return nil
}
