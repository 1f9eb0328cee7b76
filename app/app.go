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
	"time"

	"github.com/google/uuid"
	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/mendersoftware/go-lib-micro/requestid"
	"github.com/pkg/errors"

	"github.com/thumbworx/fleetconnect/cache"
	"github.com/thumbworx/fleetconnect/client/nats"
	"github.com/thumbworx/fleetconnect/client/proxy"
	"github.com/thumbworx/fleetconnect/client/traccar"
	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
	"github.com/thumbworx/fleetconnect/utils"
)

// App errors
var (
	// ErrExhausted is returned when no tier could answer, which only
	// happens when reading the durable store fails.
	ErrExhausted = errors.New("all position sources exhausted")
)

// App interface describes app objects
//
//go:generate ../utils/mockgen.sh
type App interface {
	HealthCheck(ctx context.Context) model.Health
	ResolvePositions(ctx context.Context) (*model.ResolutionResult, error)
	ResolveCachedPositions(ctx context.Context) (*model.ResolutionResult, error)
	ResolveProxyPositions(ctx context.Context) (*model.ResolutionResult, error)
	ResolveDevices(ctx context.Context) (*model.DeviceResolution, error)
	Shutdown(timeout time.Duration)
	ShutdownDone()
}

// Config tunes the app; zero values select the defaults.
type Config struct {
	UpstreamTimeout    time.Duration
	ProxyTimeout       time.Duration
	StoreTimeout       time.Duration
	HealthProbeTimeout time.Duration

	// FreshnessWindow is how long a device stays online after its last
	// persisted position.
	FreshnessWindow time.Duration

	PositionsFallbackLimit       int
	CachedPositionsFallbackLimit int

	WriteBehind WriteBehindConfig

	DeviceCache cache.DeviceCache
	// Publisher receives the live batches once persisted; optional.
	Publisher nats.Client
	Clock     utils.Clock
}

const (
	defaultUpstreamTimeout    = 15 * time.Second
	defaultProxyTimeout       = 10 * time.Second
	defaultStoreTimeout       = 10 * time.Second
	defaultHealthProbeTimeout = 5 * time.Second
	defaultFreshnessWindow    = 10 * time.Minute

	defaultPositionsFallbackLimit       = 50
	defaultCachedPositionsFallbackLimit = 20
)

func (c *Config) setDefaults() {
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = defaultUpstreamTimeout
	}
	if c.ProxyTimeout <= 0 {
		c.ProxyTimeout = defaultProxyTimeout
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	if c.HealthProbeTimeout <= 0 {
		c.HealthProbeTimeout = defaultHealthProbeTimeout
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = defaultFreshnessWindow
	}
	if c.PositionsFallbackLimit <= 0 {
		c.PositionsFallbackLimit = defaultPositionsFallbackLimit
	}
	if c.CachedPositionsFallbackLimit <= 0 {
		c.CachedPositionsFallbackLimit = defaultCachedPositionsFallbackLimit
	}
	if c.DeviceCache == nil {
		c.DeviceCache = cache.Nop{}
	}
	if c.Clock == nil {
		c.Clock = utils.RealClock{}
	}
}

// app is an app object
type app struct {
	store    store.DataStore
	upstream traccar.Client
	proxy    proxy.Client

	positionTiers       []PositionTier
	cachedPositionTiers []PositionTier
	proxyPositionTiers  []PositionTier
	deviceTiers         []DeviceTier

	writeBehind  *WriteBehind
	shutdownDone chan struct{}
	Config
}

// New initializes the position resolution App
func New(
	ds store.DataStore,
	upstream traccar.Client,
	proxyClient proxy.Client,
	config ...Config,
) App {
	conf := Config{}
	if len(config) > 0 {
		conf = config[0]
	}
	conf.setDefaults()

	live := &liveTier{
		client:  upstream,
		clock:   conf.Clock,
		timeout: conf.UpstreamTimeout,
	}
	fallback := &proxyTier{
		client:   proxyClient,
		resource: proxy.ResourcePositionsCached,
		clock:    conf.Clock,
		timeout:  conf.ProxyTimeout,
	}
	return &app{
		store:    ds,
		upstream: upstream,
		proxy:    proxyClient,
		positionTiers: []PositionTier{
			live,
			fallback,
			&snapshotTier{
				store:   ds,
				limit:   conf.PositionsFallbackLimit,
				timeout: conf.StoreTimeout,
			},
		},
		cachedPositionTiers: []PositionTier{
			fallback,
			live,
			&snapshotTier{
				store:   ds,
				limit:   conf.CachedPositionsFallbackLimit,
				timeout: conf.StoreTimeout,
			},
		},
		proxyPositionTiers: []PositionTier{
			&proxyTier{
				client:   proxyClient,
				resource: proxy.ResourcePositions,
				clock:    conf.Clock,
				timeout:  conf.ProxyTimeout,
			},
			&snapshotTier{
				store:   ds,
				limit:   conf.PositionsFallbackLimit,
				timeout: conf.StoreTimeout,
			},
		},
		deviceTiers: []DeviceTier{
			&deviceCacheTier{cache: conf.DeviceCache},
			&liveDeviceTier{
				client:  upstream,
				cache:   conf.DeviceCache,
				timeout: conf.UpstreamTimeout,
			},
			&snapshotDeviceTier{
				store:     ds,
				clock:     conf.Clock,
				freshness: conf.FreshnessWindow,
				timeout:   conf.StoreTimeout,
			},
		},
		writeBehind:  NewWriteBehind(ds, conf.Publisher, conf.WriteBehind),
		shutdownDone: make(chan struct{}),
		Config:       conf,
	}
}

// withRequestID makes sure the context carries a request ID and a logger
// tagged with it.
func withRequestID(ctx context.Context) (context.Context, string) {
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
		ctx = requestid.WithContext(ctx, reqID)
		l := log.FromContext(ctx).F(log.Ctx{"request_id": reqID})
		ctx = log.WithContext(ctx, l)
	}
	return ctx, reqID
}

// resolve walks the tiers in order and returns the first answer.
func resolve[T any](ctx context.Context, tiers []Tier[T]) (Outcome[T], Tier[T], error) {
	l := log.FromContext(ctx)
	var out Outcome[T]
	for i, tier := range tiers {
		out = tier.Attempt(ctx)
		if out.Kind == OutcomeOK {
			if i > 0 {
				l.Infof("resolved from %s (%s)", tier.Name(), tier.Source())
			}
			return out, tier, nil
		}
		next := "none"
		if i+1 < len(tiers) {
			next = tiers[i+1].Name()
		}
		switch {
		case out.Kind == OutcomeEmpty:
			l.Infof("%s: no data, falling back to %s", tier.Name(), next)
		case errors.Is(out.Err, traccar.ErrAuthFailure):
			l.Errorf("%s: %s: %s, falling back to %s",
				tier.Name(), out.Kind, out.Err, next)
		default:
			l.Warnf("%s: %s: %s, falling back to %s",
				tier.Name(), out.Kind, out.Err, next)
		}
	}
	reason := out.Kind.String()
	if out.Err != nil {
		reason = out.Err.Error()
	}
	return out, nil, errors.Wrap(ErrExhausted, reason)
}

func (a *app) resolvePositions(
	ctx context.Context,
	tiers []PositionTier,
) (*model.ResolutionResult, error) {
	ctx, reqID := withRequestID(ctx)
	out, tier, err := resolve(ctx, tiers)
	if err != nil {
		log.FromContext(ctx).Error(err.Error())
		return nil, err
	}
	res := &model.ResolutionResult{
		Positions:  out.Items,
		Source:     tier.Source(),
		ResolvedAt: a.Clock.Now(),
	}
	if res.Source == model.SourceLive {
		a.writeBehind.Submit(reqID, res.ResolvedAt, res.Positions)
	}
	return res, nil
}

// ResolvePositions resolves the current positions: provider, then proxy
// cache, then the durable snapshot.
func (a *app) ResolvePositions(ctx context.Context) (*model.ResolutionResult, error) {
	return a.resolvePositions(ctx, a.positionTiers)
}

// ResolveCachedPositions is ResolvePositions with the proxy tried first.
func (a *app) ResolveCachedPositions(ctx context.Context) (*model.ResolutionResult, error) {
	return a.resolvePositions(ctx, a.cachedPositionTiers)
}

// ResolveProxyPositions asks the proxy to fetch from the provider on our
// behalf, then falls back to the durable snapshot.
func (a *app) ResolveProxyPositions(ctx context.Context) (*model.ResolutionResult, error) {
	return a.resolvePositions(ctx, a.proxyPositionTiers)
}

// ResolveDevices resolves the device list: cache, provider, then the
// devices seen in the durable snapshot. A cache hit is reported as resolved
// when the list was stored.
func (a *app) ResolveDevices(ctx context.Context) (*model.DeviceResolution, error) {
	ctx, _ = withRequestID(ctx)
	out, tier, err := resolve(ctx, a.deviceTiers)
	if err != nil {
		log.FromContext(ctx).Error(err.Error())
		return nil, err
	}
	resolvedAt := out.At
	if resolvedAt.IsZero() {
		resolvedAt = a.Clock.Now()
	}
	return &model.DeviceResolution{
		Devices:    out.Items,
		Source:     tier.Source(),
		ResolvedAt: resolvedAt,
	}, nil
}

// Shutdown stops accepting write-behind jobs and waits up to timeout for
// the queued ones.
func (a *app) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.writeBehind.Shutdown(ctx); err != nil {
		log.NewEmpty().Warnf("write-behind: %s", err)
	}
	close(a.shutdownDone)
}

func (a *app) ShutdownDone() {
	<-a.shutdownDone
}
