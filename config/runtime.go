package config

import (
	"context"
	"errors"

	"github.com/jonwraymond/cfgrid/cfcache"
	"github.com/jonwraymond/cfgrid/ftmachine"
	"github.com/jonwraymond/cfgrid/observe"
)

// Runtime is a cache and gridding machine wired to one observer.
type Runtime struct {
	Observer observe.Observer
	Cache    *cfcache.Cache
	Machine  *ftmachine.Machine
}

// Open validates cfg and builds its runtime. Close releases the telemetry
// providers.
func Open(ctx context.Context, cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, err
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}

	cacheOpts := append(cfg.CacheOptions(),
		cfcache.WithLogger(obs.Logger()),
		cfcache.WithMetrics(mw.Metrics()),
	)
	cache, err := cfcache.New(cacheOpts...)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}

	variant, err := cfg.Variant()
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	machineOpts := append(cfg.MachineOptions(),
		ftmachine.WithLogger(obs.Logger()),
		ftmachine.WithMetrics(mw.Metrics()),
		ftmachine.WithTracer(mw.Tracer()),
	)
	machine, err := ftmachine.New(variant, cache, machineOpts...)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	return &Runtime{Observer: obs, Cache: cache, Machine: machine}, nil
}

// Close flushes the cache index and shuts the observer down.
func (r *Runtime) Close(ctx context.Context) error {
	return errors.Join(r.Cache.Flush(ctx), r.Observer.Shutdown(ctx))
}
