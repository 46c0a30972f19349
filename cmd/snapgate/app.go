package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/snapgate/cache"
	"github.com/jonwraymond/snapgate/config"
	"github.com/jonwraymond/snapgate/dispatch"
	"github.com/jonwraymond/snapgate/gate"
	"github.com/jonwraymond/snapgate/observe"
	"github.com/jonwraymond/snapgate/pipeline"
	"github.com/jonwraymond/snapgate/source"
)

// app holds the components one command needs. Commands that only touch the
// cache skip the dispatcher and pipeline.
type app struct {
	cfg      *config.Config
	observer observe.Observer
	inst     observe.Instruments
	logger   observe.Logger
	cache    *cache.Cache
	pipeline *pipeline.Pipeline
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Observe.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	obs, err := observe.NewObserver(ctx, cfg.ObserverConfig())
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	inst, err := observe.InstrumentsFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("observe: %w", err)
	}

	store, err := cfg.OpenStore()
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	c, err := cache.New(store, cfg.CachePolicy(),
		cache.WithLogger(inst.Logger),
		cache.WithMetrics(inst.Metrics),
	)
	if err != nil {
		_ = store.Close()
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	return &app{
		cfg:      cfg,
		observer: obs,
		inst:     inst,
		logger:   inst.Logger,
		cache:    c,
	}, nil
}

// withPipeline wires the source, dispatcher, gates and pipeline.
func (a *app) withPipeline() error {
	if a.cfg.Source.BaseURL == "" {
		return errors.New("source.base_url is required (set it in the config file or SNAPGATE_SOURCE_BASE_URL)")
	}

	d := dispatch.New(a.cfg.DispatcherConfig(),
		dispatch.WithMiddleware(a.inst.Middleware),
		dispatch.WithLogger(a.logger),
	)

	primary, err := source.NewHTTPSource(a.cfg.PrimarySource(),
		source.WithBreaker(a.cfg.Breaker()),
		source.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	gateCfg, err := a.cfg.EngineConfig()
	if err != nil {
		return err
	}
	engineOpts := []gate.EngineOption{
		gate.WithEngineLogger(a.logger),
		gate.WithEngineMetrics(a.inst.Metrics),
	}
	if supCfg, ok := a.cfg.SupplementalSource(); ok {
		supplemental, err := source.NewHTTPSource(supCfg,
			source.WithBreaker(a.cfg.Breaker()),
			source.WithLogger(a.logger),
		)
		if err != nil {
			return err
		}
		// Supplemental fetches share the primary rate budget.
		engineOpts = append(engineOpts, gate.WithEscalation(d.ForOperation("supplemental"), supplemental.Fetch))
	}
	engine, err := gate.NewEngine(gateCfg, engineOpts...)
	if err != nil {
		return err
	}

	validation, err := gate.NewValidationGate(
		gate.WithRankField(a.cfg.Gate.RankField),
		gate.WithValidationMetrics(a.inst.Metrics),
	)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Config{
		Retry:             a.cfg.RetryPolicy(),
		FetchOnReplayMiss: a.cfg.Pipeline.FetchOnReplayMiss,
	}, a.cache, d.ForOperation("primary"), primary.Fetch, engine,
		pipeline.WithLogger(a.logger),
		pipeline.WithValidationGate(validation),
	)
	if err != nil {
		return err
	}
	a.pipeline = p
	return nil
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.cache.Close(), a.observer.Shutdown(ctx))
}
