package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonwraymond/ncmat/catalog"
	"github.com/jonwraymond/ncmat/config"
	"github.com/jonwraymond/ncmat/factory"
	"github.com/jonwraymond/ncmat/health"
	"github.com/jonwraymond/ncmat/observe"
	"github.com/jonwraymond/ncmat/registry"
	"github.com/jonwraymond/ncmat/resilience"
)

// app is the wired material stack shared by all commands.
type app struct {
	cfg      *config.Config
	obs      observe.Observer
	catalog  *catalog.Catalog
	registry *registry.Registry
	factory  *factory.Factory
	limiter  *resilience.Bulkhead
	health   *health.Aggregator
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	oc := cfg.ObserveConfig()
	oc.Version = version
	oc.Output = logOut

	obs, err := observe.NewObserver(ctx, oc)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a, err := wire(cfg, obs)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	return a, nil
}

func wire(cfg *config.Config, obs observe.Observer) (*app, error) {
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, err
	}
	metrics, err := observe.MetricsFromObserver(obs)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		obs:      obs,
		registry: registry.New(),
		health:   health.NewAggregator(),
	}

	cc := cfg.CatalogConfig()
	cc.Observer = metrics
	a.catalog = catalog.New(cc)

	fc := factory.Config{
		Registry:           a.registry,
		Service:            a.catalog,
		DefaultTemperature: cfg.Factory.DefaultTemperature,
		Metrics:            metrics,
		Middleware:         mw,
	}
	if bc, ok := cfg.BulkheadConfig(); ok {
		a.limiter = resilience.NewBulkhead(bc)
		fc.Limiter = a.limiter
	}
	a.factory, err = factory.New(fc)
	if err != nil {
		return nil, err
	}

	a.health.Register(health.NewStoreChecker(a.catalog.Files(), health.StoreCheckerConfig{}))
	a.health.Register(health.NewStoreChecker(a.factory.BaseStore(), health.StoreCheckerConfig{}))
	a.health.Register(health.NewStoreChecker(a.factory.DerivedStore(), health.StoreCheckerConfig{}))
	if a.limiter != nil {
		a.health.Register(health.NewBulkheadChecker("builds", a.limiter))
	}
	return a, nil
}

func (a *app) Close(ctx context.Context) error {
	return a.obs.Shutdown(ctx)
}

// baseName returns the registered name of m's base material.
func (a *app) baseName(m *registry.Material) string {
	if m.Base == registry.NoBase {
		return "-"
	}
	if b := a.registry.Lookup(m.Base); b != nil {
		return b.Name
	}
	return "?"
}
