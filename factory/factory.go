package factory

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jonwraymond/ncmat/cache"
	"github.com/jonwraymond/ncmat/observe"
	"github.com/jonwraymond/ncmat/registry"
	"github.com/jonwraymond/ncmat/scatter"
)

const (
	// DefaultTemperature is used when a configuration sets no temperature, in kelvin.
	DefaultTemperature = 293.15

	// BaseDensity is the nominal density of base materials, in g/cm3.
	BaseDensity = 1.0

	// BasePrefix and DerivedPrefix prefix registered material names.
	BasePrefix    = "NCrystalBaseMat::"
	DerivedPrefix = "NCrystal::"

	// Store names used in telemetry.
	StoreBase    = "base"
	StoreDerived = "derived"
)

// Handle is a cached reference to a registered material.
type Handle = cache.Handle[*registry.Material]

// Config configures a Factory.
type Config struct {
	// Registry receives every constructed material. Required.
	Registry *registry.Registry

	// Service resolves configuration strings. Required.
	Service ModelService

	// DefaultTemperature applies to derived materials without a temperature.
	// Default: DefaultTemperature.
	DefaultTemperature float64

	// Limiter bounds concurrent derived builds. Optional.
	Limiter cache.Limiter

	// Metrics observes both stores. Optional.
	Metrics cache.Observer

	// Middleware traces and logs builds. Optional.
	Middleware *observe.Middleware
}

// Factory produces shared base and derived materials.
//
// Contract:
//   - Concurrency: safe for concurrent use. Each material is built at most
//     once per key until the registry drops it.
//   - Errors: failures are never cached; a later call retries from scratch.
type Factory struct {
	reg         *registry.Registry
	svc         ModelService
	defaultTemp float64
	mw          *observe.Middleware

	base    *cache.Store[*registry.Material]
	derived *cache.Store[*registry.Material]
}

// New creates a Factory.
func New(cfg Config) (*Factory, error) {
	if cfg.Registry == nil {
		return nil, errors.New("factory: registry is required")
	}
	if cfg.Service == nil {
		return nil, errors.New("factory: model service is required")
	}
	if cfg.DefaultTemperature == 0 {
		cfg.DefaultTemperature = DefaultTemperature
	}
	if !(cfg.DefaultTemperature > 0) || math.IsInf(cfg.DefaultTemperature, 0) {
		return nil, fmt.Errorf("factory: default temperature must be positive, got %g", cfg.DefaultTemperature)
	}
	if cfg.Middleware == nil {
		cfg.Middleware, _ = observe.Noop()
	}

	f := &Factory{
		reg:         cfg.Registry,
		svc:         cfg.Service,
		defaultTemp: cfg.DefaultTemperature,
		mw:          cfg.Middleware,
	}

	// Base builds run inside derived builds, so only the derived tier is
	// limited; a shared limit would deadlock at capacity.
	f.base = cache.NewStore(cache.StoreConfig[*registry.Material]{
		Name:     StoreBase,
		Validate: f.live,
		Observer: cfg.Metrics,
	})
	f.derived = cache.NewStore(cache.StoreConfig[*registry.Material]{
		Name:     StoreDerived,
		Validate: f.live,
		Observer: cfg.Metrics,
		Limiter:  cfg.Limiter,
	})
	return f, nil
}

// live reports whether the registry still holds the cached material.
func (f *Factory) live(h *Handle) bool {
	return f.reg.Lookup(h.Index) == h.Value
}

// Registry returns the backing registry.
func (f *Factory) Registry() *registry.Registry {
	return f.reg
}

// BaseStore returns the store of base materials.
func (f *Factory) BaseStore() *cache.Store[*registry.Material] {
	return f.base
}

// DerivedStore returns the store of derived materials.
func (f *Factory) DerivedStore() *cache.Store[*registry.Material] {
	return f.derived
}

// BaseMaterial returns the shared composition-only material for info.
func (f *Factory) BaseMaterial(ctx context.Context, info Info) (*Handle, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: no physics info", ErrMissingInfo)
	}
	spec, err := baseSpecFor(info)
	if err != nil {
		return nil, err
	}

	meta := observe.MaterialMeta{
		Store:   StoreBase,
		Key:     spec.key,
		Name:    BasePrefix + spec.key,
		Formula: spec.formula,
	}
	return f.base.GetOrCreate(ctx, spec.key, func(ctx context.Context) (*registry.Material, int, error) {
		return f.instrument(ctx, meta, func(ctx context.Context) (*registry.Material, error) {
			return f.reg.Register(meta.Name, spec.components, BaseDensity, DefaultTemperature)
		})
	})
}

// DerivedMaterial returns the shared material for the configuration string
// cfg, building it and its base material on first use.
func (f *Factory) DerivedMaterial(ctx context.Context, cfg string) (*Handle, error) {
	if err := cache.ValidateKey(cfg); err != nil {
		return nil, fmt.Errorf("%w: configuration %q: %w", ErrBadInput, cfg, err)
	}
	meta := observe.MaterialMeta{
		Store: StoreDerived,
		Key:   cfg,
		Name:  DerivedPrefix + cfg,
	}
	return f.derived.GetOrCreate(ctx, cfg, func(ctx context.Context) (*registry.Material, int, error) {
		return f.instrument(ctx, meta, func(ctx context.Context) (*registry.Material, error) {
			return f.buildDerived(ctx, cfg)
		})
	})
}

func (f *Factory) buildDerived(ctx context.Context, cfg string) (*registry.Material, error) {
	// The scattering model comes first so that invalid physics fails before
	// any material is registered.
	model, err := f.svc.CreateScatter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	oriented, err := scatter.Orient(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadInput, err)
	}

	info, err := f.svc.CreateInfo(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: no physics info for %q", ErrMissingInfo, cfg)
	}
	density, ok := info.Density()
	if !ok {
		return nil, fmt.Errorf("%w: no density for %q", ErrMissingInfo, cfg)
	}
	packing := info.PackingFactor()
	if !(packing > 0) || packing > 1 {
		return nil, fmt.Errorf("%w: packing factor %g outside (0, 1]", ErrBadInput, packing)
	}
	temperature, ok := info.Temperature()
	if !ok {
		temperature = f.defaultTemp
	}

	base, err := f.BaseMaterial(ctx, info)
	if err != nil {
		return nil, err
	}

	return f.reg.Derive(DerivedPrefix+cfg, base.Index, density*packing, temperature, oriented)
}

// instrument runs build under the observe middleware and adapts the result
// to a cache builder.
func (f *Factory) instrument(ctx context.Context, meta observe.MaterialMeta, build func(context.Context) (*registry.Material, error)) (*registry.Material, int, error) {
	var mat *registry.Material
	_, err := f.mw.Wrap(func(ctx context.Context, meta observe.MaterialMeta) (observe.MaterialMeta, error) {
		m, err := build(ctx)
		if err != nil {
			return meta, err
		}
		mat = m
		meta.Index = m.Index
		meta.Registered = true
		return meta, nil
	})(ctx, meta)
	if err != nil {
		return nil, 0, err
	}
	return mat, mat.Index, nil
}
