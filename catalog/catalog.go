package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jonwraymond/ncmat/cache"
	"github.com/jonwraymond/ncmat/element"
	"github.com/jonwraymond/ncmat/factory"
	"github.com/jonwraymond/ncmat/scatter"
)

// StoreFiles is the telemetry name of the parsed file cache.
const StoreFiles = "files"

// Config configures a Catalog.
type Config struct {
	// Paths are searched in order before the file name is tried as given.
	// Entries may reference ${VAR}.
	Paths []string

	// Observer receives file cache events. Optional.
	Observer cache.Observer
}

// Catalog resolves configuration strings against material files on disk.
//
// Contract:
//   - Concurrency: safe for concurrent use. Each file is parsed once until it
//     changes on disk.
//   - Errors: malformed configuration strings and files wrap
//     factory.ErrBadInput. A missing file wraps ErrNotFound.
type Catalog struct {
	paths []string
	files *cache.Store[*File]
}

// New creates a Catalog.
func New(cfg Config) *Catalog {
	return &Catalog{
		paths: append([]string(nil), cfg.Paths...),
		files: cache.NewStore(cache.StoreConfig[*File]{
			Name:     StoreFiles,
			Observer: cfg.Observer,
			Validate: func(h *cache.Handle[*File]) bool { return !h.Value.changed() },
		}),
	}
}

// Files returns the parsed file cache.
func (c *Catalog) Files() *cache.Store[*File] {
	return c.files
}

// Resolve maps a material file name to the path it is loaded from.
func (c *Catalog) Resolve(name string) (string, error) {
	expanded, err := ExpandEnvStrict(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", factory.ErrBadInput, err)
	}

	if !filepath.IsAbs(expanded) {
		for _, dir := range c.paths {
			dir, err := ExpandEnvStrict(dir)
			if err != nil {
				return "", fmt.Errorf("%w: search path: %w", factory.ErrBadInput, err)
			}
			if path, ok := regularFile(filepath.Join(dir, expanded)); ok {
				return path, nil
			}
		}
	}
	if path, ok := regularFile(expanded); ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Load returns the parsed material file for name.
func (c *Catalog) Load(ctx context.Context, name string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.Resolve(name)
	if err != nil {
		return nil, err
	}
	h, err := c.files.GetOrCreate(ctx, path, func(context.Context) (*File, int, error) {
		f, err := ParseFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return f, 0, err
	})
	if err != nil {
		return nil, err
	}
	return h.Value, nil
}

// CreateInfo implements factory.ModelService.
func (c *Catalog) CreateInfo(ctx context.Context, cfg string) (factory.Info, error) {
	p, err := ParseParams(cfg)
	if err != nil {
		return nil, err
	}
	f, err := c.Load(ctx, p.File)
	if err != nil {
		return nil, err
	}
	return newInfo(f, p)
}

// CreateScatter implements factory.ModelService.
func (c *Catalog) CreateScatter(ctx context.Context, cfg string) (scatter.Model, error) {
	p, err := ParseParams(cfg)
	if err != nil {
		return nil, err
	}
	f, err := c.Load(ctx, p.File)
	if err != nil {
		return nil, err
	}
	return f.model()
}

func regularFile(path string) (string, bool) {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, true
	}
	return abs, true
}

// info is the factory.Info of a file with configuration overrides applied.
type info struct {
	comp        element.Composition
	fractions   element.Fractions
	density     float64
	temperature float64
	packing     float64
}

func newInfo(f *File, p Params) (*info, error) {
	comp, err := f.counts()
	if err != nil {
		return nil, err
	}
	fractions, err := f.fractions()
	if err != nil {
		return nil, err
	}

	in := &info{
		comp:        comp,
		fractions:   fractions,
		density:     f.Density,
		temperature: f.Temperature,
		packing:     1,
	}
	switch {
	case p.Density > 0:
		in.density = p.Density
	case p.DensityScale > 0:
		if f.Density == 0 {
			return nil, fmt.Errorf("%w: density multiplier needs a density in %s", factory.ErrMissingInfo, f.Name)
		}
		in.density = f.Density * p.DensityScale
	}
	if p.Temperature > 0 {
		in.temperature = p.Temperature
	}
	if p.PackingFactor > 0 {
		in.packing = p.PackingFactor
	}
	return in, nil
}

func (i *info) Composition() (element.Composition, bool) {
	return i.comp, len(i.comp) > 0
}

func (i *info) Fractions() (element.Fractions, bool) {
	return i.fractions, len(i.fractions) > 0
}

func (i *info) Density() (float64, bool) {
	return i.density, i.density > 0
}

func (i *info) Temperature() (float64, bool) {
	return i.temperature, i.temperature > 0
}

func (i *info) PackingFactor() float64 {
	return i.packing
}

var (
	_ factory.ModelService = (*Catalog)(nil)
	_ factory.Info         = (*info)(nil)
)
