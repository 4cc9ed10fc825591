package factory

import (
	"context"
	"errors"

	"github.com/jonwraymond/ncmat/element"
	"github.com/jonwraymond/ncmat/scatter"
)

// Sentinel errors for material construction.
var (
	// ErrBadInput indicates malformed configuration text or composition data.
	ErrBadInput = errors.New("factory: bad input")

	// ErrMissingInfo indicates a required physical quantity is absent.
	ErrMissingInfo = errors.New("factory: missing info")
)

// Info is the physics description of a configuration.
//
// Each query reports whether the quantity is available. Absence is not an
// error here; the factory decides which quantities it requires.
type Info interface {
	// Composition returns the integral atom counts per unit cell.
	Composition() (element.Composition, bool)

	// Fractions returns the fractional elemental composition.
	Fractions() (element.Fractions, bool)

	// Density returns the density in g/cm3.
	Density() (float64, bool)

	// Temperature returns the temperature in kelvin.
	Temperature() (float64, bool)

	// PackingFactor returns the density correction in (0, 1]; 1 when unset.
	PackingFactor() float64
}

// ModelService turns configuration strings into physics objects.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: malformed configuration text must wrap ErrBadInput.
type ModelService interface {
	CreateInfo(ctx context.Context, cfg string) (Info, error)
	CreateScatter(ctx context.Context, cfg string) (scatter.Model, error)
}
