package factory

import (
	"fmt"

	"github.com/jonwraymond/ncmat/element"
	"github.com/jonwraymond/ncmat/registry"
)

// baseSpec is everything needed to key and register a base material.
type baseSpec struct {
	key        string
	formula    string
	components []registry.Component
}

// baseSpecFor derives the base key of info: a single element by symbol, then
// the reduced formula of the integral composition, then the fractional key.
func baseSpecFor(info Info) (baseSpec, error) {
	fractions, hasFractions := info.Fractions()

	if hasFractions && len(fractions) == 1 {
		if err := fractions.Validate(); err != nil {
			return baseSpec{}, fmt.Errorf("%w: %w", ErrBadInput, err)
		}
		z := fractions[0].Z
		return baseSpec{
			key:        z.Symbol(),
			formula:    z.Symbol(),
			components: []registry.Component{{Element: z, Count: 1, MassFraction: 1}},
		}, nil
	}

	if comp, ok := info.Composition(); ok {
		reduced, err := element.Reduce(comp)
		if err != nil {
			return baseSpec{}, fmt.Errorf("%w: %w", ErrBadInput, err)
		}
		formula, err := reduced.Formula()
		if err != nil {
			return baseSpec{}, fmt.Errorf("%w: %w", ErrBadInput, err)
		}
		components, err := countComponents(reduced)
		if err != nil {
			return baseSpec{}, err
		}
		return baseSpec{key: formula, formula: formula, components: components}, nil
	}

	if hasFractions {
		mass, err := fractions.MassFractions()
		if err != nil {
			return baseSpec{}, fmt.Errorf("%w: %w", ErrBadInput, err)
		}
		components := make([]registry.Component, len(fractions))
		for i, f := range fractions {
			components[i] = registry.Component{Element: f.Z, MassFraction: mass[i]}
		}
		return baseSpec{key: fractions.Key(), components: components}, nil
	}

	return baseSpec{}, fmt.Errorf("%w: neither atom counts nor a fractional composition", ErrMissingInfo)
}

// countComponents converts reduced atom counts into registry components with
// mass fractions from standard atomic masses.
func countComponents(c element.Composition) ([]registry.Component, error) {
	var total float64
	for _, e := range c {
		if !e.Z.Known() {
			return nil, fmt.Errorf("%w: no atomic mass for %s", ErrBadInput, e.Z.Symbol())
		}
		total += float64(e.N) * e.Z.Mass()
	}

	out := make([]registry.Component, len(c))
	for i, e := range c {
		out[i] = registry.Component{
			Element:      e.Z,
			Count:        e.N,
			MassFraction: float64(e.N) * e.Z.Mass() / total,
		}
	}
	return out, nil
}
