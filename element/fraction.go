package element

import (
	"fmt"
	"strconv"
	"strings"
)

// Fraction is the number fraction of one element in a material.
type Fraction struct {
	Z     Z
	Value float64
}

// Fractions is a fractional elemental composition, used when integral atom
// counts are not available.
type Fractions []Fraction

// Validate checks that every element is tabulated and every fraction is
// positive.
func (f Fractions) Validate() error {
	if len(f) == 0 {
		return fmt.Errorf("%w: fractional composition is empty", ErrInvalidInput)
	}
	for _, e := range f {
		if !e.Z.Known() {
			return fmt.Errorf("%w: atomic number %d has no tabulated data", ErrInvalidInput, e.Z)
		}
		if !(e.Value > 0) {
			return fmt.Errorf("%w: fraction of %s must be positive", ErrInvalidInput, e.Z.Symbol())
		}
	}
	return nil
}

// Key renders f as "_Sym_fracSym_frac..." with 16 significant digits, in
// the order given. Only the first element carries a leading underscore.
func (f Fractions) Key() string {
	var b strings.Builder
	for i, e := range f {
		if i == 0 {
			b.WriteByte('_')
		}
		b.WriteString(e.Z.Symbol())
		b.WriteByte('_')
		b.WriteString(strconv.FormatFloat(e.Value, 'g', 16, 64))
	}
	return b.String()
}

// MassFractions converts number fractions into mass fractions using
// standard atomic masses. The result has the same order as f.
func (f Fractions) MassFractions() ([]float64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, len(f))
	var total float64
	for i, e := range f {
		out[i] = e.Value * e.Z.Mass()
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out, nil
}
