package catalog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jonwraymond/ncmat/factory"
)

// Params is a parsed configuration string.
//
// Zero values mean the parameter was not given.
type Params struct {
	// File is the material file name, before search path resolution.
	File string

	// Temperature overrides the file temperature, in kelvin.
	Temperature float64

	// PackingFactor scales the density, in (0, 1].
	PackingFactor float64

	// Density overrides the file density, in g/cm3.
	Density float64

	// DensityScale multiplies the file density. Mutually exclusive with Density.
	DensityScale float64
}

// ParseParams parses "file;key=value;..." configuration strings.
//
// Recognised keys:
//   - temp: kelvin, with an optional K or C suffix.
//   - packfact: packing factor in (0, 1].
//   - density: g/cm3 by default, with gcm3, kgm3 or x (multiplier) suffixes.
//
// Unknown keys, repeated keys and malformed values wrap factory.ErrBadInput.
func ParseParams(cfg string) (Params, error) {
	parts := strings.Split(cfg, ";")
	p := Params{File: strings.TrimSpace(parts[0])}
	if p.File == "" {
		return Params{}, fmt.Errorf("%w: configuration %q names no material file", factory.ErrBadInput, cfg)
	}

	seen := make(map[string]bool)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Params{}, fmt.Errorf("%w: expected key=value, got %q", factory.ErrBadInput, part)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if seen[key] {
			return Params{}, fmt.Errorf("%w: parameter %q given twice", factory.ErrBadInput, key)
		}
		seen[key] = true

		var err error
		switch key {
		case "temp":
			p.Temperature, err = parseTemperature(value)
		case "packfact":
			p.PackingFactor, err = parsePositive(value)
			if err == nil && p.PackingFactor > 1 {
				err = errors.New("must not exceed 1")
			}
		case "density":
			err = p.parseDensity(value)
		default:
			return Params{}, fmt.Errorf("%w: unknown parameter %q", factory.ErrBadInput, key)
		}
		if err != nil {
			return Params{}, fmt.Errorf("%w: %s=%q: %w", factory.ErrBadInput, key, value, err)
		}
	}
	return p, nil
}

// String renders p in canonical form. Parameters are emitted in a fixed
// order with shortest-roundtrip numbers.
func (p Params) String() string {
	var b strings.Builder
	b.WriteString(p.File)
	if p.Temperature > 0 {
		b.WriteString(";temp=" + formatFloat(p.Temperature) + "K")
	}
	if p.PackingFactor > 0 {
		b.WriteString(";packfact=" + formatFloat(p.PackingFactor))
	}
	switch {
	case p.Density > 0:
		b.WriteString(";density=" + formatFloat(p.Density) + "gcm3")
	case p.DensityScale > 0:
		b.WriteString(";density=" + formatFloat(p.DensityScale) + "x")
	}
	return b.String()
}

func (p *Params) parseDensity(value string) error {
	switch {
	case strings.HasSuffix(value, "x"):
		v, err := parsePositive(strings.TrimSuffix(value, "x"))
		p.DensityScale = v
		return err
	case strings.HasSuffix(value, "kgm3"):
		v, err := parsePositive(strings.TrimSuffix(value, "kgm3"))
		p.Density = v / 1000
		return err
	default:
		v, err := parsePositive(strings.TrimSuffix(value, "gcm3"))
		p.Density = v
		return err
	}
}

func parseTemperature(value string) (float64, error) {
	offset := 0.0
	switch {
	case strings.HasSuffix(value, "C"):
		value, offset = strings.TrimSuffix(value, "C"), 273.15
	case strings.HasSuffix(value, "K"):
		value = strings.TrimSuffix(value, "K")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	v += offset
	if !(v > 0) || math.IsInf(v, 0) {
		return 0, errors.New("temperature must be above absolute zero")
	}
	return v, nil
}

func parsePositive(value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	if !(v > 0) || math.IsInf(v, 0) {
		return 0, errors.New("must be positive and finite")
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
