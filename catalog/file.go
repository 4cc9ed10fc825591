package catalog

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/ncmat/element"
	"github.com/jonwraymond/ncmat/factory"
	"github.com/jonwraymond/ncmat/scatter"
)

// Scattering model names accepted in material files.
const (
	ModelElastic = "elastic"
	ModelSterile = "sterile"
)

// File is a parsed material file.
//
// Exactly one of Atoms or Composition describes the elements. Density and
// Temperature are optional; zero means unset.
type File struct {
	Name        string          `yaml:"name"`
	Atoms       map[string]uint `yaml:"atoms,omitempty"`
	Composition []FractionSpec  `yaml:"composition,omitempty"`
	Density     float64         `yaml:"density,omitempty"`
	Temperature float64         `yaml:"temperature,omitempty"`
	Scatter     *ScatterSpec    `yaml:"scatter,omitempty"`

	path    string
	modTime time.Time
	size    int64
}

// FractionSpec is one entry of a fractional composition.
type FractionSpec struct {
	Element  string  `yaml:"element"`
	Fraction float64 `yaml:"fraction"`
}

// ScatterSpec selects the scattering model. A file without a scatter block
// is sterile.
type ScatterSpec struct {
	Model string  `yaml:"model"`
	XSect float64 `yaml:"xsect,omitempty"`
}

// Parse decodes and validates a material file. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty material file", factory.ErrBadInput)
		}
		return nil, fmt.Errorf("%w: parse yaml: %w", factory.ErrBadInput, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseFile reads and parses the material file at path. A file without a
// name takes its base name without extension.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open material file: %w", err)
	}
	defer fh.Close()

	st, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat material file: %w", err)
	}

	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	f.path = path
	f.modTime = st.ModTime()
	f.size = st.Size()
	return f, nil
}

// Path returns the resolved path f was loaded from, if any.
func (f *File) Path() string {
	return f.path
}

// Validate checks the file for structural errors.
func (f *File) Validate() error {
	switch {
	case len(f.Atoms) > 0 && len(f.Composition) > 0:
		return fmt.Errorf("%w: atoms and composition are mutually exclusive", factory.ErrBadInput)
	case len(f.Atoms) == 0 && len(f.Composition) == 0:
		return fmt.Errorf("%w: material file needs atoms or composition", factory.ErrBadInput)
	}

	if _, err := f.counts(); err != nil {
		return err
	}
	if _, err := f.fractions(); err != nil {
		return err
	}
	if err := checkOptional("density", f.Density); err != nil {
		return err
	}
	if err := checkOptional("temperature", f.Temperature); err != nil {
		return err
	}

	if f.Scatter != nil {
		switch f.Scatter.Model {
		case ModelElastic:
			if f.Scatter.XSect < 0 || math.IsNaN(f.Scatter.XSect) || math.IsInf(f.Scatter.XSect, 0) {
				return fmt.Errorf("%w: elastic xsect must be finite and non-negative", factory.ErrBadInput)
			}
		case ModelSterile:
		default:
			return fmt.Errorf("%w: unknown scatter model %q", factory.ErrBadInput, f.Scatter.Model)
		}
	}
	return nil
}

// counts returns the integral composition, or nil for fractional files.
func (f *File) counts() (element.Composition, error) {
	if len(f.Atoms) == 0 {
		return nil, nil
	}
	comp := make(element.Composition, 0, len(f.Atoms))
	for sym, n := range f.Atoms {
		z, ok := element.Lookup(sym)
		if !ok {
			return nil, fmt.Errorf("%w: unknown element %q", factory.ErrBadInput, sym)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: atom count of %s must be positive", factory.ErrBadInput, sym)
		}
		comp = append(comp, element.Count{Z: z, N: n})
	}
	reduced, err := element.Reduce(comp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", factory.ErrBadInput, err)
	}
	return reduced, nil
}

// fractions returns number fractions normalised to sum to one. Integral
// files yield count/total in atomic number order.
func (f *File) fractions() (element.Fractions, error) {
	if len(f.Atoms) > 0 {
		comp, err := f.counts()
		if err != nil {
			return nil, err
		}
		total := float64(comp.Total())
		out := make(element.Fractions, len(comp))
		for i, c := range comp {
			out[i] = element.Fraction{Z: c.Z, Value: float64(c.N) / total}
		}
		return out, nil
	}

	out := make(element.Fractions, 0, len(f.Composition))
	seen := make(map[element.Z]bool, len(f.Composition))
	var sum float64
	for _, spec := range f.Composition {
		z, ok := element.Lookup(spec.Element)
		if !ok {
			return nil, fmt.Errorf("%w: unknown element %q", factory.ErrBadInput, spec.Element)
		}
		if seen[z] {
			return nil, fmt.Errorf("%w: element %s listed twice", factory.ErrBadInput, spec.Element)
		}
		seen[z] = true
		if !(spec.Fraction > 0) || math.IsInf(spec.Fraction, 0) {
			return nil, fmt.Errorf("%w: fraction of %s must be positive", factory.ErrBadInput, spec.Element)
		}
		sum += spec.Fraction
		out = append(out, element.Fraction{Z: z, Value: spec.Fraction})
	}
	if math.Abs(sum-1) > 1e-12 {
		for i := range out {
			out[i].Value /= sum
		}
	}
	return out, nil
}

// model builds the scattering model of f.
func (f *File) model() (scatter.Model, error) {
	if f.Scatter == nil || f.Scatter.Model == ModelSterile {
		return scatter.NewSterile(f.Name), nil
	}
	m, err := scatter.NewElastic(f.Name, f.Scatter.XSect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", factory.ErrBadInput, err)
	}
	return m, nil
}

// changed reports whether the file on disk no longer matches f.
func (f *File) changed() bool {
	st, err := os.Stat(f.path)
	if err != nil {
		return true
	}
	return !st.ModTime().Equal(f.modTime) || st.Size() != f.size
}

func checkOptional(field string, v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite and non-negative, got %g", factory.ErrBadInput, field, v)
	}
	return nil
}
