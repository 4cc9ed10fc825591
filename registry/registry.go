package registry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/jonwraymond/ncmat/element"
	"github.com/jonwraymond/ncmat/scatter"
)

// NoBase is the Base index of materials registered without a parent.
const NoBase = -1

// Sentinel errors for registry operations.
var (
	ErrInvalidMaterial = errors.New("registry: invalid material")
	ErrUnknownMaterial = errors.New("registry: unknown material")
)

// Component is one element of a material. Count is the number of atoms per
// formula unit when known, zero otherwise; MassFraction is always set.
type Component struct {
	Element      element.Z
	Count        uint
	MassFraction float64
}

// Material is a registered material. It is immutable once returned.
type Material struct {
	Index       int
	Name        string
	Components  []Component
	Density     float64 // g/cm3
	Temperature float64 // K
	Base        int     // Index of the parent material, or NoBase
	Scatter     scatter.Oriented
}

// Registry is a concurrent material table. Names need not be unique: name
// lookups resolve to the newest live material carrying the name.
type Registry struct {
	mu        sync.RWMutex
	materials []*Material
	byName    map[string]int
	live      int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a composition-only material.
func (r *Registry) Register(name string, components []Component, density, temperature float64) (*Material, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: %q has no components", ErrInvalidMaterial, name)
	}
	var total float64
	for _, c := range components {
		if !c.Element.Known() {
			return nil, fmt.Errorf("%w: %q has unknown element %d", ErrInvalidMaterial, name, c.Element)
		}
		if !(c.MassFraction > 0) || c.MassFraction > 1 {
			return nil, fmt.Errorf("%w: %q has mass fraction %g for %s", ErrInvalidMaterial, name, c.MassFraction, c.Element)
		}
		total += c.MassFraction
	}
	if math.Abs(total-1) > 1e-9 {
		return nil, fmt.Errorf("%w: %q mass fractions sum to %g", ErrInvalidMaterial, name, total)
	}

	m := &Material{
		Name:        name,
		Components:  append([]Component(nil), components...),
		Density:     density,
		Temperature: temperature,
		Base:        NoBase,
	}
	return r.add(m)
}

// Derive adds a material sharing the components of base, with its own
// density, temperature and scattering model.
func (r *Registry) Derive(name string, base int, density, temperature float64, s scatter.Oriented) (*Material, error) {
	parent := r.Lookup(base)
	if parent == nil {
		return nil, fmt.Errorf("%w: base index %d", ErrUnknownMaterial, base)
	}

	m := &Material{
		Name:        name,
		Components:  parent.Components,
		Density:     density,
		Temperature: temperature,
		Base:        base,
		Scatter:     s,
	}
	return r.add(m)
}

func (r *Registry) add(m *Material) (*Material, error) {
	if strings.TrimSpace(m.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidMaterial)
	}
	if !(m.Density > 0) || math.IsInf(m.Density, 0) {
		return nil, fmt.Errorf("%w: %q has density %g", ErrInvalidMaterial, m.Name, m.Density)
	}
	if !(m.Temperature > 0) || math.IsInf(m.Temperature, 0) {
		return nil, fmt.Errorf("%w: %q has temperature %g", ErrInvalidMaterial, m.Name, m.Temperature)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m.Index = len(r.materials)
	r.materials = append(r.materials, m)
	r.byName[m.Name] = m.Index
	r.live++
	return m, nil
}

// Lookup returns the material at index, or nil if it was deleted or never
// existed.
func (r *Registry) Lookup(index int) *Material {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.materials) {
		return nil
	}
	return r.materials[index]
}

// LookupName returns the live material registered under name, or nil.
func (r *Registry) LookupName(name string) *Material {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byName[name]
	if !ok {
		return nil
	}
	return r.materials[i]
}

// Delete removes the material at index. Its name falls back to the newest
// older live material of the same name, if any. It reports whether a live
// material was removed. Materials derived from it are kept.
func (r *Registry) Delete(index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.materials) || r.materials[index] == nil {
		return false
	}
	name := r.materials[index].Name
	r.materials[index] = nil
	r.live--

	if r.byName[name] != index {
		return true
	}
	delete(r.byName, name)
	for i := index - 1; i >= 0; i-- {
		if m := r.materials[i]; m != nil && m.Name == name {
			r.byName[name] = i
			break
		}
	}
	return true
}

// Len returns the number of live materials.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Names returns the sorted distinct names of live materials.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
