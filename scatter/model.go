package scatter

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// Sentinel errors for scattering operations.
var (
	// ErrInvalidEnergy indicates a negative or non-finite kinetic energy.
	ErrInvalidEnergy = errors.New("scatter: invalid neutron energy")

	// ErrInvalidDirection indicates a zero or non-finite direction vector.
	ErrInvalidDirection = errors.New("scatter: invalid neutron direction")

	// ErrUnsupportedModel indicates a model whose kind has no matching accessor.
	ErrUnsupportedModel = errors.New("scatter: unsupported model")
)

// Kind discriminates scattering model variants.
type Kind int

const (
	// KindIsotropic models depend only on energy and are phi-symmetric.
	KindIsotropic Kind = iota
	// KindOriented models depend on the incident direction.
	KindOriented
)

func (k Kind) String() string {
	switch k {
	case KindIsotropic:
		return "isotropic"
	case KindOriented:
		return "oriented"
	default:
		return "unknown"
	}
}

// Model is a scattering model as produced by upstream physics.
//
// Exactly one of Isotropic or Oriented returns ok=true, matching Kind.
type Model interface {
	Kind() Kind
	Name() string
	Isotropic() (IsotropicModel, bool)
	Oriented() (Oriented, bool)
}

// IsotropicModel is the energy-domain contract of a direction independent
// model.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use given
//     distinct rng values.
//   - SampleIsotropic returns the polar scattering angle theta in [0, pi]
//     and the energy change dE (final minus initial kinetic energy, eV).
type IsotropicModel interface {
	CrossSectionIsotropic(ekin float64) (float64, error)
	SampleIsotropic(rng *rand.Rand, ekin float64) (theta, dE float64, err error)
}

// Oriented is the full scattering interface consumed by transport clients.
//
// Directions need not be normalised on input; returned directions are unit
// vectors.
type Oriented interface {
	Name() string
	CrossSection(ekin float64, dir r3.Vec) (float64, error)
	GenerateScattering(rng *rand.Rand, ekin float64, dir r3.Vec) (r3.Vec, float64, error)
}

// Orient returns the oriented interface of m, wrapping isotropic models in
// the Isotropic adapter.
func Orient(m Model) (Oriented, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", ErrUnsupportedModel)
	}
	switch m.Kind() {
	case KindIsotropic:
		if iso, ok := m.Isotropic(); ok {
			return NewIsotropic(m.Name(), iso), nil
		}
	case KindOriented:
		if o, ok := m.Oriented(); ok {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: %s model %q has no %s accessor", ErrUnsupportedModel, m.Kind(), m.Name(), m.Kind())
}

func checkEnergy(ekin float64) error {
	if ekin < 0 || math.IsNaN(ekin) || math.IsInf(ekin, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidEnergy, ekin)
	}
	return nil
}
