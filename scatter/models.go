package scatter

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Elastic is an isotropic model with a constant cross section, a uniform
// distribution of cos(theta) and no energy transfer.
type Elastic struct {
	name  string
	xsect float64
}

// NewElastic creates an elastic model with cross section xsect in barn.
func NewElastic(name string, xsect float64) (*Elastic, error) {
	if xsect < 0 || math.IsNaN(xsect) || math.IsInf(xsect, 0) {
		return nil, fmt.Errorf("scatter: elastic cross section must be finite and non-negative, got %g", xsect)
	}
	return &Elastic{name: name, xsect: xsect}, nil
}

func (m *Elastic) Kind() Kind                        { return KindIsotropic }
func (m *Elastic) Name() string                      { return m.name }
func (m *Elastic) Isotropic() (IsotropicModel, bool) { return m, true }
func (m *Elastic) Oriented() (Oriented, bool)        { return nil, false }

// CrossSectionIsotropic returns the constant cross section.
func (m *Elastic) CrossSectionIsotropic(ekin float64) (float64, error) {
	if err := checkEnergy(ekin); err != nil {
		return 0, err
	}
	return m.xsect, nil
}

// SampleIsotropic draws cos(theta) uniformly from [-1, 1].
func (m *Elastic) SampleIsotropic(rng *rand.Rand, ekin float64) (float64, float64, error) {
	if err := checkEnergy(ekin); err != nil {
		return 0, 0, err
	}
	mu := 2*rng.Float64() - 1
	return math.Acos(mu), 0, nil
}

// Sterile is an isotropic model that never scatters: its cross section is
// zero and forced samples leave the neutron unchanged.
type Sterile struct {
	name string
}

// NewSterile creates a sterile model.
func NewSterile(name string) *Sterile {
	return &Sterile{name: name}
}

func (m *Sterile) Kind() Kind                        { return KindIsotropic }
func (m *Sterile) Name() string                      { return m.name }
func (m *Sterile) Isotropic() (IsotropicModel, bool) { return m, true }
func (m *Sterile) Oriented() (Oriented, bool)        { return nil, false }

func (m *Sterile) CrossSectionIsotropic(ekin float64) (float64, error) {
	if err := checkEnergy(ekin); err != nil {
		return 0, err
	}
	return 0, nil
}

func (m *Sterile) SampleIsotropic(_ *rand.Rand, ekin float64) (float64, float64, error) {
	if err := checkEnergy(ekin); err != nil {
		return 0, 0, err
	}
	return 0, 0, nil
}

var (
	_ Model = (*Elastic)(nil)
	_ Model = (*Sterile)(nil)
)
