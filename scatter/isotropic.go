package scatter

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// Isotropic lifts an IsotropicModel into the Oriented interface.
//
// The wrapped model must genuinely be orientation independent; this is not
// checked.
type Isotropic struct {
	name  string
	model IsotropicModel
}

// NewIsotropic wraps model under the given name.
func NewIsotropic(name string, model IsotropicModel) *Isotropic {
	return &Isotropic{name: name, model: model}
}

// Name returns the model name.
func (s *Isotropic) Name() string {
	return s.name
}

// Unwrap returns the wrapped energy-domain model.
func (s *Isotropic) Unwrap() IsotropicModel {
	return s.model
}

// CrossSection returns the isotropic cross section at ekin. dir is ignored.
func (s *Isotropic) CrossSection(ekin float64, _ r3.Vec) (float64, error) {
	return s.model.CrossSectionIsotropic(ekin)
}

// GenerateScattering samples (theta, dE) from the wrapped model and rotates
// dir by theta around an azimuth drawn uniformly from [0, 2pi).
func (s *Isotropic) GenerateScattering(rng *rand.Rand, ekin float64, dir r3.Vec) (r3.Vec, float64, error) {
	if err := checkDirection(dir); err != nil {
		return r3.Vec{}, 0, err
	}
	theta, dE, err := s.model.SampleIsotropic(rng, ekin)
	if err != nil {
		return r3.Vec{}, 0, err
	}
	phi := 2 * math.Pi * rng.Float64()
	return Deflect(dir, math.Cos(theta), phi), dE, nil
}

// Deflect returns the unit vector at polar angle acos(cosTheta) from dir and
// azimuth phi, measured in a right-handed frame perpendicular to dir.
// dir must be non-zero.
func Deflect(dir r3.Vec, cosTheta, phi float64) r3.Vec {
	d := r3.Unit(dir)
	u, v := perpendicularFrame(d)

	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	sinPhi, cosPhi := math.Sincos(phi)

	out := r3.Add(
		r3.Scale(cosTheta, d),
		r3.Add(r3.Scale(sinTheta*cosPhi, u), r3.Scale(sinTheta*sinPhi, v)),
	)
	return r3.Unit(out)
}

// perpendicularFrame returns unit vectors u, v such that (u, v, d) is a
// right-handed orthonormal basis. d must be a unit vector.
func perpendicularFrame(d r3.Vec) (u, v r3.Vec) {
	// Cross with the coordinate axis least aligned with d.
	axis := r3.Vec{X: 1}
	if math.Abs(d.X) > 0.9 {
		axis = r3.Vec{Y: 1}
	}
	u = r3.Unit(r3.Cross(axis, d))
	v = r3.Cross(d, u)
	return u, v
}

func checkDirection(dir r3.Vec) error {
	n := r3.Norm(dir)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDirection, dir)
	}
	return nil
}

var _ Oriented = (*Isotropic)(nil)
