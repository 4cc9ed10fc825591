// Package scatter defines neutron scattering models and the isotropic adapter.
//
// Upstream physics produces a Model, which is either direction independent
// (KindIsotropic) or oriented (KindOriented). Clients always consume the
// Oriented interface; Orient lifts isotropic models into it through the
// Isotropic adapter, which turns an energy-only (theta, dE) sampler into a
// full 3-D outgoing direction by drawing the azimuth uniformly around the
// incident direction.
//
// Random numbers come from a caller-supplied *rand.Rand so that each
// transport worker can own its stream; models themselves are immutable and
// safe for concurrent use.
package scatter
