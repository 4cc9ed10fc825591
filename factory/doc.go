// Package factory builds cached, shared material objects in two tiers.
//
// A base material carries only elemental proportions and is keyed by the
// reduced chemical formula (or, when no integral composition is known, by a
// fractional-composition key). A derived material is keyed by the full
// configuration string and adds density, temperature and the scattering
// model. Derived construction reuses the base material of its composition,
// so configurations differing only in instance parameters share one base.
//
// Configuration strings are not canonicalised: two textually distinct
// strings always produce distinct derived materials, even when they describe
// the same physics.
package factory
