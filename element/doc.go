// Package element provides element identities and canonical chemical formulas.
//
// A Composition is reduced by the greatest common divisor of its counts and
// rendered in Hill order, so compositions that are integer multiples of each
// other share one formula. The formula is used as the identity of base
// materials in the material factory.
package element
