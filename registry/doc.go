// Package registry is an in-memory host material system.
//
// It plays the role a transport toolkit's material table plays for the
// factory: materials are registered under a unique name, addressed by a
// stable integer index, and may be deleted independently of any cache that
// refers to them. Indices are never reused, so a deleted index stays dead.
package registry
