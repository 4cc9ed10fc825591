// Package observe provides observability primitives for material construction.
//
// It is a pure instrumentation library: no caching, no physics, no I/O beyond
// exporter setup. Metrics plugs into cache stores as a cache.Observer, and
// Middleware wraps the builders run by the material factory with spans and
// structured logs.
package observe
