// Package cache provides a keyed, memoizing store for expensive immutable objects.
//
// A Store maps a string key to a shared Handle and guarantees that concurrent
// requests for the same key run the builder at most once. Entries whose
// backing object has been discarded elsewhere are detected through a
// validator and rebuilt transparently.
package cache
