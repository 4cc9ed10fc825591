package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
// Keys are often full material configuration strings, so the limit is generous.
const MaxKeyLength = 4096

// Sentinel errors for cache operations.
var (
	ErrNilBuilder = errors.New("cache: builder is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Handle is a shared reference to a cached object.
//
// Handles are immutable once published by a Store. Index is the identity under
// which Value is registered in a backing registry, if any.
type Handle[T any] struct {
	Key   string
	Value T
	Index int
}

// Builder constructs the object for a key, returning the object and its
// registry index.
type Builder[T any] func(ctx context.Context) (T, int, error)

// Result classifies a lookup.
type Result string

const (
	ResultHit   Result = "hit"
	ResultMiss  Result = "miss"
	ResultStale Result = "stale"
)

// Observer receives store events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic and must return quickly.
type Observer interface {
	// Lookup is called once per GetOrCreate with the result of the first lookup.
	Lookup(ctx context.Context, store, key string, result Result)

	// Build is called after each builder invocation.
	Build(ctx context.Context, store, key string, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) Lookup(context.Context, string, string, Result)               {}
func (noopObserver) Build(context.Context, string, string, time.Duration, error) {}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
