package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Limiter bounds concurrent builder executions. resilience.Bulkhead
// satisfies it.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

// StoreConfig configures a Store.
type StoreConfig[T any] struct {
	// Name identifies the store in telemetry.
	Name string

	// Validate reports whether a cached handle still refers to a live object.
	// A handle failing validation is treated as a miss and rebuilt.
	// If nil, entries are always considered live.
	Validate func(h *Handle[T]) bool

	// Observer receives lookup and build events. Optional.
	Observer Observer

	// Limiter bounds concurrent builds across keys. Optional.
	Limiter Limiter
}

// Store is a concurrent get-or-create table of shared handles.
//
// Contract:
//   - Concurrency: safe for concurrent use. For a given key at most one
//     builder runs per staleness epoch; all callers waiting on it receive the
//     same handle. Builders for different keys run in parallel.
//   - Builders run outside the table lock. The context passed to a builder is
//     the one of the caller that started the build.
//   - Errors: a failed build is returned to every caller waiting on it and
//     leaves the table unchanged, so the next call retries from scratch.
type Store[T any] struct {
	name     string
	validate func(*Handle[T]) bool
	observer Observer
	limiter  Limiter

	mu      sync.RWMutex
	entries map[string]*Handle[T]
	group   singleflight.Group
}

// NewStore creates an empty store.
func NewStore[T any](cfg StoreConfig[T]) *Store[T] {
	s := &Store[T]{
		name:     cfg.Name,
		validate: cfg.Validate,
		observer: cfg.Observer,
		limiter:  cfg.Limiter,
		entries:  make(map[string]*Handle[T]),
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	return s
}

// Name returns the store name.
func (s *Store[T]) Name() string {
	return s.name
}

// GetOrCreate returns the live handle for key, invoking build when the key is
// missing or its cached handle is stale.
func (s *Store[T]) GetOrCreate(ctx context.Context, key string, build Builder[T]) (*Handle[T], error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if build == nil {
		return nil, ErrNilBuilder
	}

	h, result := s.lookup(key)
	s.observer.Lookup(ctx, s.name, key, result)
	if result == ResultHit {
		return h, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// A flight for this key may have completed between our lookup and Do.
		if h, result := s.lookup(key); result == ResultHit {
			return h, nil
		}
		return s.build(ctx, key, build)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle[T]), nil
}

// Get returns the live handle for key without building.
func (s *Store[T]) Get(key string) (*Handle[T], bool) {
	h, result := s.lookup(key)
	return h, result == ResultHit
}

// Invalidate drops key from the table. Idempotent.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len returns the number of entries, live or stale.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns the sorted keys of all entries.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Stale returns the number of entries failing validation.
func (s *Store[T]) Stale() int {
	if s.validate == nil {
		return 0
	}
	s.mu.RLock()
	handles := make([]*Handle[T], 0, len(s.entries))
	for _, h := range s.entries {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	n := 0
	for _, h := range handles {
		if !s.validate(h) {
			n++
		}
	}
	return n
}

// Prune drops entries failing validation and returns how many were dropped.
// An entry replaced by a concurrent rebuild is kept.
func (s *Store[T]) Prune() int {
	if s.validate == nil {
		return 0
	}
	s.mu.RLock()
	handles := make([]*Handle[T], 0, len(s.entries))
	for _, h := range s.entries {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	n := 0
	for _, h := range handles {
		if s.validate(h) {
			continue
		}
		s.mu.Lock()
		if s.entries[h.Key] == h {
			delete(s.entries, h.Key)
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// lookup finds key and checks liveness. The validator runs outside the lock.
func (s *Store[T]) lookup(key string) (*Handle[T], Result) {
	s.mu.RLock()
	h, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ResultMiss
	}
	if s.validate != nil && !s.validate(h) {
		return nil, ResultStale
	}
	return h, ResultHit
}

func (s *Store[T]) build(ctx context.Context, key string, build Builder[T]) (*Handle[T], error) {
	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer s.limiter.Release()
	}

	start := time.Now()
	value, index, err := build(ctx)
	s.observer.Build(ctx, s.name, key, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	h := &Handle[T]{Key: key, Value: value, Index: index}
	s.mu.Lock()
	s.entries[key] = h
	s.mu.Unlock()
	return h, nil
}
