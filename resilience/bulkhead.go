package resilience

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxConcurrent is the slot count used when none is configured.
const DefaultMaxConcurrent = 10

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the number of slots.
	// Default: DefaultMaxConcurrent
	MaxConcurrent int

	// MaxWait bounds how long Acquire waits for a slot. Zero fails at once
	// when full; a negative value waits until the context is done.
	// Default: 0
	MaxWait time.Duration
}

// Bulkhead limits concurrent operations to a fixed number of slots.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: Acquire returns the context error when ctx ends while waiting.
type Bulkhead struct {
	maxWait time.Duration
	slots   chan struct{}

	mu    sync.Mutex
	stats Stats
}

// Stats is a snapshot of bulkhead usage.
type Stats struct {
	Active    int   // slots held now
	Peak      int   // highest Active seen
	Waiting   int   // callers blocked in Acquire
	Capacity  int   // total slots
	Available int   // Capacity - Active
	Rejected  int64 // Acquire calls that gave up after MaxWait
	Cancelled int64 // Acquire calls whose context ended first
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Bulkhead{
		maxWait: config.MaxWait,
		slots:   make(chan struct{}, config.MaxConcurrent),
		stats:   Stats{Capacity: config.MaxConcurrent},
	}
}

// Acquire takes a slot. It returns ErrBulkheadFull when no slot frees up
// within MaxWait, or the context error when ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		b.update(func(s *Stats) { s.take() })
		return nil
	default:
	}

	if b.maxWait == 0 {
		b.update(func(s *Stats) { s.Rejected++ })
		return ErrBulkheadFull
	}

	var timeout <-chan time.Time
	if b.maxWait > 0 {
		timer := time.NewTimer(b.maxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	b.update(func(s *Stats) { s.Waiting++ })
	select {
	case b.slots <- struct{}{}:
		b.update(func(s *Stats) { s.Waiting--; s.take() })
		return nil
	case <-timeout:
		b.update(func(s *Stats) { s.Waiting--; s.Rejected++ })
		return ErrBulkheadFull
	case <-ctx.Done():
		b.update(func(s *Stats) { s.Waiting--; s.Cancelled++ })
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire. Unpaired calls are ignored.
func (b *Bulkhead) Release() {
	select {
	case <-b.slots:
		b.update(func(s *Stats) { s.Active-- })
	default:
	}
}

// Execute runs op while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Stats returns current usage.
func (b *Bulkhead) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Available = s.Capacity - s.Active
	return s
}

func (b *Bulkhead) update(fn func(*Stats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

func (s *Stats) take() {
	s.Active++
	s.Peak = max(s.Peak, s.Active)
}
