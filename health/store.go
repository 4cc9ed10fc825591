package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/ncmat/resilience"
)

// StoreStats is the view of a keyed store needed for health checks.
// cache.Store satisfies it.
type StoreStats interface {
	Name() string
	Len() int
	Prune() int
}

// StoreCheckerConfig configures a StoreChecker.
type StoreCheckerConfig struct {
	// UnhealthyRatio is the fraction of entries found stale in one check at
	// which the store is unhealthy. Any stale entry below it degrades the
	// store.
	// Default: 0.5
	UnhealthyRatio float64
}

// StoreChecker reports entries whose backing objects went away since the
// previous check. Each check prunes those entries; they are rebuilt on next
// use, so the store reads healthy again once nothing new has gone stale.
type StoreChecker struct {
	store  StoreStats
	config StoreCheckerConfig
}

// NewStoreChecker creates a checker named "cache.<store name>".
func NewStoreChecker(store StoreStats, config StoreCheckerConfig) *StoreChecker {
	if config.UnhealthyRatio <= 0 || config.UnhealthyRatio > 1 {
		config.UnhealthyRatio = 0.5
	}
	return &StoreChecker{store: store, config: config}
}

func (c *StoreChecker) Name() string {
	return "cache." + c.store.Name()
}

func (c *StoreChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	before := c.store.Len()
	pruned := c.store.Prune()
	details := map[string]any{
		"entries": before - pruned,
		"pruned":  pruned,
	}

	switch {
	case pruned == 0:
		return Healthy(fmt.Sprintf("%d entries", before)).WithDetails(details)
	case float64(pruned) >= c.config.UnhealthyRatio*float64(before):
		return Unhealthy(fmt.Sprintf("%d of %d entries stale", pruned, before), ErrCheckFailed).WithDetails(details)
	default:
		return Degraded(fmt.Sprintf("%d of %d entries stale", pruned, before)).WithDetails(details)
	}
}

// BulkheadStats is the view of a concurrency limiter needed for health
// checks. resilience.Bulkhead satisfies it.
type BulkheadStats interface {
	Stats() resilience.Stats
}

// BulkheadChecker reports a limiter that is full or has turned callers away.
type BulkheadChecker struct {
	name     string
	bulkhead BulkheadStats
}

// NewBulkheadChecker creates a checker for bulkhead under name.
func NewBulkheadChecker(name string, bulkhead BulkheadStats) *BulkheadChecker {
	return &BulkheadChecker{name: name, bulkhead: bulkhead}
}

func (c *BulkheadChecker) Name() string {
	return c.name
}

func (c *BulkheadChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	m := c.bulkhead.Stats()
	details := map[string]any{
		"active":    m.Active,
		"peak":      m.Peak,
		"waiting":   m.Waiting,
		"available": m.Available,
		"capacity":  m.Capacity,
		"rejected":  m.Rejected,
		"cancelled": m.Cancelled,
	}

	switch {
	case m.Rejected > 0:
		return Degraded(fmt.Sprintf("%d builds rejected", m.Rejected)).WithDetails(details)
	case m.Available == 0:
		return Degraded("all build slots in use").WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%d of %d build slots in use", m.Active, m.Capacity)).WithDetails(details)
	}
}

var (
	_ Checker = (*StoreChecker)(nil)
	_ Checker = (*BulkheadChecker)(nil)
)
