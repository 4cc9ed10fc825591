// Package resilience bounds how many material builds run at once.
//
// Material construction can be CPU and memory heavy. A Bulkhead caps how many
// builds run at once across all cache keys so that a burst of distinct
// configuration requests cannot exhaust the process. Callers beyond the cap
// wait up to MaxWait and then fail with ErrBulkheadFull.
//
// # Usage
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{
//	    MaxConcurrent: runtime.NumCPU(),
//	    MaxWait:       -1, // wait for a slot until the context is done
//	})
//
//	err := bh.Execute(ctx, func(ctx context.Context) error {
//	    return buildMaterial(ctx)
//	})
//
// Stats reports slot usage for health checks.
package resilience
