// Package health reports the condition of the material caches.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// Aggregator runs a set of checkers under a shared timeout and folds their
// results into a Report; the worst status wins.
//
// StoreChecker prunes and reports keyed store entries whose registry objects have
// gone away, and BulkheadChecker watches the build limiter for saturation:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewStoreChecker(f.DerivedStore(), health.StoreCheckerConfig{}))
//	agg.Register(health.NewBulkheadChecker("builds", limiter))
//
//	report := agg.Run(ctx)
//	fmt.Println(report.Status)
//
// RegisterHandlers exposes liveness, readiness and detailed reports over
// HTTP.
package health
