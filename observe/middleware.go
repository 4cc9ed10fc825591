package observe

import (
	"context"
	"time"
)

// BuildFunc performs one material construction described by meta and returns
// meta completed with what was registered (Name, Index).
type BuildFunc func(ctx context.Context, meta MaterialMeta) (MaterialMeta, error)

// Middleware wraps material construction with tracing and logging. Cache
// metrics are recorded separately by Metrics, installed on the stores.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe BuildFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer Tracer
	logger Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, logger Logger) *Middleware {
	return &Middleware{
		tracer: tracer,
		logger: logger,
	}
}

// Wrap wraps a BuildFunc with tracing and logging.
func (m *Middleware) Wrap(fn BuildFunc) BuildFunc {
	return func(ctx context.Context, meta MaterialMeta) (MaterialMeta, error) {
		if meta.Store == "" || meta.Key == "" {
			return meta, ErrMissingMaterialKey
		}

		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		result, err := fn(ctx, meta)
		if err != nil {
			result = meta
		}
		duration := time.Since(start)

		m.tracer.EndSpan(span, result, err)

		materialLogger := m.logger.WithMaterial(result)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			materialLogger.Error(ctx, "material build failed", fields...)
		} else {
			materialLogger.Info(ctx, "material built", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return NewMiddleware(NewTracer(obs.Tracer()), obs.Logger()), nil
}

// MetricsFromObserver creates cache Metrics on the Observer's meter.
func MetricsFromObserver(obs Observer) (Metrics, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return newMetrics(obs.Meter())
}

// Noop returns a Middleware and Metrics that record nothing.
func Noop() (*Middleware, Metrics) {
	return NewMiddleware(newNoopTracer(), &noopLogger{}), &noopMetrics{}
}
