package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// MaterialMeta describes a material construction for telemetry purposes.
type MaterialMeta struct {
	Store   string // Cache tier ("base" or "derived", required)
	Key     string // Cache key: formula, fractional key or configuration string (required)
	Name    string // Registered material name (optional)
	Formula string // Reduced chemical formula (optional)
	Index   int    // Registry index; valid only when Registered is set

	// Registered reports that the material was added to the registry.
	// Index 0 is a valid registry index, so Index alone cannot tell.
	Registered bool
}

// SpanName returns the deterministic span name for this material tier.
// Format: ncmat.material.<store>
func (m MaterialMeta) SpanName() string {
	return "ncmat.material." + m.Store
}

// attrs returns the telemetry attributes of m. Empty optional fields are
// omitted; Index is included only for registered materials.
func (m MaterialMeta) attrs() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("material.store", m.Store),
		attribute.String("material.key", m.Key),
	}
	if m.Name != "" {
		attrs = append(attrs, attribute.String("material.name", m.Name))
	}
	if m.Formula != "" {
		attrs = append(attrs, attribute.String("material.formula", m.Formula))
	}
	if m.Registered {
		attrs = append(attrs, attribute.Int("material.index", m.Index))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with material-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a material construction.
	StartSpan(ctx context.Context, meta MaterialMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the built material or the error.
	EndSpan(span trace.Span, result MaterialMeta, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with material metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta MaterialMeta) (context.Context, trace.Span) {
	attrs := append(meta.attrs(),
		attribute.Bool("material.error", false), // Updated in EndSpan on failure
	)

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, result MaterialMeta, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("material.error", true))
		span.RecordError(err)
	} else {
		if result.Registered {
			span.SetAttributes(attribute.Int("material.index", result.Index))
		}
		if result.Name != "" {
			span.SetAttributes(attribute.String("material.name", result.Name))
		}
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta MaterialMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ MaterialMeta, _ error) {
	span.End()
}
