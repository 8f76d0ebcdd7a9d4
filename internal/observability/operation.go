package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation tracks a named unit of work with a span, timing and metrics.
type Operation struct {
	span    trace.Span
	metrics *Metrics
	name    string
	start   time.Time
}

// StartOperation begins tracking an operation. m may be nil. Callers log the
// outcome themselves; an Operation only records spans and metrics.
func StartOperation(ctx context.Context, m *Metrics, name string, attrs ...attribute.KeyValue) (*Operation, context.Context) {
	ctx, span := StartSpan(ctx, name, attrs...)
	return &Operation{
		span:    span,
		metrics: m,
		name:    name,
		start:   time.Now(),
	}, ctx
}

// End finishes the operation, recording duration and status.
func (o *Operation) End(err error) {
	duration := time.Since(o.start).Seconds()
	status := "ok"
	if err != nil {
		status = "error"
	}

	EndSpan(o.span, err)
	if o.metrics == nil {
		return
	}
	o.metrics.OperationDuration.WithLabelValues(o.name, status).Observe(duration)
	o.metrics.OperationTotal.WithLabelValues(o.name, status).Inc()
	o.metrics.RecordError(o.name, err)
}
