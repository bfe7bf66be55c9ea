package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// TracingNotifier wraps a domain.Notifier with a span per notice and a
// counter of committed transitions.
type TracingNotifier struct {
	next        domain.Notifier
	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// Compile-time check: TracingNotifier implements domain.Notifier.
var _ domain.Notifier = (*TracingNotifier)(nil)

// NewTracingNotifier creates a tracing decorator around the given notifier.
func NewTracingNotifier(next domain.Notifier) (*TracingNotifier, error) {
	counter, err := otel.Meter(instrumentationName).Int64Counter("workflow.transitions",
		metric.WithDescription("Committed workflow transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return &TracingNotifier{
		next:        next,
		tracer:      otel.Tracer(instrumentationName),
		transitions: counter,
	}, nil
}

func (n *TracingNotifier) Notify(ctx context.Context, notice domain.TransitionNotice) error {
	attrs := []attribute.KeyValue{
		attribute.String("tenant.id", notice.TenantID),
		attribute.String("workflow.action", string(notice.Action)),
		attribute.String("workflow.to", string(notice.To)),
	}

	ctx, span := n.tracer.Start(ctx, "Notifier.Notify",
		trace.WithAttributes(append(attrs,
			attribute.String("request.id", notice.RequestID),
			attribute.String("workflow.from", string(notice.From)),
			attribute.Bool("workflow.completed", notice.Completed),
		)...),
	)
	defer span.End()

	n.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))

	err := n.next.Notify(ctx, notice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
