package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

const instrumentationName = "github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/otel"

// TracingRequestRepository wraps a domain.RequestRepository with
// OpenTelemetry tracing. Each method creates a span with semantic attributes
// and records errors.
type TracingRequestRepository struct {
	next   domain.RequestRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRequestRepository implements domain.RequestRepository.
var _ domain.RequestRepository = (*TracingRequestRepository)(nil)

// NewTracingRequestRepository creates a tracing decorator around the given repository.
func NewTracingRequestRepository(next domain.RequestRepository) *TracingRequestRepository {
	return &TracingRequestRepository{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
	}
}

func (r *TracingRequestRepository) Create(ctx context.Context, req domain.Request) (domain.Request, error) {
	ctx, span := r.tracer.Start(ctx, "RequestRepository.Create",
		trace.WithAttributes(
			attribute.String("tenant.id", req.TenantID),
			attribute.String("request.id", req.ID),
		),
	)
	defer span.End()

	created, err := r.next.Create(ctx, req)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int64("request.gtmi_number", created.GTMINumber))
	}
	return created, err
}

func (r *TracingRequestRepository) GetByID(ctx context.Context, tenantID, id string) (domain.Request, error) {
	ctx, span := r.tracer.Start(ctx, "RequestRepository.GetByID",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("request.id", id),
		),
	)
	defer span.End()

	req, err := r.next.GetByID(ctx, tenantID, id)
	if err != nil {
		recordError(span, err)
	}
	return req, err
}

func (r *TracingRequestRepository) UpdateStatus(ctx context.Context, tenantID, id string, status domain.RequestStatus) error {
	ctx, span := r.tracer.Start(ctx, "RequestRepository.UpdateStatus",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("request.id", id),
			attribute.String("request.status", string(status)),
		),
	)
	defer span.End()

	err := r.next.UpdateStatus(ctx, tenantID, id, status)
	if err != nil {
		recordError(span, err)
	}
	return err
}

// TracingInstanceRepository wraps a domain.InstanceRepository with
// OpenTelemetry tracing.
type TracingInstanceRepository struct {
	next   domain.InstanceRepository
	tracer trace.Tracer
}

// Compile-time check: TracingInstanceRepository implements domain.InstanceRepository.
var _ domain.InstanceRepository = (*TracingInstanceRepository)(nil)

// NewTracingInstanceRepository creates a tracing decorator around the given repository.
func NewTracingInstanceRepository(next domain.InstanceRepository) *TracingInstanceRepository {
	return &TracingInstanceRepository{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
	}
}

func (r *TracingInstanceRepository) Create(ctx context.Context, inst domain.Instance) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.Create",
		trace.WithAttributes(
			attribute.String("tenant.id", inst.TenantID),
			attribute.String("request.id", inst.RequestID),
		),
	)
	defer span.End()

	created, err := r.next.Create(ctx, inst)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Bool("instance.created", created))
	}
	return created, err
}

func (r *TracingInstanceRepository) FindByRequest(ctx context.Context, tenantID, requestID string) (domain.Instance, error) {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.FindByRequest",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	inst, err := r.next.FindByRequest(ctx, tenantID, requestID)
	if err != nil {
		recordError(span, err)
	}
	return inst, err
}

func (r *TracingInstanceRepository) UpdateState(ctx context.Context, inst domain.Instance) (domain.Instance, error) {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.UpdateState",
		trace.WithAttributes(
			attribute.String("tenant.id", inst.TenantID),
			attribute.String("instance.id", inst.ID),
			attribute.Int("instance.version", inst.Version),
		),
	)
	defer span.End()

	updated, err := r.next.UpdateState(ctx, inst)
	if err != nil {
		recordError(span, err)
	}
	return updated, err
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
