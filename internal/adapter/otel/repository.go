package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/statusgate/internal/domain"
)

const instrumentationName = "github.com/neomorfeo/statusgate/internal/adapter/otel"

// TracingRepository wraps a domain.EntityRepository with OpenTelemetry
// tracing and counts committed transitions by outcome.
type TracingRepository struct {
	next        domain.EntityRepository
	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// Compile-time check: TracingRepository implements domain.EntityRepository.
var _ domain.EntityRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.EntityRepository) (*TracingRepository, error) {
	counter, err := otel.Meter(instrumentationName).Int64Counter("statusgate.transitions",
		metric.WithDescription("Transition commits by entity type, target status and outcome."),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}
	return &TracingRepository{
		next:        next,
		tracer:      otel.Tracer(instrumentationName),
		transitions: counter,
	}, nil
}

func (r *TracingRepository) Create(ctx context.Context, e domain.Entity) error {
	ctx, span := r.tracer.Start(ctx, "EntityRepository.Create",
		trace.WithAttributes(
			attribute.String("tenant.id", e.TenantID),
			attribute.String("entity.type", string(e.Type)),
			attribute.String("entity.id", e.ID),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, e)
	recordError(span, err)
	return err
}

func (r *TracingRepository) Get(ctx context.Context, tenantID, id string) (domain.Entity, error) {
	ctx, span := r.tracer.Start(ctx, "EntityRepository.Get",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("entity.id", id),
		),
	)
	defer span.End()

	e, err := r.next.Get(ctx, tenantID, id)
	recordError(span, err)
	return e, err
}

func (r *TracingRepository) List(ctx context.Context, tenantID string, filter domain.ListFilter) ([]domain.Entity, error) {
	ctx, span := r.tracer.Start(ctx, "EntityRepository.List",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Type != nil {
		span.SetAttributes(attribute.String("filter.type", string(*filter.Type)))
	}
	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}

	entities, err := r.next.List(ctx, tenantID, filter)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(entities)))
	}
	return entities, err
}

func (r *TracingRepository) Stats(ctx context.Context, tenantID string, entityType domain.EntityType) ([]domain.StatusStat, error) {
	ctx, span := r.tracer.Start(ctx, "EntityRepository.Stats",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("entity.type", string(entityType)),
		),
	)
	defer span.End()

	stats, err := r.next.Stats(ctx, tenantID, entityType)
	recordError(span, err)
	return stats, err
}

func (r *TracingRepository) History(ctx context.Context, tenantID, entityID string) ([]domain.TransitionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "EntityRepository.History",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("entity.id", entityID),
		),
	)
	defer span.End()

	records, err := r.next.History(ctx, tenantID, entityID)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(records)))
	}
	return records, err
}

func (r *TracingRepository) CommitTransition(ctx context.Context, c domain.Change) error {
	attrs := []attribute.KeyValue{
		attribute.String("entity.type", string(c.Before.Type)),
		attribute.String("transition.to", string(c.After.Status)),
	}
	ctx, span := r.tracer.Start(ctx, "EntityRepository.CommitTransition",
		trace.WithAttributes(append(attrs,
			attribute.String("tenant.id", c.Before.TenantID),
			attribute.String("entity.id", c.Before.ID),
			attribute.String("transition.from", string(c.Before.Status)),
			attribute.Int64("entity.version", c.Before.Version),
			attribute.String("actor.id", c.Record.ActorID),
		)...),
	)
	defer span.End()

	err := r.next.CommitTransition(ctx, c)
	recordError(span, err)

	outcome := "committed"
	if err != nil {
		outcome = domain.Kind(err)
	}
	r.transitions.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("outcome", outcome))...))
	return err
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
