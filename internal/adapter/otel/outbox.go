package otel

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/statusgate/internal/adapter/sqlite"
	"github.com/neomorfeo/statusgate/internal/domain"
)

// TracingOutbox wraps a sqlite.Outbox with OpenTelemetry tracing.
type TracingOutbox struct {
	next   sqlite.Outbox
	tracer trace.Tracer
}

// Compile-time check: TracingOutbox implements sqlite.Outbox.
var _ sqlite.Outbox = (*TracingOutbox)(nil)

// NewTracingOutbox creates a tracing decorator around the given outbox.
func NewTracingOutbox(next sqlite.Outbox) *TracingOutbox {
	return &TracingOutbox{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
	}
}

func (o *TracingOutbox) EnqueueTx(ctx context.Context, tx *sql.Tx, event domain.EntityTransitioned) error {
	ctx, span := o.tracer.Start(ctx, "Outbox.EnqueueTx",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("event.type", domain.EventEntityTransitioned),
			attribute.String("tenant.id", event.Record.TenantID),
			attribute.String("entity.id", event.Record.EntityID),
			attribute.String("record.id", event.Record.ID),
		),
	)
	defer span.End()

	err := o.next.EnqueueTx(ctx, tx, event)
	recordError(span, err)
	return err
}
