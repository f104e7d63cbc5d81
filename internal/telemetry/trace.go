package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a span for a service operation.
//
//	ctx, span := telemetry.StartSpan(ctx, "estate/directory", "directory.GrantRole",
//	    attribute.String(telemetry.AttrUserID, userID),
//	    attribute.String(telemetry.AttrRole, string(role)),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks the span failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named business event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

const (
	AttrUserID     = "user.id"
	AttrSessionID  = "session.id"
	AttrRole       = "role.name"
	AttrGeneration = "authority.generation"
	AttrResource   = "authority.resource"
	AttrKYCStatus  = "kyc.status"
	AttrTaskID     = "provisioning.task_id"

	AttrPolicyAction   = "policy.action"
	AttrPolicyResource = "policy.resource"
	AttrPolicyAllowed  = "policy.allowed"
)
