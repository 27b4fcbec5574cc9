package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for all calendarchat spans.
const TracerName = "github.com/teemow/calendarchat"

// Span attribute keys.
const (
	SpanAttrTool      = "calendarchat.tool"
	SpanAttrBackend   = "calendarchat.backend"
	SpanAttrStage     = "calendarchat.llm.stage"
	SpanAttrModel     = "calendarchat.llm.model"
	SpanAttrUserHash  = "calendarchat.user_hash"
	SpanAttrPhase     = "calendarchat.callback.phase"
	SpanAttrToolCalls = "calendarchat.tool_calls"
)

// StartSpan starts a new span with the given name and attributes.
// The caller must end the span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartLLMSpan starts a client span for one LLM completion.
func StartLLMSpan(ctx context.Context, stage, model string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "llm."+stage,
		trace.WithAttributes(
			attribute.String(SpanAttrStage, stage),
			attribute.String(SpanAttrModel, model),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartToolSpan starts a client span for a calendar tool execution.
func StartToolSpan(ctx context.Context, tool, backend string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "tool."+tool,
		trace.WithAttributes(
			attribute.String(SpanAttrTool, tool),
			attribute.String(SpanAttrBackend, backend),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the current span in context, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the current span in context, or "".
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}
