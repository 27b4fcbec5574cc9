package connector

import (
	"context"

	"github.com/teemow/calendarchat/internal/instrumentation"
	"github.com/teemow/calendarchat/internal/tools"
)

// Instrumented wraps a Platform so every tool execution is traced, counted
// and audit logged. Nil metrics or audit logger disable that part.
type Instrumented struct {
	Platform
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
}

// Instrument decorates p.
func Instrument(p Platform, metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) *Instrumented {
	return &Instrumented{Platform: p, metrics: metrics, audit: audit}
}

// Execute implements Platform. The acting user is read from ctx
// (tools.WithUser) for metrics and the audit record.
func (i *Instrumented) Execute(ctx context.Context, entityID, tool string, args map[string]any) (string, error) {
	backend := i.Platform.Backend()
	ctx, span := instrumentation.StartToolSpan(ctx, tool, backend)
	defer span.End()

	user, _ := tools.UserFromContext(ctx)
	execution := instrumentation.NewToolExecution(ctx, tool, backend, user, entityID)

	out, err := i.Platform.Execute(ctx, entityID, tool, args)

	execution.Complete(err)
	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	i.metrics.RecordToolExecution(ctx, tool, backend, execution.Status(), user, execution.Duration)
	i.audit.LogToolExecution(execution)

	return out, err
}

// Disconnect forwards to the wrapped backend when it supports dropping a
// connection. It reports false otherwise.
func (i *Instrumented) Disconnect(entityID string) bool {
	d, ok := i.Platform.(interface{ Disconnect(string) bool })
	if !ok {
		return false
	}
	return d.Disconnect(entityID)
}
