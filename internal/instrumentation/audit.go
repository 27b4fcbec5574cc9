package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// ToolExecution is the audit record of one calendar tool call made on behalf
// of a user during chat dispatch.
type ToolExecution struct {
	Tool      string
	Backend   string
	UserEmail string
	EntityID  string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolExecution starts timing a tool execution.
func NewToolExecution(ctx context.Context, tool, backend, userEmail, entityID string) *ToolExecution {
	return &ToolExecution{
		Tool:      tool,
		Backend:   backend,
		UserEmail: userEmail,
		EntityID:  entityID,
		StartTime: time.Now(),
		TraceID:   GetTraceID(ctx),
		SpanID:    GetSpanID(ctx),
	}
}

// Complete stops the timer and records the outcome.
func (te *ToolExecution) Complete(err error) *ToolExecution {
	te.Duration = time.Since(te.StartTime)
	te.Success = err == nil
	if err != nil {
		te.Error = err.Error()
	}
	return te
}

// Status returns "success" or "error".
func (te *ToolExecution) Status() string {
	if te.Success {
		return StatusSuccess
	}
	return StatusError
}

func (te *ToolExecution) attrs(includePII bool) []any {
	args := []any{
		slog.String("tool", te.Tool),
		slog.String("backend", te.Backend),
		slog.Duration("duration", te.Duration),
		slog.Bool("success", te.Success),
	}
	if includePII {
		args = append(args, slog.String("user", te.UserEmail), slog.String("entity_id", te.EntityID))
	} else {
		args = append(args, slog.String("user_domain", ExtractUserDomain(te.UserEmail)))
	}
	if te.TraceID != "" {
		args = append(args, slog.String("trace_id", te.TraceID))
	}
	if te.SpanID != "" {
		args = append(args, slog.String("span_id", te.SpanID))
	}
	if te.Error != "" {
		args = append(args, slog.String("error", te.Error))
	}
	return args
}

// AuditLogger writes tool execution records.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLoggerWithConfig creates an AuditLogger. A nil logger means slog.Default().
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With("component", "audit"),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolExecution logs te at info on success and warn on failure.
// Safe on a nil receiver.
func (al *AuditLogger) LogToolExecution(te *ToolExecution) {
	if al == nil || !al.enabled || te == nil {
		return
	}
	if te.Success {
		al.logger.Info("tool_executed", te.attrs(al.includePII)...)
	} else {
		al.logger.Warn("tool_failed", te.attrs(al.includePII)...)
	}
}
