package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod  = "method"
	attrPath    = "path"
	attrStatus  = "status"
	attrResult  = "result"
	attrTool    = "tool"
	attrBackend = "backend"
	attrStage   = "stage"
	attrMode    = "mode"
	attrReason  = "reason"
	attrDomain  = "user_domain"
)

// Metrics records service metrics. The zero value is a valid no-op recorder.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	oauthCallbacksTotal    metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	connectionSetupsTotal metric.Int64Counter

	llmCompletionsTotal   metric.Int64Counter
	llmCompletionDuration metric.Float64Histogram

	toolExecutionsTotal metric.Int64Counter
	toolDuration        metric.Float64Histogram

	dispatchShortCircuits metric.Int64Counter

	detailedLabels bool
}

// NewMetrics creates all instruments on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	counter := func(name, desc, unit string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			err = fmt.Errorf("failed to create %s counter: %w", name, err)
		}
		return c
	}
	histogram := func(name, desc string, bounds ...float64) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(bounds...),
		)
		if err != nil {
			err = fmt.Errorf("failed to create %s histogram: %w", name, err)
		}
		return h
	}

	m.httpRequestsTotal = counter("http_requests_total", "Total number of HTTP requests", "{request}")
	m.httpRequestDuration = histogram("http_request_duration_seconds", "HTTP request duration in seconds",
		0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0)
	m.oauthCallbacksTotal = counter("oauth_callbacks_total", "OAuth callbacks by terminal result", "{callback}")
	m.oauthTokenRefreshTotal = counter("oauth_token_refresh_total", "Token refresh attempts by mode and result", "{attempt}")
	m.connectionSetupsTotal = counter("connection_setups_total", "Tool-connector connection setups by resulting status", "{setup}")
	m.llmCompletionsTotal = counter("llm_completions_total", "LLM completions by pipeline stage and status", "{completion}")
	m.llmCompletionDuration = histogram("llm_completion_duration_seconds", "LLM completion latency in seconds",
		0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0)
	m.toolExecutionsTotal = counter("tool_executions_total", "Calendar tool executions by tool and status", "{execution}")
	m.toolDuration = histogram("tool_execution_duration_seconds", "Calendar tool execution duration in seconds",
		0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)
	m.dispatchShortCircuits = counter("dispatch_short_circuits_total", "Chat messages answered without the LLM because no connection was usable", "{message}")
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthCallback records a finished OAuth callback. result is the
// terminal phase; reason is the error kind or "" on success.
func (m *Metrics) RecordOAuthCallback(ctx context.Context, result, reason string) {
	if m == nil || m.oauthCallbacksTotal == nil {
		return
	}
	m.oauthCallbacksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
		attribute.String(attrReason, reason),
	))
}

// RecordTokenRefresh records a registry refresh. mode is RefreshModeProvider
// or RefreshModeSimulated.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, mode, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrMode, mode),
		attribute.String(attrResult, result),
	))
}

// RecordConnectionSetup records a bridge setup outcome ("active", "pending" or "error").
func (m *Metrics) RecordConnectionSetup(ctx context.Context, backend, status string) {
	if m == nil || m.connectionSetupsTotal == nil {
		return
	}
	m.connectionSetupsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrBackend, backend),
		attribute.String(attrStatus, status),
	))
}

// RecordLLMCompletion records one LLM call for a pipeline stage.
func (m *Metrics) RecordLLMCompletion(ctx context.Context, stage, status string, duration time.Duration) {
	if m == nil || m.llmCompletionsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrStatus, status),
	)
	m.llmCompletionsTotal.Add(ctx, 1, attrs)
	m.llmCompletionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordToolExecution records a tool execution. userEmail is only attached,
// as a domain, when detailed labels are enabled.
func (m *Metrics) RecordToolExecution(ctx context.Context, tool, backend, status, userEmail string, duration time.Duration) {
	if m == nil || m.toolExecutionsTotal == nil {
		return
	}
	kv := []attribute.KeyValue{
		attribute.String(attrTool, tool),
		attribute.String(attrBackend, backend),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && userEmail != "" {
		kv = append(kv, attribute.String(attrDomain, ExtractUserDomain(userEmail)))
	}
	attrs := metric.WithAttributes(kv...)
	m.toolExecutionsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordDispatchShortCircuit records a chat message answered with a
// connection prompt. status is the connection status that caused it.
func (m *Metrics) RecordDispatchShortCircuit(ctx context.Context, status string) {
	if m == nil || m.dispatchShortCircuits == nil {
		return
	}
	m.dispatchShortCircuits.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}
