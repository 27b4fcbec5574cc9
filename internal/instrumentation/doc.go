// Package instrumentation wires OpenTelemetry metrics and tracing for
// calendarchat.
//
// # Metrics
//
//   - http_requests_total, http_request_duration_seconds: API traffic by method, path, status
//   - oauth_callbacks_total: OAuth callbacks by terminal result and error kind
//   - oauth_token_refresh_total: registry refreshes by mode (provider, simulated) and result
//   - connection_setups_total: connector setups by backend and status
//   - llm_completions_total, llm_completion_duration_seconds: LLM calls by stage
//   - tool_executions_total, tool_execution_duration_seconds: calendar tool calls
//   - dispatch_short_circuits_total: messages answered with a connection prompt
//
// Metrics are exported via Prometheus (default), OTLP HTTP or stdout, selected
// with METRICS_EXPORTER. Traces are off unless TRACING_EXPORTER is otlp or stdout.
//
// # Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordLLMCompletion(ctx, instrumentation.StageAct, instrumentation.StatusSuccess, d)
//
// All Record methods are safe on a nil or zero-value *Metrics.
package instrumentation
