// Package dispatch turns a chat message into calendar actions.
//
// Dispatch validates the request, resolves the user's connection and, for an
// active connection, runs two LLM stages: Act, where the model may call
// calendar tools, and Summarize, where the tool transcript is turned into a
// conversational reply. Users without an active connection get a reply
// asking them to connect and the LLM is not called.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/teemow/calendarchat/internal/apperr"
	"github.com/teemow/calendarchat/internal/bridge"
	"github.com/teemow/calendarchat/internal/connector"
	"github.com/teemow/calendarchat/internal/instrumentation"
	"github.com/teemow/calendarchat/internal/llm"
	"github.com/teemow/calendarchat/internal/logging"
	"github.com/teemow/calendarchat/internal/tools"
)

// MaxToolCalls bounds the tool calls executed from one completion.
const MaxToolCalls = 10

// StatusResolver reports a user's integration status. *bridge.Bridge
// implements it.
type StatusResolver interface {
	Status(ctx context.Context, email string) bridge.Resolution
}

// Stats receives dispatch counters. Nil is allowed.
type Stats interface {
	MessageDispatched()
	LLMCalled()
	ToolExecuted()
}

// Dispatcher runs the chat pipeline.
type Dispatcher struct {
	status   StatusResolver
	platform connector.Platform
	llm      llm.Client
	model    string
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	stats    Stats
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithStats sets the process counters.
func WithStats(s Stats) Option {
	return func(d *Dispatcher) { d.stats = s }
}

// WithModel sets the model name recorded on spans.
func WithModel(model string) Option {
	return func(d *Dispatcher) { d.model = model }
}

// New creates a Dispatcher.
func New(status StatusResolver, platform connector.Platform, client llm.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		status:   status,
		platform: platform,
		llm:      client,
		model:    llm.DefaultModel,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.WithComponent(d.logger, "dispatch")
	return d
}

// Validate checks req and returns a ValidationError naming the failing fields.
func (d *Dispatcher) Validate(req Request) error {
	err := d.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	name := jsonName(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s long", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// Dispatch runs the pipeline for req.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	req.Message = strings.TrimSpace(req.Message)
	req.UserEmail = strings.TrimSpace(req.UserEmail)
	if err := d.Validate(req); err != nil {
		return nil, err
	}
	if d.stats != nil {
		d.stats.MessageDispatched()
	}

	logger := d.logger.With(logging.UserHash(req.UserEmail))

	res := d.status.Status(ctx, req.UserEmail)
	if res.Status != bridge.StatusActive {
		d.metrics.RecordDispatchShortCircuit(ctx, string(res.Status))
		logger.Info("Message not dispatched, calendar not connected", logging.Status(string(res.Status)))
		return &Response{
			Message:          connectMessage(res.Status, res.Detail),
			NeedsConnection:  true,
			ConnectionStatus: res.Status,
		}, nil
	}

	bindings, err := d.platform.Tools(ctx, res.EntityID)
	if err != nil {
		return nil, apperr.Upstream("failed to fetch calendar tools", err)
	}

	ctx = tools.WithUser(ctx, req.UserEmail)

	act, transcript, err := d.Act(ctx, req, res.EntityID, tools.Functions(bindings))
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Message:          act.Content,
		ConnectionStatus: res.Status,
	}
	if transcript.Empty() {
		return resp, nil
	}

	summary, err := d.Summarize(ctx, req, act.Content, transcript)
	if err != nil {
		return nil, err
	}
	resp.Message = summary
	resp.ToolCalls = transcript.Calls
	resp.ToolResults = transcript.Results

	logger.Info("Message dispatched", slog.Int("tool_calls", len(transcript.Calls)))
	return resp, nil
}

// Act runs the first completion with tools attached and executes every tool
// call it returns. Tool failures are captured in the transcript.
func (d *Dispatcher) Act(ctx context.Context, req Request, entityID string, functions []llm.Function) (*llm.Response, *llm.Transcript, error) {
	resp, err := d.complete(ctx, instrumentation.StageAct, llm.Request{
		Messages: actMessages(req),
		Tools:    functions,
	})
	if err != nil {
		return nil, nil, apperr.Upstream("language model request failed", err)
	}

	transcript := &llm.Transcript{}
	calls := resp.ToolCalls
	if len(calls) > MaxToolCalls {
		d.logger.Warn("Dropping excess tool calls", slog.Int("requested", len(calls)), slog.Int("max", MaxToolCalls))
		calls = calls[:MaxToolCalls]
	}
	for _, call := range calls {
		transcript.Record(call, d.execute(ctx, entityID, call))
	}
	return resp, transcript, nil
}

func (d *Dispatcher) execute(ctx context.Context, entityID string, call llm.ToolCall) llm.ToolResult {
	result := llm.ToolResult{CallID: call.ID, Name: call.Name}
	if d.stats != nil {
		d.stats.ToolExecuted()
	}

	args, err := call.Args()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	out, err := d.platform.Execute(ctx, entityID, call.Name, args)
	if err != nil {
		d.logger.Warn("Tool execution failed", logging.Tool(call.Name), logging.Err(err))
		result.Error = err.Error()
		return result
	}
	result.Content = out
	return result
}

// Summarize runs the second completion, without tools, turning the
// transcript into the reply text.
func (d *Dispatcher) Summarize(ctx context.Context, req Request, draft string, transcript *llm.Transcript) (string, error) {
	resp, err := d.complete(ctx, instrumentation.StageSummarize, llm.Request{
		Messages: summarizeMessages(req, draft, transcript),
	})
	if err != nil {
		return "", apperr.Upstream("language model request failed", err)
	}
	return resp.Content, nil
}

func (d *Dispatcher) complete(ctx context.Context, stage string, req llm.Request) (*llm.Response, error) {
	ctx, span := instrumentation.StartLLMSpan(ctx, stage, d.model)
	defer span.End()

	if d.stats != nil {
		d.stats.LLMCalled()
	}

	start := time.Now()
	resp, err := d.llm.Complete(ctx, req)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	d.metrics.RecordLLMCompletion(ctx, stage, status, time.Since(start))
	return resp, err
}
