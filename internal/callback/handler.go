package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/teemow/calendarchat/internal/apperr"
	"github.com/teemow/calendarchat/internal/bridge"
	"github.com/teemow/calendarchat/internal/chat"
	"github.com/teemow/calendarchat/internal/google"
	"github.com/teemow/calendarchat/internal/instrumentation"
	"github.com/teemow/calendarchat/internal/logging"
	"github.com/teemow/calendarchat/internal/oauthflow"
	"github.com/teemow/calendarchat/internal/registry"
)

// Redirect delays for the status page.
const (
	SuccessRedirectDelay = 2 * time.Second
	ErrorRedirectDelay   = 5 * time.Second
)

// TokenExchanger trades an authorization code for tokens.
// *google.Client implements it.
type TokenExchanger interface {
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
}

// FlowStore hands out pending flows by state. *oauthflow.Store implements it.
type FlowStore interface {
	Consume(state string) (*oauthflow.Flow, error)
}

// Integrator sets up the tool-connector entity. *bridge.Bridge implements it.
type Integrator interface {
	SetupConnection(ctx context.Context, email string) (*bridge.Result, error)
}

// Outcome is the result of one callback.
type Outcome struct {
	Phase     Phase
	Phases    []Phase
	UserEmail string

	Record      *registry.Record
	Integration *bridge.Result

	ErrorKind apperr.Kind
	Message   string
	Detail    string

	RedirectAfter time.Duration
}

// Succeeded reports whether the callback ended in PhaseSuccess.
func (o *Outcome) Succeeded() bool {
	return o.Phase == PhaseSuccess
}

// Config holds the Handler's collaborators. Identity and Integrator are
// optional.
type Config struct {
	Exchanger  TokenExchanger
	Identity   google.IdentityResolver
	Flows      FlowStore
	Registry   *registry.Registry
	Integrator Integrator
	Feed       *chat.Feed
}

// Handler processes OAuth callbacks.
type Handler struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	observers []func(Phase)
}

// Option configures a Handler.
type Option func(*Handler)

// WithObserver registers fn to be called on every phase transition.
func WithObserver(fn func(Phase)) Option {
	return func(h *Handler) { h.observers = append(h.observers, fn) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// New creates a Handler.
func New(cfg Config, opts ...Option) (*Handler, error) {
	if cfg.Exchanger == nil {
		return nil, fmt.Errorf("token exchanger cannot be nil")
	}
	if cfg.Flows == nil {
		return nil, fmt.Errorf("flow store cannot be nil")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	h := &Handler{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.WithComponent(h.logger, "callback")
	return h, nil
}

// Handle processes the redirect URL. It never returns a nil Outcome and the
// outcome always ends in a terminal phase.
func (h *Handler) Handle(ctx context.Context, redirectURL string) *Outcome {
	ctx, span := instrumentation.StartSpan(ctx, "oauth.callback")
	defer span.End()

	start := time.Now()
	out := &Outcome{}
	h.enter(out, PhaseProcessing)

	err := h.run(ctx, redirectURL, out)
	if err != nil {
		h.fail(out, err)
		instrumentation.SetSpanError(span, err)
	} else {
		out.RedirectAfter = SuccessRedirectDelay
		h.enter(out, PhaseSuccess)
		instrumentation.SetSpanSuccess(span)
	}
	span.SetAttributes(attribute.String(instrumentation.SpanAttrPhase, string(out.Phase)))

	h.notify(out)
	h.record(ctx, out, time.Since(start))
	return out
}

func (h *Handler) run(ctx context.Context, redirectURL string, out *Outcome) error {
	h.enter(out, PhaseValidating)

	params, err := ParseRedirect(redirectURL)
	if err != nil {
		return apperr.New(apperr.KindMalformedCallback, "the authorization response could not be read", err)
	}
	if params.ProviderError != "" {
		cause := errors.New(params.ProviderError)
		if params.ProviderErrorDescription != "" {
			cause = fmt.Errorf("%s: %s", params.ProviderError, params.ProviderErrorDescription)
		}
		return apperr.New(apperr.KindMalformedCallback, "Google did not grant calendar access", cause)
	}
	if params.Code == "" || params.State == "" {
		return apperr.MalformedCallback("missing code or state parameter")
	}

	flow, err := h.cfg.Flows.Consume(params.State)
	if err != nil {
		return apperr.New(apperr.KindMalformedCallback, "state mismatch", err)
	}
	out.UserEmail = registry.NormalizeEmail(flow.UserEmail)

	h.enter(out, PhaseExchanging)

	tok, err := h.cfg.Exchanger.Exchange(ctx, params.Code, flow.Verifier)
	if err != nil {
		return apperr.TokenExchangeFailed("failed to exchange authorization code", err)
	}

	if out.UserEmail == "" {
		email, err := h.resolveEmail(ctx, tok)
		if err != nil {
			return apperr.TokenExchangeFailed("failed to resolve the connected account", err)
		}
		out.UserEmail = registry.NormalizeEmail(email)
	}

	rec, err := h.cfg.Registry.Upsert(ctx, out.UserEmail, google.TokensFrom(tok))
	if err != nil {
		return apperr.Upstream("failed to record connection", err)
	}
	out.Record = rec

	h.enter(out, PhaseConfiguring)
	h.configure(ctx, out)
	return nil
}

func (h *Handler) resolveEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	if h.cfg.Identity == nil {
		return "", errors.New("flow has no user and no identity resolver is configured")
	}
	return h.cfg.Identity.ResolveEmail(ctx, tok)
}

// configure notifies the integration bridge. Failures are logged only.
func (h *Handler) configure(ctx context.Context, out *Outcome) {
	out.Message = fmt.Sprintf("Google Calendar connected for %s.", out.UserEmail)
	if h.cfg.Integrator == nil {
		return
	}

	res, err := h.cfg.Integrator.SetupConnection(ctx, out.UserEmail)
	if err != nil {
		h.logger.Warn("Integration setup failed after successful authorization",
			logging.UserHash(out.UserEmail),
			logging.Err(err))
		out.Detail = "The assistant integration could not be set up yet; it will be retried when you connect again."
		return
	}
	out.Integration = res
}

func (h *Handler) enter(out *Outcome, p Phase) {
	out.Phase = p
	out.Phases = append(out.Phases, p)
	h.logger.Debug("Callback phase", logging.Phase(string(p)))
	for _, fn := range h.observers {
		fn(p)
	}
}

func (h *Handler) fail(out *Outcome, err error) {
	out.Phase = PhaseError
	out.RedirectAfter = ErrorRedirectDelay
	out.ErrorKind = apperr.KindOf(err)

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		out.Message = appErr.Message
		out.Detail = appErr.Detail()
	} else {
		out.Message = "authorization failed"
		out.Detail = err.Error()
	}
	h.enter(out, PhaseError)

	h.logger.Warn("OAuth callback failed",
		logging.UserHash(out.UserEmail),
		slog.String("kind", string(out.ErrorKind)),
		logging.Err(err))
}

func (h *Handler) notify(out *Outcome) {
	if h.cfg.Feed == nil {
		return
	}
	if out.Succeeded() {
		text := out.Message + " You can now ask me to manage your calendar."
		if out.Detail != "" {
			text += " " + out.Detail
		}
		h.cfg.Feed.Post(out.UserEmail, chat.LevelSuccess, text)
		return
	}
	h.cfg.Feed.Post(out.UserEmail, chat.LevelError,
		fmt.Sprintf("Connecting Google Calendar failed: %s. Please try connecting again.", out.Message))
}

func (h *Handler) record(ctx context.Context, out *Outcome, duration time.Duration) {
	status := instrumentation.StatusSuccess
	if !out.Succeeded() {
		status = instrumentation.StatusError
	}
	h.metrics.RecordOAuthCallback(ctx, status, string(out.ErrorKind))

	if out.Succeeded() {
		h.logger.Info("OAuth callback completed",
			logging.UserHash(out.UserEmail),
			logging.Connection(out.Record.ConnectionID),
			slog.Duration(logging.KeyDuration, duration))
	}
}
