package callback

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/calendarchat/internal/apperr"
	"github.com/teemow/calendarchat/internal/bridge"
	"github.com/teemow/calendarchat/internal/chat"
	"github.com/teemow/calendarchat/internal/oauthflow"
	"github.com/teemow/calendarchat/internal/registry"
)

type stubExchanger struct {
	token *oauth2.Token
	err   error
	codes []string
}

func (s *stubExchanger) Exchange(_ context.Context, code, _ string) (*oauth2.Token, error) {
	s.codes = append(s.codes, code)
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

type stubFlows struct {
	flows map[string]*oauthflow.Flow
}

func (s *stubFlows) Consume(state string) (*oauthflow.Flow, error) {
	f, ok := s.flows[state]
	if !ok {
		return nil, oauthflow.ErrStateNotFound
	}
	delete(s.flows, state)
	return f, nil
}

type stubIdentity struct {
	email string
	err   error
}

func (s stubIdentity) ResolveEmail(context.Context, *oauth2.Token) (string, error) {
	return s.email, s.err
}

type stubIntegrator struct {
	err   error
	calls []string
}

func (s *stubIntegrator) SetupConnection(_ context.Context, email string) (*bridge.Result, error) {
	s.calls = append(s.calls, email)
	if s.err != nil {
		return nil, apperr.IntegrationSetupFailed("setup failed", s.err)
	}
	return &bridge.Result{EntityID: "abcom", Status: bridge.StatusActive}, nil
}

type fixture struct {
	handler    *Handler
	exchanger  *stubExchanger
	integrator *stubIntegrator
	registry   *registry.Registry
	feed       *chat.Feed
	now        time.Time
	phases     []Phase
	logs       *bytes.Buffer
}

func newFixture(t *testing.T, flowEmail string) *fixture {
	t.Helper()
	f := &fixture{
		exchanger:  &stubExchanger{token: &oauth2.Token{AccessToken: "t1", ExpiresIn: 3600}},
		integrator: &stubIntegrator{},
		feed:       chat.NewFeed(10),
		now:        time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		logs:       &bytes.Buffer{},
	}
	f.registry = registry.New(registry.NewMemoryStore(), registry.WithClock(func() time.Time { return f.now }))

	h, err := New(Config{
		Exchanger:  f.exchanger,
		Identity:   stubIdentity{email: "a@b.com"},
		Flows:      &stubFlows{flows: map[string]*oauthflow.Flow{"XYZ": {State: "XYZ", UserEmail: flowEmail, Verifier: "v"}}},
		Registry:   f.registry,
		Integrator: f.integrator,
		Feed:       f.feed,
	},
		WithObserver(func(p Phase) { f.phases = append(f.phases, p) }),
		WithLogger(slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	require.NoError(t, err)
	f.handler = h
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHandle_Success(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	out := f.handler.Handle(ctx, "https://app/callback?code=ABC&state=XYZ")

	require.True(t, out.Succeeded(), "detail: %s", out.Detail)
	assert.Equal(t, "a@b.com", out.UserEmail)
	assert.Equal(t, SuccessRedirectDelay, out.RedirectAfter)
	assert.Equal(t, []string{"ABC"}, f.exchanger.codes)

	records, err := f.registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, registry.StatusActive, records[0].Status)
	assert.Equal(t, f.now.Add(3600*time.Second), records[0].ExpiresAt)
	assert.True(t, f.registry.IsActive(ctx, "a@b.com"))

	require.NotNil(t, out.Integration)
	assert.Equal(t, []string{"a@b.com"}, f.integrator.calls)

	notes := f.feed.List("a@b.com")
	require.Len(t, notes, 1)
	assert.Equal(t, chat.LevelSuccess, notes[0].Level)
}

func TestHandle_PhaseOrder(t *testing.T) {
	f := newFixture(t, "")
	out := f.handler.Handle(context.Background(), "/oauth/callback?code=ABC&state=XYZ")

	want := []Phase{PhaseProcessing, PhaseValidating, PhaseExchanging, PhaseConfiguring, PhaseSuccess}
	assert.Equal(t, want, out.Phases)
	assert.Equal(t, want, f.phases)
}

func TestHandle_FlowEmailTakesPrecedence(t *testing.T) {
	f := newFixture(t, "Flow@Example.com")
	out := f.handler.Handle(context.Background(), "/oauth/callback?code=ABC&state=XYZ")

	require.True(t, out.Succeeded())
	assert.Equal(t, "flow@example.com", out.UserEmail)
}

func TestHandle_MissingParametersNeverSucceed(t *testing.T) {
	urls := []string{
		"https://app/callback",
		"https://app/callback?code=ABC",
		"https://app/callback?state=XYZ",
		"https://app/callback?code=&state=XYZ",
		"https://app/callback?code=ABC&state=%20",
	}

	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			f := newFixture(t, "")
			out := f.handler.Handle(context.Background(), u)

			assert.Equal(t, PhaseError, out.Phase)
			assert.Equal(t, apperr.KindMalformedCallback, out.ErrorKind)
			assert.Equal(t, ErrorRedirectDelay, out.RedirectAfter)
			assert.Empty(t, f.exchanger.codes)
			assert.Equal(t, PhaseProcessing, out.Phases[0])
			assert.NotContains(t, out.Phases, PhaseSuccess)
		})
	}
}

func TestHandle_ProviderError(t *testing.T) {
	f := newFixture(t, "")
	out := f.handler.Handle(context.Background(), "/oauth/callback?error=access_denied&state=XYZ")

	assert.Equal(t, PhaseError, out.Phase)
	assert.Equal(t, apperr.KindMalformedCallback, out.ErrorKind)
	assert.Contains(t, out.Detail, "access_denied")
}

func TestHandle_StateMismatch(t *testing.T) {
	f := newFixture(t, "")
	out := f.handler.Handle(context.Background(), "/oauth/callback?code=ABC&state=OTHER")

	assert.Equal(t, PhaseError, out.Phase)
	assert.Equal(t, apperr.KindMalformedCallback, out.ErrorKind)
	assert.Equal(t, "state mismatch", out.Message)
	assert.Empty(t, f.exchanger.codes)
}

func TestHandle_StateIsSingleUse(t *testing.T) {
	f := newFixture(t, "")
	first := f.handler.Handle(context.Background(), "/oauth/callback?code=ABC&state=XYZ")
	require.True(t, first.Succeeded())

	second := f.handler.Handle(context.Background(), "/oauth/callback?code=ABC&state=XYZ")
	assert.Equal(t, PhaseError, second.Phase)
	assert.Equal(t, apperr.KindMalformedCallback, second.ErrorKind)
}

func TestHandle_ExchangeFailure(t *testing.T) {
	f := newFixture(t, "")
	f.exchanger.err = errors.New("invalid_grant")

	out := f.handler.Handle(context.Background(), "/oauth/callback?code=ABC&state=XYZ")

	assert.Equal(t, PhaseError, out.Phase)
	assert.Equal(t, apperr.KindTokenExchangeFailed, out.ErrorKind)
	assert.Contains(t, out.Detail, "invalid_grant")
	assert.Equal(t, []Phase{PhaseProcessing, PhaseValidating, PhaseExchanging, PhaseError}, out.Phases)

	summary, err := f.registry.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Total)

	notes := f.feed.List(chat.AnonymousUser)
	require.Len(t, notes, 1)
	assert.Equal(t, chat.LevelError, notes[0].Level)
}

func TestHandle_IdentityFailure(t *testing.T) {
	f := newFixture(t, "")
	f.handler.cfg.Identity = stubIdentity{err: errors.New("userinfo unavailable")}

	out := f.handler.Handle(context.Background(), "/oauth/callback?code=ABC&state=XYZ")
	assert.Equal(t, apperr.KindTokenExchangeFailed, out.ErrorKind)
}

func TestHandle_BridgeFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, "")
	f.integrator.err = errors.New("connector down")

	out := f.handler.Handle(context.Background(), "/oauth/callback?code=ABC&state=XYZ")

	assert.True(t, out.Succeeded())
	assert.Nil(t, out.Integration)
	assert.NotEmpty(t, out.Detail)
	assert.True(t, f.registry.IsActive(context.Background(), "a@b.com"))
	assert.Contains(t, f.logs.String(), "Integration setup failed")
}

func TestHandle_SingleTerminalPhase(t *testing.T) {
	for _, u := range []string{"/cb?code=ABC&state=XYZ", "/cb?code=ABC", "/cb?code=ABC&state=nope"} {
		f := newFixture(t, "")
		out := f.handler.Handle(context.Background(), u)

		terminal := 0
		for _, p := range out.Phases {
			if p.Terminal() {
				terminal++
			}
		}
		assert.Equal(t, 1, terminal, u)
		assert.True(t, out.Phases[len(out.Phases)-1].Terminal(), u)
	}
}
