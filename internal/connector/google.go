package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/calendarchat/internal/calendar"
	"github.com/teemow/calendarchat/internal/google"
	"github.com/teemow/calendarchat/internal/logging"
	"github.com/teemow/calendarchat/internal/registry"
	"github.com/teemow/calendarchat/internal/tools"
)

// TokenSourcer builds a refreshing token source for stored tokens.
// *google.Client implements it.
type TokenSourcer interface {
	TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource
}

// GoogleConfig configures the Google backend.
type GoogleConfig struct {
	Registry *registry.Registry

	// Tokens refreshes expired access tokens. When nil the stored access
	// token is used as is.
	Tokens TokenSourcer

	// StartURL is where users begin the OAuth flow, e.g.
	// http://localhost:3001/oauth/start.
	StartURL string

	// CalendarOptions are appended when building Calendar API clients.
	CalendarOptions []option.ClientOption

	Logger *slog.Logger
}

// Google executes calendar tools with the Google Calendar API using the
// tokens recorded in the connection registry.
type Google struct {
	cfg    GoogleConfig
	logger *slog.Logger

	mu    sync.RWMutex
	index map[string]string // entity id -> email
}

// NewGoogle creates the Google backend.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Google{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "connector.google"),
		index:  make(map[string]string),
	}, nil
}

// Backend implements Platform.
func (g *Google) Backend() string { return BackendGoogle }

func (g *Google) remember(entityID, email string) {
	g.mu.Lock()
	g.index[entityID] = registry.NormalizeEmail(email)
	g.mu.Unlock()
}

// resolveEmail maps an entity id back to the user's email, scanning the
// registry when the entity has not been seen by this process.
func (g *Google) resolveEmail(ctx context.Context, entityID string) (string, bool, error) {
	g.mu.RLock()
	email, ok := g.index[entityID]
	g.mu.RUnlock()
	if ok {
		return email, true, nil
	}

	records, err := g.cfg.Registry.List(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to list connections: %w", err)
	}
	for _, rec := range records {
		if EntityID(rec.UserEmail) == entityID {
			g.remember(entityID, rec.UserEmail)
			return rec.UserEmail, true, nil
		}
	}
	return "", false, nil
}

func (g *Google) record(ctx context.Context, entityID string) (*registry.Record, error) {
	email, ok, err := g.resolveEmail(ctx, entityID)
	if err != nil || !ok {
		return nil, err
	}
	rec, err := g.cfg.Registry.Get(ctx, email)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// GetConnection reports the registry record for the entity as a connection.
func (g *Google) GetConnection(ctx context.Context, entityID string) (*Connection, error) {
	rec, err := g.record(ctx, entityID)
	if err != nil || rec == nil {
		return nil, err
	}

	return &Connection{
		ID:        rec.ConnectionID,
		EntityID:  entityID,
		UserEmail: rec.UserEmail,
		Status:    ConnectionStatus(rec.EffectiveStatus(g.cfg.Registry.Now())),
		CreatedAt: rec.CreatedAt,
	}, nil
}

// InitiateConnection returns a pending connection pointing the user at the
// OAuth start URL. The connection becomes active once the callback records
// tokens for the user.
func (g *Google) InitiateConnection(_ context.Context, entityID, userEmail string) (*Connection, error) {
	if userEmail == "" {
		return nil, registry.ErrInvalidEmail
	}
	if g.cfg.StartURL == "" {
		return nil, fmt.Errorf("oauth start URL is not configured")
	}
	g.remember(entityID, userEmail)

	u, err := url.Parse(g.cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth start URL: %w", err)
	}
	q := u.Query()
	q.Set("userEmail", userEmail)
	u.RawQuery = q.Encode()

	g.logger.Info("Connection initiated",
		logging.Entity(entityID),
		logging.UserHash(userEmail))

	return &Connection{
		EntityID:    entityID,
		UserEmail:   registry.NormalizeEmail(userEmail),
		Status:      ConnectionPending,
		RedirectURL: u.String(),
	}, nil
}

// Tools returns the full calendar catalog; every entity gets the same tools.
func (g *Google) Tools(context.Context, string) ([]mcp.Tool, error) {
	return tools.Catalog(), nil
}

// Execute runs the tool against the user's Google Calendar.
func (g *Google) Execute(ctx context.Context, entityID, tool string, args map[string]any) (string, error) {
	rec, err := g.record(ctx, entityID)
	if err != nil {
		return "", err
	}
	if rec == nil || !rec.Usable(g.cfg.Registry.Now()) {
		return "", ErrNoConnection
	}

	cal, err := g.calendarFor(ctx, rec)
	if err != nil {
		return "", err
	}
	return tools.Execute(ctx, cal, tool, args)
}

func (g *Google) calendarFor(ctx context.Context, rec *registry.Record) (*calendar.Client, error) {
	tok := google.OAuth2Token(rec)
	var ts oauth2.TokenSource = oauth2.StaticTokenSource(tok)
	if g.cfg.Tokens != nil {
		ts = g.cfg.Tokens.TokenSource(ctx, tok)
	}
	return calendar.NewClient(ctx, ts, g.cfg.CalendarOptions...)
}
