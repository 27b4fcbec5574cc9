package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/calendarchat/internal/registry"
)

// RevokeURL is Google's token revocation endpoint.
const RevokeURL = "https://oauth2.googleapis.com/revoke"

// ErrNotConfigured is returned when client credentials are missing.
var ErrNotConfigured = errors.New("google oauth client is not configured")

// Config configures an OAuth Client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scopes defaults to CalendarScopes.
	Scopes []string
	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint
	// RevokeURL defaults to RevokeURL.
	RevokeURL string
	// HTTPClient is used for all provider calls. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client
}

// Client performs the OAuth2 web-server flow against Google.
type Client struct {
	conf       *oauth2.Config
	revokeURL  string
	httpClient *http.Client
}

// NewClient builds a Client. It fails when the client id or secret is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Scopes == nil {
		cfg.Scopes = CalendarScopes
	}
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = RevokeURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		revokeURL:  cfg.RevokeURL,
		httpClient: cfg.HTTPClient,
	}, nil
}

func (c *Client) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// AuthURL returns the consent URL for state. Offline access and a forced
// consent prompt make Google issue a refresh token on every connect. A
// non-empty verifier adds a PKCE S256 challenge.
func (c *Client) AuthURL(state, verifier, loginHint string) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce}
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	if loginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", loginHint))
	}
	return c.conf.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := c.conf.Exchange(c.ctx(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token response carried no access token")
	}
	return tok, nil
}

// RefreshTokens implements registry.Refresher.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (registry.Tokens, error) {
	ts := c.conf.TokenSource(c.ctx(ctx), &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := ts.Token()
	if err != nil {
		return registry.Tokens{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	return TokensFrom(tok), nil
}

// TokenSource returns a token source that refreshes tok as needed.
func (c *Client) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return c.conf.TokenSource(c.ctx(ctx), tok)
}

// Revoke asks Google to invalidate token (access or refresh).
func (c *Client) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("token revocation failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// TokensFrom converts an oauth2 token into registry tokens.
func TokensFrom(tok *oauth2.Token) registry.Tokens {
	if tok == nil {
		return registry.Tokens{}
	}
	t := registry.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if tok.ExpiresIn > 0 {
		t.ExpiresIn = time.Duration(tok.ExpiresIn) * time.Second
	}
	return t
}

// OAuth2Token converts a registry record into an oauth2 token.
func OAuth2Token(rec *registry.Record) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       rec.ExpiresAt,
	}
}
