// Package oauthflow keeps the anti-forgery state of OAuth authorization
// flows between the redirect to Google and the callback.
package oauthflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/calendarchat/internal/logging"
)

// DefaultTTL bounds how long a user may take on the consent screen.
const DefaultTTL = 10 * time.Minute

var (
	// ErrStateNotFound is returned for unknown or already consumed states.
	ErrStateNotFound = errors.New("authorization state not found")

	// ErrStateExpired is returned for states older than the TTL.
	ErrStateExpired = errors.New("authorization state expired")
)

// Flow is one pending authorization.
type Flow struct {
	State string
	// UserEmail is set when the flow was started for a known user.
	UserEmail string
	// Verifier is the PKCE code verifier sent with the token exchange.
	Verifier  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store holds pending flows in memory. A state can be consumed once.
type Store struct {
	mu     sync.Mutex
	flows  map[string]*Flow
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates a Store. A non-positive ttl means DefaultTTL.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		flows:  make(map[string]*Flow),
		ttl:    ttl,
		now:    time.Now,
		logger: logging.WithComponent(logger, "oauthflow"),
	}
}

// SetClock replaces time.Now.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Begin registers a new flow and returns it.
func (s *Store) Begin(userEmail string) (*Flow, error) {
	state, err := generateState()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	flow := &Flow{
		State:     state,
		UserEmail: userEmail,
		Verifier:  oauth2.GenerateVerifier(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.flows[state] = flow

	s.logger.Debug("authorization flow started",
		logging.UserHash(userEmail),
		slog.Time("expires_at", flow.ExpiresAt))
	return flow, nil
}

// Consume removes and returns the flow for state. Unknown, consumed and
// expired states all fail; an expired state is removed as well.
func (s *Store) Consume(state string) (*Flow, error) {
	if state == "" {
		return nil, ErrStateNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[state]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(s.flows, state)

	if s.now().After(flow.ExpiresAt) {
		return nil, ErrStateExpired
	}
	return flow, nil
}

// Pending returns the number of outstanding flows.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

// RunCleanup removes expired flows every interval until ctx is done.
func (s *Store) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.cleanupExpired(); n > 0 {
				s.logger.Debug("expired authorization flows removed", slog.Int("count", n))
			}
		}
	}
}

func (s *Store) cleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for state, flow := range s.flows {
		if now.After(flow.ExpiresAt) {
			delete(s.flows, state)
			removed++
		}
	}
	return removed
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
