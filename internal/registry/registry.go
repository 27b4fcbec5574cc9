package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calendarchat/internal/instrumentation"
	"github.com/teemow/calendarchat/internal/logging"
)

// SimulatedRefreshWindow is how far Refresh extends expiry when no Refresher
// is configured.
const SimulatedRefreshWindow = time.Hour

// Refresher obtains new tokens from the identity provider.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (Tokens, error)
}

// Registry is the connection registry. Read-modify-write sequences are
// serialized within the process; across processes sharing a Store the last
// write wins.
type Registry struct {
	store     Store
	refresher Refresher
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
	metrics   *instrumentation.Metrics

	mu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithRefresher enables provider-backed refresh.
func WithRefresher(refresher Refresher) Option {
	return func(r *Registry) { r.refresher = refresher }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithIDGenerator replaces the UUID connection id generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

// New creates a Registry over store.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.WithComponent(r.logger, "registry")
	return r
}

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}

// Upsert creates or replaces the record for email with a fresh connection id
// and status active.
func (r *Registry) Upsert(ctx context.Context, email string, tokens Tokens) (*Record, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	rec := &Record{
		ConnectionID: r.newID(),
		UserEmail:    email,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.expiresAt(now),
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if prev, err := r.store.Get(ctx, email); err == nil {
		rec.CreatedAt = prev.CreatedAt
		if rec.RefreshToken == "" {
			// Google omits the refresh token on re-consent without prompt=consent.
			rec.RefreshToken = prev.RefreshToken
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load connection: %w", err)
	}

	if err := r.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store connection: %w", err)
	}

	r.logger.Info("connection stored",
		logging.UserHash(email),
		logging.Connection(rec.ConnectionID),
		slog.Time("expires_at", rec.ExpiresAt),
		slog.Bool("has_refresh_token", rec.RefreshToken != ""))
	return rec.Clone(), nil
}

// Get returns the record for email, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, email string) (*Record, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	return r.store.Get(ctx, email)
}

// IsActive reports whether email has an active, unexpired record. Expiry is
// evaluated at call time; nothing is written.
func (r *Registry) IsActive(ctx context.Context, email string) bool {
	rec, err := r.Get(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidEmail) {
			r.logger.Warn("connection lookup failed", logging.UserHash(email), logging.Err(err))
		}
		return false
	}
	return rec.Usable(r.now())
}

// Refresh extends the record's expiry. It reports false when there is no
// record, no refresh token, or the record was revoked. With a Refresher the
// provider issues new tokens; without one the expiry is pushed out by
// SimulatedRefreshWindow and the access token is left unchanged.
func (r *Registry) Refresh(ctx context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return false, ErrInvalidEmail
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.store.Get(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load connection: %w", err)
	}
	if rec.RefreshToken == "" || rec.Status == StatusRevoked {
		return false, nil
	}

	now := r.now()
	mode := instrumentation.RefreshModeSimulated
	if r.refresher != nil {
		mode = instrumentation.RefreshModeProvider
		tokens, err := r.refresher.RefreshTokens(ctx, rec.RefreshToken)
		if err != nil {
			r.metrics.RecordTokenRefresh(ctx, mode, instrumentation.StatusError)
			return false, fmt.Errorf("refresh token: %w", err)
		}
		rec.AccessToken = tokens.AccessToken
		if tokens.RefreshToken != "" {
			rec.RefreshToken = tokens.RefreshToken
		}
		rec.ExpiresAt = tokens.expiresAt(now)
	} else {
		rec.ExpiresAt = now.Add(SimulatedRefreshWindow)
		r.logger.Warn("simulated token refresh: expiry extended without contacting the provider",
			logging.UserHash(email))
	}
	rec.Status = StatusActive
	rec.UpdatedAt = now

	if err := r.store.Put(ctx, rec); err != nil {
		r.metrics.RecordTokenRefresh(ctx, mode, instrumentation.StatusError)
		return false, fmt.Errorf("store connection: %w", err)
	}
	r.metrics.RecordTokenRefresh(ctx, mode, instrumentation.StatusSuccess)
	r.logger.Info("connection refreshed", logging.UserHash(email), slog.String("mode", mode))
	return true, nil
}

// Revoke marks the record revoked. It reports false when no record exists.
func (r *Registry) Revoke(ctx context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return false, ErrInvalidEmail
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.store.Get(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load connection: %w", err)
	}

	rec.Status = StatusRevoked
	rec.UpdatedAt = r.now()
	if err := r.store.Put(ctx, rec); err != nil {
		return false, fmt.Errorf("store connection: %w", err)
	}
	r.logger.Info("connection revoked", logging.UserHash(email), logging.Connection(rec.ConnectionID))
	return true, nil
}

// List returns all records.
func (r *Registry) List(ctx context.Context) ([]*Record, error) {
	return r.store.List(ctx)
}

// Summary counts records by effective status at call time.
func (r *Registry) Summary(ctx context.Context) (Summary, error) {
	records, err := r.store.List(ctx)
	if err != nil {
		return Summary{}, err
	}

	now := r.now()
	s := Summary{Total: len(records)}
	for _, rec := range records {
		switch rec.EffectiveStatus(now) {
		case StatusActive:
			s.Active++
		case StatusExpired:
			s.Expired++
		case StatusRevoked:
			s.Revoked++
		}
	}
	return s, nil
}
