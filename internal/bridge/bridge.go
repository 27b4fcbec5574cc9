// Package bridge associates a user's email with a tool-connector entity once
// the user has authorized calendar access.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/calendarchat/internal/apperr"
	"github.com/teemow/calendarchat/internal/connector"
	"github.com/teemow/calendarchat/internal/instrumentation"
	"github.com/teemow/calendarchat/internal/logging"
	"github.com/teemow/calendarchat/internal/registry"
)

// Status is the integration state reported to callers.
type Status string

const (
	StatusActive   Status = "active"
	StatusPending  Status = "pending"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// Result is the outcome of SetupConnection.
type Result struct {
	EntityID     string    `json:"entityId"`
	ConnectionID string    `json:"connectionId,omitempty"`
	Status       Status    `json:"status"`
	RedirectURL  string    `json:"redirectUrl,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Resolution is a user's current integration status.
type Resolution struct {
	EntityID     string `json:"entityId"`
	ConnectionID string `json:"connectionId,omitempty"`
	Status       Status `json:"status"`
	Detail       string `json:"detail,omitempty"`
}

// Bridge links users to platform entities.
type Bridge struct {
	platform connector.Platform
	registry *registry.Registry
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	now      func() time.Time

	mu      sync.RWMutex
	results map[string]*Result
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// New creates a Bridge. reg may be nil, in which case Status consults only
// the platform.
func New(platform connector.Platform, reg *registry.Registry, opts ...Option) *Bridge {
	b := &Bridge{
		platform: platform,
		registry: reg,
		logger:   slog.Default(),
		now:      time.Now,
		results:  make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.WithComponent(b.logger, "bridge")
	return b
}

// Platform returns the underlying platform.
func (b *Bridge) Platform() connector.Platform {
	return b.platform
}

// SetupConnection returns the user's active connection, or initiates one and
// reports it as pending. Platform failures are IntegrationSetupFailed errors.
func (b *Bridge) SetupConnection(ctx context.Context, email string) (*Result, error) {
	email = registry.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("userEmail is required")
	}
	entityID := connector.EntityID(email)
	backend := b.platform.Backend()

	result, err := b.setup(ctx, entityID, email)
	if err != nil {
		b.metrics.RecordConnectionSetup(ctx, backend, string(StatusError))
		b.logger.Warn("Connection setup failed",
			logging.Entity(entityID),
			logging.UserHash(email),
			logging.Err(err))
		return nil, apperr.IntegrationSetupFailed(fmt.Sprintf("failed to set up connection for entity %s", entityID), err)
	}

	b.mu.Lock()
	b.results[entityID] = result
	b.mu.Unlock()

	b.metrics.RecordConnectionSetup(ctx, backend, string(result.Status))
	b.logger.Info("Connection setup completed",
		logging.Entity(entityID),
		logging.Connection(result.ConnectionID),
		logging.Status(string(result.Status)))

	out := *result
	return &out, nil
}

func (b *Bridge) setup(ctx context.Context, entityID, email string) (*Result, error) {
	conn, err := b.platform.GetConnection(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if conn.Active() {
		return &Result{
			EntityID:     entityID,
			ConnectionID: conn.ID,
			Status:       StatusActive,
			UpdatedAt:    b.now(),
		}, nil
	}

	conn, err = b.platform.InitiateConnection(ctx, entityID, email)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, errors.New("platform returned no connection")
	}
	result := &Result{
		EntityID:     entityID,
		ConnectionID: conn.ID,
		Status:       StatusPending,
		RedirectURL:  conn.RedirectURL,
		UpdatedAt:    b.now(),
	}
	// Some backends connect without a user round trip.
	if conn.Active() {
		result.Status = StatusActive
		result.RedirectURL = ""
	}
	return result, nil
}

// Lookup returns the last SetupConnection result for entityID.
func (b *Bridge) Lookup(entityID string) (*Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.results[entityID]
	if !ok {
		return nil, false
	}
	out := *r
	return &out, true
}

// Status resolves the user's integration status. When a registry is wired
// it is authoritative: a missing record is StatusNotFound (or StatusPending
// while a setup is outstanding) and an expired or revoked record is
// StatusError, whatever the platform reports. Lookup failures are reported
// as StatusError rather than returned.
func (b *Bridge) Status(ctx context.Context, email string) Resolution {
	email = registry.NormalizeEmail(email)
	entityID := connector.EntityID(email)
	res := Resolution{EntityID: entityID, Status: StatusNotFound}
	if email == "" {
		return res
	}

	if b.registry != nil {
		now := b.registry.Now()
		rec, err := b.registry.Get(ctx, email)
		switch {
		case errors.Is(err, registry.ErrNotFound):
			if b.setupPending(entityID) {
				res.Status = StatusPending
			}
			return res
		case err != nil:
			res.Status = StatusError
			res.Detail = err.Error()
			return res
		case !rec.Usable(now):
			res.Status = StatusError
			res.ConnectionID = rec.ConnectionID
			res.Detail = fmt.Sprintf("connection is %s", rec.EffectiveStatus(now))
			return res
		}
	}

	conn, err := b.platform.GetConnection(ctx, entityID)
	if err != nil {
		res.Status = StatusError
		res.Detail = err.Error()
		return res
	}
	if conn != nil {
		res.ConnectionID = conn.ID
		switch conn.Status {
		case connector.ConnectionActive:
			res.Status = StatusActive
		case connector.ConnectionPending:
			res.Status = StatusPending
		default:
			res.Status = StatusError
			res.Detail = fmt.Sprintf("connection is %s", conn.Status)
		}
		return res
	}

	if b.setupPending(entityID) {
		res.Status = StatusPending
	}
	return res
}

func (b *Bridge) setupPending(entityID string) bool {
	last, ok := b.Lookup(entityID)
	return ok && last.Status == StatusPending
}
