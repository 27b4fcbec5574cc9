package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/teemow/calendarchat/internal/apperr"
	"github.com/teemow/calendarchat/internal/bridge"
	"github.com/teemow/calendarchat/internal/callback"
	"github.com/teemow/calendarchat/internal/chat"
	"github.com/teemow/calendarchat/internal/connector"
	"github.com/teemow/calendarchat/internal/dispatch"
	"github.com/teemow/calendarchat/internal/logging"
	"github.com/teemow/calendarchat/internal/registry"
)

type userEmailRequest struct {
	UserEmail string `json:"userEmail" validate:"required,email"`
}

// decodeUser reads and validates a {userEmail} body.
func (s *Server) decodeUser(w http.ResponseWriter, r *http.Request) (string, error) {
	var req userEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	req.UserEmail = registry.NormalizeEmail(req.UserEmail)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Tag() == "required" {
			return "", apperr.Validation("userEmail is required")
		}
		return "", apperr.Validation("userEmail must be a valid email address")
	}
	return req.UserEmail, nil
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.opts.OAuth == nil || s.opts.Flows == nil {
		writeUnavailable(w, "Google OAuth is not configured: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
		return
	}

	email := registry.NormalizeEmail(r.URL.Query().Get("userEmail"))
	if email != "" {
		if err := s.validate.Var(email, "email"); err != nil {
			writeError(w, apperr.Validation("userEmail must be a valid email address"))
			return
		}
	}

	flow, err := s.opts.Flows.Begin(email)
	if err != nil {
		writeError(w, apperr.Upstream("failed to start authorization", err))
		return
	}

	s.logger.Info("redirecting to Google consent", logging.UserHash(email))
	http.Redirect(w, r, s.opts.OAuth.AuthURL(flow.State, flow.Verifier, email), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.opts.Callback == nil {
		writeUnavailable(w, "Google OAuth is not configured: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
		return
	}

	out := s.opts.Callback.Handle(r.Context(), r.URL.String())
	s.opts.Stats.CallbackHandled(out.Succeeded())

	status := http.StatusOK
	if !out.Succeeded() {
		status = apperr.StatusFor(out.ErrorKind)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := callback.RenderPage(w, out, s.opts.AppBaseURL); err != nil {
		s.logger.Error("failed to render callback page", logging.Err(err))
	}
}

func (s *Server) handleSetupConnection(w http.ResponseWriter, r *http.Request) {
	email, err := s.decodeUser(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.opts.Bridge.SetupConnection(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req dispatch.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.opts.Dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ConnectionSummary is one entry of the /connections listing.
type ConnectionSummary struct {
	UserEmail         string          `json:"userEmail"`
	EntityID          string          `json:"entityId"`
	ConnectionID      string          `json:"connectionId"`
	Status            registry.Status `json:"status"`
	ExpiresAt         time.Time       `json:"expiresAt"`
	HasRefreshToken   bool            `json:"hasRefreshToken"`
	IntegrationStatus bridge.Status   `json:"integrationStatus,omitempty"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type connectionsResponse struct {
	Connections []ConnectionSummary `json:"connections"`
	Summary     registry.Summary    `json:"summary"`
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := s.opts.Registry.List(ctx)
	if err != nil {
		writeError(w, apperr.Upstream("failed to list connections", err))
		return
	}
	summary, err := s.opts.Registry.Summary(ctx)
	if err != nil {
		writeError(w, apperr.Upstream("failed to summarize connections", err))
		return
	}

	now := s.opts.Registry.Now()
	out := connectionsResponse{Connections: make([]ConnectionSummary, 0, len(records)), Summary: summary}
	for _, rec := range records {
		entityID := connector.EntityID(rec.UserEmail)
		entry := ConnectionSummary{
			UserEmail:       rec.UserEmail,
			EntityID:        entityID,
			ConnectionID:    rec.ConnectionID,
			Status:          rec.EffectiveStatus(now),
			ExpiresAt:       rec.ExpiresAt,
			HasRefreshToken: rec.RefreshToken != "",
			UpdatedAt:       rec.UpdatedAt,
		}
		if res, ok := s.opts.Bridge.Lookup(entityID); ok {
			entry.IntegrationStatus = res.Status
		}
		out.Connections = append(out.Connections, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

// RegistryDiagnostic describes the registry side of a connection.
type RegistryDiagnostic struct {
	Found           bool            `json:"found"`
	Status          registry.Status `json:"status,omitempty"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
	HasRefreshToken bool            `json:"hasRefreshToken"`
}

// ConnectionDiagnostic is the /test-connection response body.
type ConnectionDiagnostic struct {
	Success     bool               `json:"success"`
	UserEmail   string             `json:"userEmail"`
	EntityID    string             `json:"entityId"`
	Backend     string             `json:"backend"`
	Registry    RegistryDiagnostic `json:"registry"`
	Integration bridge.Resolution  `json:"integration"`
	ToolCount   int                `json:"toolCount"`
	Checks      map[string]bool    `json:"checks"`
	Message     string             `json:"message"`
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	email, err := s.decodeUser(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	platform := s.opts.Bridge.Platform()
	diag := ConnectionDiagnostic{
		UserEmail: email,
		EntityID:  connector.EntityID(email),
		Backend:   platform.Backend(),
		Checks:    make(map[string]bool),
	}

	rec, err := s.opts.Registry.Get(ctx, email)
	switch {
	case err == nil:
		expires := rec.ExpiresAt
		diag.Registry = RegistryDiagnostic{
			Found:           true,
			Status:          rec.EffectiveStatus(s.opts.Registry.Now()),
			ExpiresAt:       &expires,
			HasRefreshToken: rec.RefreshToken != "",
		}
	case errors.Is(err, registry.ErrNotFound):
	default:
		writeError(w, apperr.Upstream("failed to read connection", err))
		return
	}
	diag.Checks["registryRecord"] = diag.Registry.Found
	diag.Checks["registryActive"] = diag.Registry.Status == registry.StatusActive

	diag.Integration = s.opts.Bridge.Status(ctx, email)
	diag.Checks["integrationActive"] = diag.Integration.Status == bridge.StatusActive

	tools, err := platform.Tools(ctx, diag.EntityID)
	if err == nil {
		diag.ToolCount = len(tools)
	}
	diag.Checks["toolsAvailable"] = diag.ToolCount > 0

	diag.Success = diag.Checks["integrationActive"] && diag.Checks["toolsAvailable"]
	if diag.Success {
		diag.Message = fmt.Sprintf("Calendar connection is working (%d tools available).", diag.ToolCount)
	} else {
		diag.Message = fmt.Sprintf("Calendar connection is not usable (integration status %s).", diag.Integration.Status)
	}
	writeJSON(w, http.StatusOK, diag)
}

func (s *Server) handleRevokeConnection(w http.ResponseWriter, r *http.Request) {
	email, err := s.decodeUser(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()

	var token string
	if rec, err := s.opts.Registry.Get(ctx, email); err == nil {
		token = rec.RefreshToken
		if token == "" {
			token = rec.AccessToken
		}
	}

	revoked, err := s.opts.Registry.Revoke(ctx, email)
	if err != nil {
		writeError(w, apperr.Upstream("failed to revoke connection", err))
		return
	}

	if revoked && token != "" && s.opts.OAuth != nil {
		if err := s.opts.OAuth.Revoke(ctx, token); err != nil {
			s.logger.Warn("Google token revocation failed; connection is revoked locally",
				logging.UserHash(email), logging.Err(err))
		}
	}

	if d, ok := s.opts.Bridge.Platform().(Disconnector); ok {
		if d.Disconnect(connector.EntityID(email)) {
			revoked = true
		}
	}

	s.logger.Info("connection revoked", logging.UserHash(email), slog.Bool("revoked", revoked))
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
}

func (s *Server) handleRefreshConnection(w http.ResponseWriter, r *http.Request) {
	email, err := s.decodeUser(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	refreshed, err := s.opts.Registry.Refresh(r.Context(), email)
	if err != nil {
		writeError(w, apperr.Upstream("failed to refresh connection", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"refreshed": refreshed})
}

type notificationsResponse struct {
	UserEmail     string              `json:"userEmail"`
	Notifications []chat.Notification `json:"notifications"`
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := registry.NormalizeEmail(q.Get("userEmail"))

	var notes []chat.Notification
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, apperr.Validation("since must be an RFC3339 timestamp"))
			return
		}
		notes = s.opts.Feed.Since(email, since)
	} else {
		notes = s.opts.Feed.List(email)
	}
	if notes == nil {
		notes = []chat.Notification{}
	}

	if email == "" {
		email = chat.AnonymousUser
	}
	writeJSON(w, http.StatusOK, notificationsResponse{UserEmail: email, Notifications: notes})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Stats.Snapshot()

	summary, err := s.opts.Registry.Summary(r.Context())
	if err != nil {
		s.logger.Warn("registry summary unavailable for stats", logging.Err(err))
	}
	snap.Connections = summary
	snap.Notifications = s.opts.Feed.Total()
	if s.opts.Flows != nil {
		snap.PendingFlows = s.opts.Flows.Pending()
	}
	writeJSON(w, http.StatusOK, snap)
}
