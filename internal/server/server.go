package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendarchat/internal/bridge"
	"github.com/teemow/calendarchat/internal/callback"
	"github.com/teemow/calendarchat/internal/chat"
	"github.com/teemow/calendarchat/internal/dispatch"
	"github.com/teemow/calendarchat/internal/instrumentation"
	"github.com/teemow/calendarchat/internal/logging"
	"github.com/teemow/calendarchat/internal/oauthflow"
	"github.com/teemow/calendarchat/internal/registry"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

// OAuthClient starts and revokes Google authorizations. *google.Client
// implements it.
type OAuthClient interface {
	AuthURL(state, verifier, loginHint string) string
	Revoke(ctx context.Context, token string) error
}

// Disconnector is implemented by connector backends that can drop an
// entity's connection, such as the simulated backend.
type Disconnector interface {
	Disconnect(entityID string) bool
}

// Options wires the server to its collaborators. Registry, Bridge and
// Dispatcher are required. Without OAuth, Flows and Callback the OAuth routes
// answer 503; without MCP the /mcp route answers 503.
type Options struct {
	AllowedOrigin string
	// AppBaseURL is where the callback page sends the browser afterwards.
	AppBaseURL string

	Registry   *registry.Registry
	Bridge     *bridge.Bridge
	Dispatcher *dispatch.Dispatcher
	Feed       *chat.Feed
	Flows      *oauthflow.Store
	OAuth      OAuthClient
	Callback   *callback.Handler
	MCP        *mcpserver.MCPServer
	// MCPToken, when set, is the bearer token /mcp callers must present.
	MCPToken string

	Stats   *Stats
	Health  *HealthChecker
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Server is the calendarchat HTTP API.
type Server struct {
	opts     Options
	logger   *slog.Logger
	validate *validator.Validate
	routes   []route
	known    []string
	handler  http.Handler

	httpServer *http.Server
}

type route struct {
	methods []string
	path    string
	handler http.Handler
}

func (rt route) String() string {
	return strings.Join(rt.methods, "|") + " " + rt.path
}

// New builds the server and its route table.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if opts.Feed == nil {
		opts.Feed = chat.NewFeed(chat.DefaultCapacity)
	}
	if opts.Stats == nil {
		opts.Stats = NewStats()
	}
	if opts.Health == nil {
		opts.Health = NewHealthChecker()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.AllowedOrigin = strings.TrimRight(opts.AllowedOrigin, "/")
	if opts.AppBaseURL == "" {
		opts.AppBaseURL = opts.AllowedOrigin
	}
	if opts.AppBaseURL == "" {
		opts.AppBaseURL = "/"
	}

	s := &Server{
		opts:     opts,
		logger:   logging.WithComponent(opts.Logger, "server"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	s.routes = s.routeTable()

	mux := http.NewServeMux()
	for _, rt := range s.routes {
		mux.Handle(rt.path, allowMethods(rt.methods, rt.handler))
		s.known = append(s.known, rt.path)
	}
	mux.HandleFunc("/", s.handleNotFound)

	s.handler = s.instrument(s.cors(securityHeaders(mux)))
	return s, nil
}

func (s *Server) routeTable() []route {
	get := []string{http.MethodGet}
	post := []string{http.MethodPost}

	return []route{
		{get, "/oauth/start", http.HandlerFunc(s.handleOAuthStart)},
		{get, "/oauth/callback", http.HandlerFunc(s.handleOAuthCallback)},
		{post, "/setup-connection", http.HandlerFunc(s.handleSetupConnection)},
		{post, "/send-message", http.HandlerFunc(s.handleSendMessage)},
		{get, "/connections", http.HandlerFunc(s.handleConnections)},
		{post, "/test-connection", http.HandlerFunc(s.handleTestConnection)},
		{post, "/revoke-connection", http.HandlerFunc(s.handleRevokeConnection)},
		{post, "/refresh-connection", http.HandlerFunc(s.handleRefreshConnection)},
		{get, "/notifications", http.HandlerFunc(s.handleNotifications)},
		{get, "/stats", http.HandlerFunc(s.handleStats)},
		{get, "/healthz", s.opts.Health.LivenessHandler()},
		{get, "/readyz", s.opts.Health.ReadinessHandler()},
		{get, "/healthz/detailed", s.opts.Health.DetailedHealthHandler()},
		{[]string{http.MethodGet, http.MethodPost, http.MethodDelete}, "/mcp", s.mcpHandler()},
	}
}

// Endpoints lists the routes as "METHOD /path", in registration order.
func (s *Server) Endpoints() []string {
	out := make([]string, 0, len(s.routes))
	for _, rt := range s.routes {
		out = append(out, rt.String())
	}
	return out
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves until Shutdown. It blocks.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	s.logger.Info("starting HTTP server", "addr", addr, "allowed_origin", s.opts.AllowedOrigin)
	return s.httpServer.ListenAndServe()
}

// Shutdown fails readiness and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.opts.Health.MarkShuttingDown()
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func allowMethods(methods []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Allow", strings.Join(methods, ", "))
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
			Error:   "MethodNotAllowed",
			Message: r.Method + " is not supported on " + r.URL.Path,
		})
	})
}

// notFoundResponse is returned for unknown paths.
type notFoundResponse struct {
	Error              string   `json:"error"`
	Path               string   `json:"path"`
	AvailableEndpoints []string `json:"availableEndpoints"`
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundResponse{
		Error:              "Not Found",
		Path:               r.URL.Path,
		AvailableEndpoints: s.Endpoints(),
	})
}

// cors answers preflights and sets the CORS headers for the allowed origin
// only.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && origin == s.opts.AllowedOrigin

		if allowed {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id, X-User-Email")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses (MCP) working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrument counts requests and records HTTP metrics. Paths outside the
// route table are recorded as "other".
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.opts.Stats.RequestServed()
		s.opts.Metrics.RecordHTTPRequest(r.Context(), r.Method,
			instrumentation.NormalizePath(r.URL.Path, s.known), rec.status, time.Since(start))
	})
}
