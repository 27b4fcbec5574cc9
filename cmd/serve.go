package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calendarchat/internal/bridge"
	"github.com/teemow/calendarchat/internal/callback"
	"github.com/teemow/calendarchat/internal/chat"
	"github.com/teemow/calendarchat/internal/config"
	"github.com/teemow/calendarchat/internal/connector"
	"github.com/teemow/calendarchat/internal/dispatch"
	"github.com/teemow/calendarchat/internal/google"
	"github.com/teemow/calendarchat/internal/instrumentation"
	"github.com/teemow/calendarchat/internal/llm"
	"github.com/teemow/calendarchat/internal/logging"
	"github.com/teemow/calendarchat/internal/oauthflow"
	"github.com/teemow/calendarchat/internal/registry"
	"github.com/teemow/calendarchat/internal/server"
)

// flowCleanupInterval is how often expired OAuth states are purged.
const flowCleanupInterval = time.Minute

// serveFlags holds flag values. A flag only overrides the environment when
// it was set explicitly on the command line.
type serveFlags struct {
	envFile          string
	debug            bool
	port             int
	allowedOrigin    string
	registryStorage  string
	connectorBackend string
	logFormat        string
	metricsEnabled   bool
	metricsAddr      string
}

func (f *serveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "Path to a .env file loaded before the environment is read (optional)")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging. Overrides LOG_LEVEL.")
	cmd.Flags().IntVar(&f.port, "port", 3001, "HTTP port. Can also use PORT env var.")
	cmd.Flags().StringVar(&f.allowedOrigin, "allowed-origin", "http://localhost:5173", "Origin allowed to call the API (CORS). Can also use ALLOWED_ORIGIN env var.")
	cmd.Flags().StringVar(&f.registryStorage, "registry-storage", config.StorageMemory, "Connection registry storage: memory or redis. Can also use REGISTRY_STORAGE env var.")
	cmd.Flags().StringVar(&f.connectorBackend, "connector-backend", config.BackendGoogle, "Tool connector backend: google or simulated. Can also use CONNECTOR_BACKEND env var.")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format: text or json. Can also use LOG_FORMAT env var.")
	cmd.Flags().BoolVar(&f.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
}

// apply overrides cfg with the flags the user set explicitly.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if f.debug {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("allowed-origin") {
		cfg.AllowedOrigin = f.allowedOrigin
		if os.Getenv("APP_BASE_URL") == "" {
			cfg.AppBaseURL = f.allowedOrigin
		}
	}
	if flags.Changed("registry-storage") {
		cfg.RegistryStorage = f.registryStorage
	}
	if flags.Changed("connector-backend") {
		cfg.ConnectorBackend = f.connectorBackend
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if flags.Changed("metrics-enabled") {
		cfg.MetricsEnabled = f.metricsEnabled
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
}

// load reads .env and the environment, applies flag overrides and validates.
func (f *serveFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return nil, err
	}
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calendarchat HTTP API",
		Long: `Start the HTTP API.

Configuration is read from the environment, optionally preloaded from a .env
file. Flags override the environment when set explicitly. Missing Google or
OpenAI credentials do not stop the server: the dependent routes report that
the feature is not configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cfg)
		},
	}

	flags.register(cmd)
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	for _, key := range cfg.Missing() {
		logger.Warn("configuration key missing; dependent features are disabled", "key", key)
	}
	if cfg.MCPAuthToken == "" {
		logger.Warn("MCP_AUTH_TOKEN is not set: /mcp trusts the X-User-Email header from any caller")
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	health := server.NewHealthChecker()
	store, closeStore, err := newRegistryStore(ctx, cfg, health)
	if err != nil {
		return err
	}
	defer closeStore()

	outbound := &http.Client{Timeout: cfg.RequestTimeout}

	var oauthClient *google.Client
	if cfg.GoogleConfigured() {
		oauthClient, err = google.NewClient(google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			HTTPClient:   outbound,
		})
		if err != nil {
			return fmt.Errorf("failed to create Google OAuth client: %w", err)
		}
	}

	regOpts := []registry.Option{registry.WithLogger(logger), registry.WithMetrics(metrics)}
	if oauthClient != nil {
		regOpts = append(regOpts, registry.WithRefresher(oauthClient))
	} else {
		logger.Warn("token refresh is simulated: Google credentials are not configured")
	}
	reg := registry.New(store, regOpts...)

	flows := oauthflow.NewStore(cfg.OAuthStateTTL, logger)
	go flows.RunCleanup(ctx, flowCleanupInterval)

	backend, err := newPlatform(cfg, reg, oauthClient, logger)
	if err != nil {
		return err
	}
	platform := connector.Instrument(backend, metrics, provider.Audit())

	feed := chat.NewFeed(chat.DefaultCapacity)
	br := bridge.New(platform, reg, bridge.WithLogger(logger), bridge.WithMetrics(metrics))

	stats := server.NewStats()
	llmClient, model := newLLMClient(cfg, outbound, logger)
	dispatcher := dispatch.New(br, platform, llmClient,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metrics),
		dispatch.WithStats(stats),
		dispatch.WithModel(model),
	)

	opts := server.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		AppBaseURL:    cfg.AppBaseURL,
		Registry:      reg,
		Bridge:        br,
		Dispatcher:    dispatcher,
		Feed:          feed,
		MCP:           server.NewMCPServer(version, platform),
		MCPToken:      cfg.MCPAuthToken,
		Stats:         stats,
		Health:        health,
		Logger:        logger,
		Metrics:       metrics,
	}
	if oauthClient != nil {
		cb, err := callback.New(callback.Config{
			Exchanger:  oauthClient,
			Identity:   &google.UserinfoResolver{},
			Flows:      flows,
			Registry:   reg,
			Integrator: br,
			Feed:       feed,
		}, callback.WithLogger(logger), callback.WithMetrics(metrics))
		if err != nil {
			return fmt.Errorf("failed to create OAuth callback handler: %w", err)
		}
		opts.OAuth = oauthClient
		opts.Flows = flows
		opts.Callback = cb
	}

	srv, err := server.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.ServesPrometheus() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	logger.Info("calendarchat starting",
		"version", version,
		"addr", cfg.Addr(),
		"connector_backend", cfg.ConnectorBackend,
		"registry_storage", cfg.RegistryStorage,
		"llm_model", model,
		"google_oauth", oauthClient != nil)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", logging.Err(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// newRegistryStore opens the configured store. Redis is also registered as a
// readiness check. The returned func releases the store.
func newRegistryStore(ctx context.Context, cfg *config.Config, health *server.HealthChecker) (registry.Store, func(), error) {
	switch cfg.RegistryStorage {
	case config.StorageRedis:
		store, err := registry.NewRedisStore(ctx, registry.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		health.AddCheck("redis", store.Ping)
		return store, func() { _ = store.Close() }, nil
	default:
		return registry.NewMemoryStore(), func() {}, nil
	}
}

// newPlatform builds the configured connector backend.
func newPlatform(cfg *config.Config, reg *registry.Registry, oauthClient *google.Client, logger *slog.Logger) (connector.Platform, error) {
	if cfg.ConnectorBackend == config.BackendSimulated {
		logger.Warn("using the simulated connector backend: calendar data is fabricated and kept in memory")
		return connector.NewSimulated(), nil
	}

	gcfg := connector.GoogleConfig{
		Registry: reg,
		StartURL: startURL(cfg),
		Logger:   logger,
	}
	if oauthClient != nil {
		gcfg.Tokens = oauthClient
	}
	return connector.NewGoogle(gcfg)
}

// startURL derives the public /oauth/start URL from the OAuth redirect URI,
// which is the one externally reachable address the config knows.
func startURL(cfg *config.Config) string {
	u, err := url.Parse(cfg.GoogleRedirectURI)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("http://localhost:%d/oauth/start", cfg.Port)
	}
	u.Path = "/oauth/start"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// newLLMClient returns the OpenAI client, or a disabled client when no API
// key is configured.
func newLLMClient(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (llm.Client, string) {
	if !cfg.LLMConfigured() {
		logger.Warn("OPENAI_API_KEY is not set: chat messages will fail with an upstream error")
		return llm.DisabledClient{}, ""
	}
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.OpenAIModel,
		BaseURL:    cfg.OpenAIBaseURL,
		HTTPClient: httpClient,
	})
	if err != nil {
		logger.Warn("LLM client unavailable", logging.Err(err))
		return llm.DisabledClient{}, ""
	}
	return client, client.Model()
}
