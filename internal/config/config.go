// Package config loads calendarchat settings from an optional .env file and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends for the connection registry.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Connector backends.
const (
	BackendGoogle    = "google"
	BackendSimulated = "simulated"
)

// Config is the full service configuration.
type Config struct {
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `env:"GOOGLE_REDIRECT_URI" envDefault:"http://localhost:3001/oauth/callback"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	ConnectorAPIKey  string `env:"CONNECTOR_API_KEY"`
	ConnectorBackend string `env:"CONNECTOR_BACKEND" envDefault:"google"`

	Port          int    `env:"PORT" envDefault:"3001"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`
	AppBaseURL    string `env:"APP_BASE_URL"`

	// MCPAuthToken guards /mcp with a bearer token when set.
	MCPAuthToken string `env:"MCP_AUTH_TOKEN"`

	RegistryStorage string `env:"REGISTRY_STORAGE" envDefault:"memory"`
	Redis           RedisConfig

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsAddr    string `env:"METRICS_ADDR" envDefault:":9090"`

	OAuthStateTTL  time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	RequestTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
}

// RedisConfig holds the Redis registry backend settings.
type RedisConfig struct {
	Addr      string `env:"REDIS_URL" envDefault:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"calendarchat:"`
}

// Load reads envFile (when it exists) into the process environment without
// overriding variables that are already set, then parses the environment.
// An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Parse()
}

// Parse loads configuration from environment variables only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.AllowedOrigin = strings.TrimRight(strings.TrimSpace(c.AllowedOrigin), "/")
	if c.AppBaseURL == "" {
		c.AppBaseURL = c.AllowedOrigin
	}
	c.RegistryStorage = strings.ToLower(strings.TrimSpace(c.RegistryStorage))
	c.ConnectorBackend = strings.ToLower(strings.TrimSpace(c.ConnectorBackend))
}

// Validate rejects settings that cannot be served at all. Missing credentials
// are not errors; see Missing.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	switch c.RegistryStorage {
	case StorageMemory, StorageRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown registry storage %q (supported: memory, redis)", c.RegistryStorage))
	}
	switch c.ConnectorBackend {
	case BackendGoogle, BackendSimulated:
	default:
		errs = append(errs, fmt.Errorf("unknown connector backend %q (supported: google, simulated)", c.ConnectorBackend))
	}
	if c.OAuthStateTTL <= 0 {
		errs = append(errs, errors.New("oauth state ttl must be positive"))
	}
	return errors.Join(errs...)
}

// GoogleConfigured reports whether OAuth client credentials are present.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// LLMConfigured reports whether an LLM API key is present.
func (c *Config) LLMConfigured() bool {
	return c.OpenAIAPIKey != ""
}

// Missing lists the environment variables whose absence degrades a feature.
func (c *Config) Missing() []string {
	var missing []string
	if c.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.ConnectorBackend == BackendSimulated && c.ConnectorAPIKey == "" {
		missing = append(missing, "CONNECTOR_API_KEY")
	}
	return missing
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
