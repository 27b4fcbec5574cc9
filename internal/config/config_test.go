package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URI",
		"OPENAI_API_KEY", "OPENAI_MODEL", "CONNECTOR_API_KEY", "CONNECTOR_BACKEND",
		"PORT", "ALLOWED_ORIGIN", "APP_BASE_URL", "REGISTRY_STORAGE",
		"REDIS_URL", "REDIS_DB", "REDIS_KEY_PREFIX", "OAUTH_STATE_TTL", "MCP_AUTH_TOKEN",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestParseDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, "http://localhost:5173", cfg.AllowedOrigin)
	assert.Equal(t, cfg.AllowedOrigin, cfg.AppBaseURL)
	assert.Equal(t, StorageMemory, cfg.RegistryStorage)
	assert.Equal(t, BackendGoogle, cfg.ConnectorBackend)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "calendarchat:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 10*time.Minute, cfg.OAuthStateTTL)
	assert.Equal(t, ":3001", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestParseOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGIN", "https://app.example.com/")
	t.Setenv("REGISTRY_STORAGE", "Redis")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "https://app.example.com", cfg.AllowedOrigin)
	assert.Equal(t, StorageRedis, cfg.RegistryStorage)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestParseError(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-an-int")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY=sk-from-file\nPORT=4000\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("OPENAI_API_KEY")
		os.Unsetenv("PORT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", cfg.OpenAIAPIKey)
	assert.Equal(t, 4000, cfg.Port)
}

func TestLoadMissingEnvFileIsNotAnError(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.RegistryStorage = "etcd" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.ConnectorBackend = "zapier" }, wantErr: true},
		{name: "zero state ttl", mutate: func(c *Config) { c.OAuthStateTTL = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Port:             3001,
				RegistryStorage:  StorageMemory,
				ConnectorBackend: BackendGoogle,
				OAuthStateTTL:    time.Minute,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMissing(t *testing.T) {
	cfg := &Config{ConnectorBackend: BackendSimulated}
	assert.Equal(t, []string{"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "OPENAI_API_KEY", "CONNECTOR_API_KEY"}, cfg.Missing())
	assert.False(t, cfg.GoogleConfigured())
	assert.False(t, cfg.LLMConfigured())

	cfg = &Config{
		GoogleClientID:     "id",
		GoogleClientSecret: "secret",
		OpenAIAPIKey:       "sk",
		ConnectorBackend:   BackendGoogle,
	}
	assert.Empty(t, cfg.Missing())
	assert.True(t, cfg.GoogleConfigured())
	assert.True(t, cfg.LLMConfigured())
}
