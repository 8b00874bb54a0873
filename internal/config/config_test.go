package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fhir-gateway/internal/models"
)

func createTestConfigFile(t *testing.T, content string) string {
	tmpFile, err := os.CreateTemp(t.TempDir(), "gateway_config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}

	if err := tmpFile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	return tmpFile.Name()
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"FHIR_BASE_URL", "FIRM_URL_PREFIX", "API_KEY", "FHIR_OAUTH_ENDPOINT", "OAUTH_GRANT_TYPE",
		"OAUTH_USERNAME", "OAUTH_PASSWORD", "OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET",
		"FHIR_PATIENT_ENDPOINT", "KEYDB_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	logger := zaptest.NewLogger(t)

	validConfig := `
upstream:
  base_url: https://api.example.test
  firm_prefix: /firm1
  api_key: k1
  oauth_endpoint: /oauth2/grant
  username: u
  password: p
  timeout: 10s
  rate_limit:
    requests_per_second: 5

cache:
  backend: bigcache
  default_ttl: 2m
  pending_timeout: 15s
  cleanup_interval: 1m

bigcache:
  size: 64

server:
  listen_addr: 127.0.0.1:9000
`

	configFile := createTestConfigFile(t, validConfig)

	config, err := LoadConfig(configFile, logger)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test", config.Upstream.BaseURL)
	assert.Equal(t, "/firm1", config.Upstream.FirmPrefix)
	assert.Equal(t, "k1", config.Upstream.APIKey)
	assert.Equal(t, "https://api.example.test/firm1/oauth2/grant", config.Upstream.TokenURL())
	assert.Equal(t, 10*time.Second, config.Upstream.Timeout)
	assert.Equal(t, 5.0, config.Upstream.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1, config.Upstream.RateLimit.Burst)
	assert.Equal(t, DefaultAPIPath, config.Upstream.APIPath)

	assert.Equal(t, "bigcache", config.Cache.Backend)
	assert.Equal(t, 2*time.Minute, config.Cache.DefaultTTL)
	assert.Equal(t, 15*time.Second, config.Cache.PendingTimeout)
	assert.Equal(t, time.Minute, config.Cache.CleanupInterval)

	assert.Equal(t, 64, config.BigCache.Size)
	assert.Equal(t, 64, config.BigCache.Shards)
	assert.Equal(t, "127.0.0.1:9000", config.Server.ListenAddr)
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	logger := zaptest.NewLogger(t)

	config, err := LoadConfig("", logger)
	require.NoError(t, err)

	assert.Equal(t, "memory", config.Cache.Backend)
	assert.Equal(t, DefaultTTL, config.Cache.DefaultTTL)
	assert.Equal(t, DefaultPendingTimeout, config.Cache.PendingTimeout)
	assert.Equal(t, DefaultCleanupInterval, config.Cache.CleanupInterval)
	assert.Equal(t, "file", config.Session.Backend)
	assert.False(t, config.Session.AutoRefresh)
	assert.Equal(t, 30*time.Second, config.Session.RefreshSkew)
	assert.Equal(t, ":8080", config.Server.ListenAddr)
	assert.Equal(t, time.Second, config.KeyDB.GetReadTimeout())
	assert.Equal(t, time.Second, config.KeyDB.GetSendTimeout())
	assert.Equal(t, "fhir-gateway:", config.KeyDB.KeyPrefix)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	clearEnv(t)
	configFile := createTestConfigFile(t, "")

	config, err := LoadConfig(configFile, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "memory", config.Cache.Backend)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("FHIR_BASE_URL", "https://env.example.test")
	t.Setenv("API_KEY", "env-key")
	t.Setenv("OAUTH_GRANT_TYPE", "client_credentials")
	t.Setenv("OAUTH_CLIENT_ID", "cid")

	configFile := createTestConfigFile(t, `
upstream:
  base_url: https://file.example.test
  api_key: file-key
  oauth_endpoint: /oauth2/grant
`)

	config, err := LoadConfig(configFile, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.test", config.Upstream.BaseURL)
	assert.Equal(t, "env-key", config.Upstream.APIKey)
	assert.Equal(t, "/oauth2/grant", config.Upstream.OAuthEndpoint)
	assert.Equal(t, models.GrantTypeClientCredentials, config.Upstream.GrantType)
	assert.Equal(t, "cid", config.Upstream.ClientID)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "invalid yaml",
			content: "cache: [unclosed",
		},
		{
			name: "unknown backend",
			content: `
cache:
  backend: memcached
`,
		},
		{
			name: "keydb backend without url",
			content: `
cache:
  backend: keydb
`,
		},
		{
			name: "bigcache life window shorter than ttl",
			content: `
cache:
  backend: bigcache
  default_ttl: 30m
bigcache:
  life_window: 10m
`,
		},
		{
			name: "negative rate limit",
			content: `
upstream:
  rate_limit:
    requests_per_second: -1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			configFile := createTestConfigFile(t, tt.content)

			_, err := LoadConfig(configFile, zaptest.NewLogger(t))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/gateway.yaml", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestLoadConfig_KeyDBURLFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEYDB_URL", "redis://localhost:6379")

	configFile := createTestConfigFile(t, `
cache:
  backend: multi
`)

	config, err := LoadConfig(configFile, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379", config.KeyDB.URL)
}

func TestApplyEnv_IgnoresEmptyValues(t *testing.T) {
	config := Default()
	config.Upstream.BaseURL = "https://keep.example.test"

	config.ApplyEnv(func(string) string { return "" })

	assert.Equal(t, "https://keep.example.test", config.Upstream.BaseURL)
}
