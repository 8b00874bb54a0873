package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"fhir-gateway/internal/models"
)

const (
	DefaultAPIPath         = "/ema/fhir/v2"
	DefaultTTL             = 5 * time.Minute
	DefaultPendingTimeout  = 30 * time.Second
	DefaultCleanupInterval = 5 * time.Minute
)

// Config represents the main configuration structure
type Config struct {
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	BigCache BigCacheConfig `yaml:"bigcache"`
	KeyDB    KeyDBConfig    `yaml:"keydb"`
	Session  SessionConfig  `yaml:"session"`
	Server   ServerConfig   `yaml:"server"`
}

// UpstreamConfig describes the EHR API. Credential fields are not validated at load
// time: missing values surface as configuration errors when a token is requested.
type UpstreamConfig struct {
	models.Settings `yaml:",inline" validate:"-"`

	APIPath         string          `yaml:"api_path"`
	PatientEndpoint string          `yaml:"patient_endpoint"`
	Timeout         time.Duration   `yaml:"timeout" validate:"gt=0"`
	UserAgent       string          `yaml:"user_agent"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig throttles outbound requests; zero disables it
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// CacheConfig configures the caching client
type CacheConfig struct {
	Backend         string        `yaml:"backend" validate:"oneof=memory bigcache keydb multi none"`
	DefaultTTL      time.Duration `yaml:"default_ttl" validate:"gt=0"`
	PendingTimeout  time.Duration `yaml:"pending_timeout" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
	PromoteOnHit    bool          `yaml:"promote_on_hit"`
	RulesFile       string        `yaml:"rules_file"`
}

// BigCacheConfig configures the in-process BigCache store
type BigCacheConfig struct {
	Size         int           `yaml:"size" validate:"gte=0"` // MB, 0 = unbounded
	Shards       int           `yaml:"shards" validate:"gte=0"`
	LifeWindow   time.Duration `yaml:"life_window" validate:"gt=0"`
	MaxEntrySize int           `yaml:"max_entry_size" validate:"gt=0"`
}

// KeyDBConfig configures the KeyDB/Redis connection shared by the L2 store and sessions
type KeyDBConfig struct {
	URL        string           `yaml:"url"`
	KeyPrefix  string           `yaml:"key_prefix"`
	Connection ConnectionConfig `yaml:"connection"`
	Keepalive  KeepaliveConfig  `yaml:"keepalive"`
}

// ConnectionConfig holds KeyDB timeouts
type ConnectionConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	SendTimeout    time.Duration `yaml:"send_timeout" validate:"gt=0"`
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"gt=0"`
}

// KeepaliveConfig holds KeyDB pool settings
type KeepaliveConfig struct {
	PoolSize       int           `yaml:"pool_size" validate:"gt=0"`
	MaxIdleTimeout time.Duration `yaml:"max_idle_timeout" validate:"gte=0"`
}

// SessionConfig selects where credentials and user settings are persisted
type SessionConfig struct {
	Backend     string        `yaml:"backend" validate:"oneof=file keydb none"`
	Dir         string        `yaml:"dir"`
	AutoRefresh bool          `yaml:"auto_refresh"` // refresh expiring tokens before requests
	RefreshSkew time.Duration `yaml:"refresh_skew" validate:"gte=0"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	SocketPath      string        `yaml:"socket_path"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// GetReadTimeout returns the KeyDB read timeout
func (c *KeyDBConfig) GetReadTimeout() time.Duration {
	return c.Connection.ReadTimeout
}

// GetSendTimeout returns the KeyDB send timeout
func (c *KeyDBConfig) GetSendTimeout() time.Duration {
	return c.Connection.SendTimeout
}

// Default returns a configuration with every default applied
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadConfig loads configuration from file path, then applies defaults and
// environment overrides. An empty path skips the file.
func LoadConfig(configPath string, logger *zap.Logger) (*Config, error) {
	var config Config

	if configPath != "" {
		logger.Info("Loading configuration", zap.String("path", configPath))

		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer func() { _ = file.Close() }()

		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode YAML config: %w", err)
		}
	} else {
		logger.Info("No configuration file given, using defaults and environment")
	}

	config.applyDefaults()
	config.ApplyEnv(os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Upstream.APIPath == "" {
		c.Upstream.APIPath = DefaultAPIPath
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 30 * time.Second
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = "fhir-gateway/1.0"
	}
	if c.Upstream.RateLimit.RequestsPerSecond > 0 && c.Upstream.RateLimit.Burst == 0 {
		c.Upstream.RateLimit.Burst = 1
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = DefaultTTL
	}
	if c.Cache.PendingTimeout == 0 {
		c.Cache.PendingTimeout = DefaultPendingTimeout
	}
	if c.Cache.CleanupInterval == 0 {
		c.Cache.CleanupInterval = DefaultCleanupInterval
	}

	if c.BigCache.LifeWindow == 0 {
		c.BigCache.LifeWindow = 10 * time.Minute
	}
	if c.BigCache.MaxEntrySize == 0 {
		c.BigCache.MaxEntrySize = 1024 * 1024 // 1MB
	}
	if c.BigCache.Shards == 0 {
		c.BigCache.Shards = 64
	}

	if c.KeyDB.KeyPrefix == "" {
		c.KeyDB.KeyPrefix = "fhir-gateway:"
	}
	if c.KeyDB.Connection.ConnectTimeout == 0 {
		c.KeyDB.Connection.ConnectTimeout = time.Second
	}
	if c.KeyDB.Connection.SendTimeout == 0 {
		c.KeyDB.Connection.SendTimeout = time.Second
	}
	if c.KeyDB.Connection.ReadTimeout == 0 {
		c.KeyDB.Connection.ReadTimeout = time.Second
	}
	if c.KeyDB.Keepalive.PoolSize == 0 {
		c.KeyDB.Keepalive.PoolSize = 10
	}
	if c.KeyDB.Keepalive.MaxIdleTimeout == 0 {
		c.KeyDB.Keepalive.MaxIdleTimeout = 10 * time.Second
	}

	if c.Session.Backend == "" {
		c.Session.Backend = "file"
	}
	if c.Session.Dir == "" {
		c.Session.Dir = ".fhir-gateway"
	}
	if c.Session.RefreshSkew == 0 {
		c.Session.RefreshSkew = 30 * time.Second
	}

	if c.Server.ListenAddr == "" && c.Server.SocketPath == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
}

// ApplyEnv overrides upstream settings from environment variables
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	u := &c.Upstream
	set(&u.BaseURL, "FHIR_BASE_URL")
	set(&u.FirmPrefix, "FIRM_URL_PREFIX")
	set(&u.APIKey, "API_KEY")
	set(&u.OAuthEndpoint, "FHIR_OAUTH_ENDPOINT")
	set(&u.Username, "OAUTH_USERNAME")
	set(&u.Password, "OAUTH_PASSWORD")
	set(&u.ClientID, "OAUTH_CLIENT_ID")
	set(&u.ClientSecret, "OAUTH_CLIENT_SECRET")
	set(&u.PatientEndpoint, "FHIR_PATIENT_ENDPOINT")
	if v := getenv("OAUTH_GRANT_TYPE"); v != "" {
		u.GrantType = models.GrantType(v)
	}
	set(&c.KeyDB.URL, "KEYDB_URL")
}

// Validate checks the non-credential parts of the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Cache.Backend == "keydb" || c.Cache.Backend == "multi" || c.Session.Backend == "keydb" {
		if c.KeyDB.URL == "" {
			return errors.New("invalid configuration: keydb.url is required by the selected backend")
		}
	}
	if c.Cache.Backend == "bigcache" || c.Cache.Backend == "multi" {
		if c.BigCache.LifeWindow < c.Cache.DefaultTTL {
			return errors.New("invalid configuration: bigcache.life_window must not be shorter than cache.default_ttl")
		}
	}
	return nil
}
