package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in backend:.
const (
	BackendGateway  = "gateway"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend   string          `yaml:"backend"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	MCP       MCPConfig       `yaml:"mcp"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// GatewayConfig points at the hosted backend (auth, REST, RPC, storage, realtime).
type GatewayConfig struct {
	URL          string        `yaml:"url"`
	AnonKey      string        `yaml:"anon_key"`
	Timeout      time.Duration `yaml:"timeout"`
	AvatarBucket string        `yaml:"avatar_bucket"`
}

// AuthConfig holds the secret used to verify bearer tokens. For the gateway
// backend this is the project's JWT secret, so client tokens pass through.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type CacheConfig struct {
	SizeMB         int           `yaml:"size_mb"`
	LeaderboardTTL time.Duration `yaml:"leaderboard_ttl"`
	CatalogTTL     time.Duration `yaml:"catalog_ttl"`
}

// MCPConfig identifies the single user the stdio MCP server acts for.
// The gateway backend signs in with email/password; postgres uses user_id.
type MCPConfig struct {
	UserID   string `yaml:"user_id"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix IRONLOG_ and underscore-separated paths:
//
//	IRONLOG_BACKEND, IRONLOG_SERVER_HOST, IRONLOG_SERVER_PORT,
//	IRONLOG_DB_HOST, IRONLOG_DB_PORT, IRONLOG_DB_NAME,
//	IRONLOG_DB_USER, IRONLOG_DB_PASSWORD, IRONLOG_DB_SSLMODE,
//	IRONLOG_GATEWAY_URL, IRONLOG_GATEWAY_ANON_KEY, IRONLOG_GATEWAY_TIMEOUT,
//	IRONLOG_AUTH_JWT_SECRET, IRONLOG_CACHE_SIZE_MB,
//	IRONLOG_MCP_USER_ID, IRONLOG_MCP_EMAIL, IRONLOG_MCP_PASSWORD
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("IRONLOG_BACKEND", &cfg.Backend)
	str("IRONLOG_SERVER_HOST", &cfg.Server.Host)
	num("IRONLOG_SERVER_PORT", &cfg.Server.Port)
	str("IRONLOG_DB_HOST", &cfg.Database.Host)
	num("IRONLOG_DB_PORT", &cfg.Database.Port)
	str("IRONLOG_DB_NAME", &cfg.Database.Name)
	str("IRONLOG_DB_USER", &cfg.Database.User)
	str("IRONLOG_DB_PASSWORD", &cfg.Database.Password)
	str("IRONLOG_DB_SSLMODE", &cfg.Database.SSLMode)
	str("IRONLOG_GATEWAY_URL", &cfg.Gateway.URL)
	str("IRONLOG_GATEWAY_ANON_KEY", &cfg.Gateway.AnonKey)
	if v := os.Getenv("IRONLOG_GATEWAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Gateway.Timeout = d
		}
	}
	str("IRONLOG_AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)
	num("IRONLOG_CACHE_SIZE_MB", &cfg.Cache.SizeMB)
	str("IRONLOG_MCP_USER_ID", &cfg.MCP.UserID)
	str("IRONLOG_MCP_EMAIL", &cfg.MCP.Email)
	str("IRONLOG_MCP_PASSWORD", &cfg.MCP.Password)
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendGateway
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = 15 * time.Second
	}
	if c.Gateway.AvatarBucket == "" {
		c.Gateway.AvatarBucket = "avatars"
	}
	if c.Cache.SizeMB == 0 {
		c.Cache.SizeMB = 16
	}
	if c.Cache.LeaderboardTTL == 0 {
		c.Cache.LeaderboardTTL = time.Minute
	}
	if c.Cache.CatalogTTL == 0 {
		c.Cache.CatalogTTL = time.Hour
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "ironlog"
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendGateway:
		if c.Gateway.URL == "" {
			return fmt.Errorf("gateway.url is required")
		}
		if c.Gateway.AnonKey == "" {
			return fmt.Errorf("gateway.anon_key is required")
		}
	case BackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendGateway, BackendPostgres, c.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Cache.SizeMB < 1 {
		return fmt.Errorf("cache.size_mb must be positive")
	}
	return nil
}
