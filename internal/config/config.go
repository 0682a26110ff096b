// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseDriver selects the SQL engine: "sqlite" or "postgres".
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	// DatabaseURL is the DSN for DatabaseDriver (a file path / URI for sqlite, a Postgres URL otherwise).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTAccessSecret is the HMAC secret for access tokens, inline or "file:<path>".
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret is the HMAC secret for refresh tokens; must differ from JWTAccessSecret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim set on minted tokens and checked on verify.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime per mint (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// SessionHardTTL is the absolute session ceiling set at creation and never extended (e.g. "720h").
	SessionHardTTL string `mapstructure:"SESSION_HARD_TTL"`
	// SessionMaxConcurrent caps active sessions per user; the oldest are revoked on login. 0 disables.
	SessionMaxConcurrent int `mapstructure:"SESSION_MAX_CONCURRENT"`
	// SessionAllowIPChange lets a session survive a client IP change.
	SessionAllowIPChange bool `mapstructure:"SESSION_ALLOW_IP_CHANGE"`
	// SessionAllowBrowserChange lets a session survive a browser/version change.
	SessionAllowBrowserChange bool `mapstructure:"SESSION_ALLOW_BROWSER_CHANGE"`
	// SessionAllowDeviceChange lets a session survive a device/OS change.
	SessionAllowDeviceChange bool `mapstructure:"SESSION_ALLOW_DEVICE_CHANGE"`
	// SessionPurgeInterval is how often the worker deletes long-expired sessions (e.g. "1h").
	SessionPurgeInterval string `mapstructure:"SESSION_PURGE_INTERVAL"`
	// SessionPurgeGrace keeps expired sessions this long past their ceiling before purge (e.g. "168h").
	SessionPurgeGrace string `mapstructure:"SESSION_PURGE_GRACE"`
	// PolicyEngine selects the fingerprint drift evaluator: "static" or "opa".
	PolicyEngine string `mapstructure:"POLICY_ENGINE"`
	// PolicyRegoFile is an optional Rego module replacing the built-in drift policy (opa engine only).
	PolicyRegoFile string `mapstructure:"POLICY_REGO_FILE"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// CORSAllowedOrigins is a comma-separated origin allow-list.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// LoginRateLimit is the number of login attempts allowed per client IP per minute; 0 disables.
	LoginRateLimit int `mapstructure:"LOGIN_RATE_LIMIT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "file:sessionkeeper.db")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ISSUER", "sessionkeeper")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("SESSION_HARD_TTL", "720h") // 30d
	v.SetDefault("SESSION_MAX_CONCURRENT", 4)
	v.SetDefault("SESSION_ALLOW_IP_CHANGE", true)
	v.SetDefault("SESSION_ALLOW_BROWSER_CHANGE", false)
	v.SetDefault("SESSION_ALLOW_DEVICE_CHANGE", false)
	v.SetDefault("SESSION_PURGE_INTERVAL", "1h")
	v.SetDefault("SESSION_PURGE_GRACE", "168h")
	v.SetDefault("POLICY_ENGINE", "static")
	v.SetDefault("POLICY_REGO_FILE", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOGIN_RATE_LIMIT", 20)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	if cfg.DatabaseDriver != "sqlite" && cfg.DatabaseDriver != "postgres" {
		return nil, errors.New("config: DATABASE_DRIVER must be sqlite or postgres")
	}

	cfg.PolicyEngine = strings.ToLower(strings.TrimSpace(cfg.PolicyEngine))
	if cfg.PolicyEngine != "static" && cfg.PolicyEngine != "opa" {
		return nil, errors.New("config: POLICY_ENGINE must be static or opa")
	}

	if cfg.JWTAccessSecret != "" && cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.SessionMaxConcurrent < 0 {
		return nil, errors.New("config: SESSION_MAX_CONCURRENT must not be negative")
	}
	if cfg.LoginRateLimit < 0 {
		return nil, errors.New("config: LOGIN_RATE_LIMIT must not be negative")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 168*time.Hour)
}

// HardTTL parses SessionHardTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) HardTTL() time.Duration {
	return parseDuration(c.SessionHardTTL, 720*time.Hour)
}

// PurgeInterval parses SessionPurgeInterval. Returns 1h if unset or invalid.
func (c *Config) PurgeInterval() time.Duration {
	return parseDuration(c.SessionPurgeInterval, time.Hour)
}

// PurgeGrace parses SessionPurgeGrace. Returns 168h if unset or invalid.
func (c *Config) PurgeGrace() time.Duration {
	return parseDuration(c.SessionPurgeGrace, 168*time.Hour)
}

// AllowedOrigins returns CORS origins from the comma-separated config.
func (c *Config) AllowedOrigins() []string {
	if c == nil || c.CORSAllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
