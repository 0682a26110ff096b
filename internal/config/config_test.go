package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("DatabaseDriver = %q, want sqlite", cfg.DatabaseDriver)
	}
	if cfg.JWTIssuer != "sessionkeeper" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "sessionkeeper")
	}
	if cfg.JWTAccessTTL != "15m" {
		t.Errorf("JWTAccessTTL = %q, want %q", cfg.JWTAccessTTL, "15m")
	}
	if cfg.JWTRefreshTTL != "168h" {
		t.Errorf("JWTRefreshTTL = %q, want %q", cfg.JWTRefreshTTL, "168h")
	}
	if cfg.HardTTL() != 30*24*time.Hour {
		t.Errorf("HardTTL = %v, want 720h", cfg.HardTTL())
	}
	if cfg.SessionMaxConcurrent != 4 {
		t.Errorf("SessionMaxConcurrent = %d, want 4", cfg.SessionMaxConcurrent)
	}
	if !cfg.SessionAllowIPChange {
		t.Error("SessionAllowIPChange should default to true")
	}
	if cfg.SessionAllowBrowserChange || cfg.SessionAllowDeviceChange {
		t.Error("browser and device changes should default to disallowed")
	}
	if cfg.PolicyEngine != "static" {
		t.Errorf("PolicyEngine = %q, want static", cfg.PolicyEngine)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.LoginRateLimit != 20 {
		t.Errorf("LoginRateLimit = %d, want 20", cfg.LoginRateLimit)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("SESSION_ALLOW_IP_CHANGE", "false")
	os.Setenv("SESSION_ALLOW_DEVICE_CHANGE", "true")
	os.Setenv("DATABASE_DRIVER", "Postgres")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.SessionAllowIPChange {
		t.Error("SessionAllowIPChange should be false")
	}
	if !cfg.SessionAllowDeviceChange {
		t.Error("SessionAllowDeviceChange should be true")
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("DatabaseDriver = %q, want postgres", cfg.DatabaseDriver)
	}
}

func TestLoad_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"unknown policy engine", map[string]string{"POLICY_ENGINE": "cel"}},
		{"shared secrets", map[string]string{"JWT_ACCESS_SECRET": "same", "JWT_REFRESH_SECRET": "same"}},
		{"negative max sessions", map[string]string{"SESSION_MAX_CONCURRENT": "-1"}},
		{"negative rate limit", map[string]string{"LOGIN_RATE_LIMIT": "-5"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			cfg, err := Load()
			if err == nil {
				t.Fatal("Load should return error")
			}
			if cfg != nil {
				t.Error("Load should return nil config on error")
			}
		})
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	testCases := []struct {
		name  string
		env   string
		value string
		get   func(*Config) time.Duration
		want  time.Duration
	}{
		{"access valid", "JWT_ACCESS_TTL", "30m", (*Config).AccessTTL, 30 * time.Minute},
		{"access invalid", "JWT_ACCESS_TTL", "invalid", (*Config).AccessTTL, 15 * time.Minute},
		{"access zero", "JWT_ACCESS_TTL", "0", (*Config).AccessTTL, 15 * time.Minute},
		{"access negative", "JWT_ACCESS_TTL", "-5m", (*Config).AccessTTL, 15 * time.Minute},
		{"refresh valid", "JWT_REFRESH_TTL", "336h", (*Config).RefreshTTL, 336 * time.Hour},
		{"refresh invalid", "JWT_REFRESH_TTL", "7d", (*Config).RefreshTTL, 168 * time.Hour},
		{"hard valid", "SESSION_HARD_TTL", "24h", (*Config).HardTTL, 24 * time.Hour},
		{"hard negative", "SESSION_HARD_TTL", "-1h", (*Config).HardTTL, 720 * time.Hour},
		{"purge interval default", "SESSION_PURGE_INTERVAL", "", (*Config).PurgeInterval, time.Hour},
		{"purge interval valid", "SESSION_PURGE_INTERVAL", "10m", (*Config).PurgeInterval, 10 * time.Minute},
		{"purge grace invalid", "SESSION_PURGE_GRACE", "soon", (*Config).PurgeGrace, 168 * time.Hour},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv(tc.env, tc.value)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := tc.get(cfg); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: " https://a.example , ,https://b.example"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", got)
	}
	if (&Config{}).AllowedOrigins() != nil {
		t.Error("empty origins should return nil")
	}
}

func TestIsProduction(t *testing.T) {
	if !(&Config{Env: "Production"}).IsProduction() {
		t.Error("Production should be production")
	}
	if (&Config{Env: "development"}).IsProduction() {
		t.Error("development should not be production")
	}
}
