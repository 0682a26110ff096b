package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"sessionkeeper/backend/internal/config"
	"sessionkeeper/backend/internal/fingerprint"
)

func testConfig(t *testing.T, policyEngine string) *config.Config {
	t.Helper()
	return &config.Config{
		DatabaseDriver:       "sqlite",
		DatabaseURL:          "file:" + filepath.Join(t.TempDir(), "app.db"),
		JWTIssuer:            "sessionkeeper",
		SessionMaxConcurrent: 2,
		SessionAllowIPChange: true,
		PolicyEngine:         policyEngine,
		BcryptCost:           4,
	}
}

func TestNew_LoginAndRefresh(t *testing.T) {
	for _, policyEngine := range []string{"static", "opa"} {
		t.Run(policyEngine, func(t *testing.T) {
			ctx := context.Background()
			a, err := New(ctx, testConfig(t, policyEngine), zerolog.Nop())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer a.Close(ctx)

			if (a.Policy != nil) != (policyEngine == "opa") {
				t.Errorf("Policy set = %v for engine %s", a.Policy != nil, policyEngine)
			}
			if _, err := a.Auth.Register(ctx, "alice", "Secret123"); err != nil {
				t.Fatalf("Register: %v", err)
			}
			fp := fingerprint.Fingerprint{DeviceName: "Windows", BrowserVersion: "Chrome 120", IPAddress: "203.0.113.7"}
			res, err := a.Auth.Login(ctx, "alice", "Secret123", fp)
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if _, err := a.Auth.Refresh(ctx, res.RefreshToken, fp); err != nil {
				t.Fatalf("Refresh: %v", err)
			}
			active, err := a.Sessions.ListSessions(ctx, res.UserID, false)
			if err != nil || len(active) != 1 || active[0].Version != 2 {
				t.Fatalf("active = %+v, err = %v", active, err)
			}
		})
	}
}

func TestNew_ProductionRequiresSecrets(t *testing.T) {
	cfg := testConfig(t, "static")
	cfg.Env = "production"
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("New should fail without secrets in production")
	}
}

func TestNew_BadPolicyFile(t *testing.T) {
	cfg := testConfig(t, "opa")
	cfg.PolicyRegoFile = filepath.Join(t.TempDir(), "missing.rego")
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("New should fail for a missing policy file")
	}
}
