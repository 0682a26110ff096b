// Package app wires config, storage, policy, telemetry and the session services together
// for the server, worker and CLI binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"sessionkeeper/backend/internal/audit"
	auditrepo "sessionkeeper/backend/internal/audit/repository"
	"sessionkeeper/backend/internal/config"
	"sessionkeeper/backend/internal/db"
	"sessionkeeper/backend/internal/db/migrate"
	identityservice "sessionkeeper/backend/internal/identity/service"
	"sessionkeeper/backend/internal/logger"
	"sessionkeeper/backend/internal/metrics"
	"sessionkeeper/backend/internal/policy/engine"
	"sessionkeeper/backend/internal/security"
	"sessionkeeper/backend/internal/server/middleware"
	sessionrepo "sessionkeeper/backend/internal/session/repository"
	sessionservice "sessionkeeper/backend/internal/session/service"
	otelsetup "sessionkeeper/backend/internal/telemetry/otel"
	userrepo "sessionkeeper/backend/internal/user/repository"
)

// ServiceName identifies this process to OpenTelemetry and HTTP tracing.
const ServiceName = "sessionkeeper"

// App holds the wired services. Call Close when done.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	DB        *sql.DB
	Codec     *security.TokenCodec
	Sessions  *sessionservice.Manager
	Auth      *identityservice.AuthService
	Users     *userrepo.SQLRepository
	AuditLogs *auditrepo.SQLRepository
	Registry  *prometheus.Registry
	Telemetry *otelsetup.Providers
	// Policy is set when the OPA engine is in use; it backs the readiness check.
	Policy *engine.OPAEvaluator
}

// Load reads config and builds the logger. Used by every binary before New.
// On a config error the returned logger is an info-level stderr logger.
func Load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, logger.New("info", os.Stderr), err
	}
	return cfg, logger.New(cfg.LogLevel, os.Stderr), nil
}

// New opens the database, applies migrations and builds the session and auth services.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	sqlDB, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	a := &App{Config: cfg, Log: log, DB: sqlDB}
	if err := a.build(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	if err := migrate.Apply(a.DB, cfg.DatabaseDriver, "up"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	accessSecret, refreshSecret, err := security.ResolveSecrets(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	a.Codec, err = security.NewTokenCodec(accessSecret, refreshSecret, cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	drift, err := a.driftEvaluator(ctx)
	if err != nil {
		return err
	}

	a.Telemetry, err = otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	}, logger.Component(a.Log, "otel"))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	a.Telemetry.SetGlobal()
	emitter, err := otelsetup.NewEventEmitter(a.Telemetry.LoggerProvider, a.Telemetry.SessionMeter())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(a.Registry)

	a.AuditLogs = auditrepo.NewSQLRepository(a.DB, cfg.DatabaseDriver)
	auditLog := audit.NewLogger(a.AuditLogs, middleware.GetClientIP, logger.Component(a.Log, "audit"))

	a.Sessions = sessionservice.NewManager(
		sessionrepo.NewSQLRepository(a.DB, cfg.DatabaseDriver),
		a.Codec,
		drift,
		sessionservice.Config{HardTTL: cfg.HardTTL(), MaxConcurrent: cfg.SessionMaxConcurrent},
		sessionservice.WithLogger(logger.Component(a.Log, "session")),
		sessionservice.WithAudit(auditLog),
		sessionservice.WithEmitter(emitter),
		sessionservice.WithMetrics(mt),
	)

	a.Users = userrepo.NewSQLRepository(a.DB, cfg.DatabaseDriver)
	hasher := security.NewHasher(cfg.BcryptCost)
	a.Auth = identityservice.NewAuthService(a.Users, identityservice.NewPasswordVerifier(a.Users, hasher), hasher, a.Codec, a.Sessions,
		identityservice.WithLogger(logger.Component(a.Log, "auth")),
		identityservice.WithAudit(auditLog),
		identityservice.WithMetrics(mt),
	)
	return nil
}

func (a *App) driftEvaluator(ctx context.Context) (engine.DriftEvaluator, error) {
	toggles := engine.DriftToggles{
		AllowIPChange:      a.Config.SessionAllowIPChange,
		AllowBrowserChange: a.Config.SessionAllowBrowserChange,
		AllowDeviceChange:  a.Config.SessionAllowDeviceChange,
	}
	if a.Config.PolicyEngine != "opa" {
		return engine.NewStaticEvaluator(toggles), nil
	}
	opa, err := engine.NewOPAEvaluatorFromFile(ctx, a.Config.PolicyRegoFile, toggles, logger.Component(a.Log, "policy"))
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	a.Policy = opa
	return opa, nil
}

// Close flushes telemetry and closes the database.
func (a *App) Close(ctx context.Context) error {
	if a.Telemetry != nil {
		_ = a.Telemetry.Shutdown(ctx)
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
