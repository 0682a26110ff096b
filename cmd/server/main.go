package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sessionkeeper/backend/internal/app"
	"sessionkeeper/backend/internal/server"
	"sessionkeeper/backend/internal/telemetry"
)

func main() {
	cfg, log, err := app.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup")
	}

	deps := server.Deps{
		Auth:           a.Auth,
		Sessions:       a.Sessions,
		Users:          a.Users,
		AuditLogs:      a.AuditLogs,
		Codec:          a.Codec,
		Log:            log,
		Gatherer:       a.Registry,
		HealthPinger:   a.DB,
		AllowedOrigins: cfg.AllowedOrigins(),
		LoginRateLimit: cfg.LoginRateLimit,
		ServiceName:    app.ServiceName,
	}
	// A nil *OPAEvaluator must not become a non-nil interface.
	if a.Policy != nil {
		deps.HealthPolicyChecker = a.Policy
	}

	serveErr := server.Serve(ctx, cfg.HTTPAddr, server.NewRouter(deps), log)

	// Give in-flight telemetry emits a chance to finish before the exporters close.
	drainCtx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	defer cancel()
	<-drainCtx.Done()
	if err := a.Close(context.Background()); err != nil {
		log.Error().Err(err).Msg("close")
	}
	if serveErr != nil {
		log.Fatal().Err(serveErr).Msg("serve")
	}
}
