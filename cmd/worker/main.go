// Worker periodically deletes sessions whose hard ceiling passed more than SESSION_PURGE_GRACE ago.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sessionkeeper/backend/internal/app"
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
	defer a.Close(context.Background())

	log.Info().Dur("interval", cfg.PurgeInterval()).Dur("grace", cfg.PurgeGrace()).Msg("worker: purging expired sessions")
	a.Sessions.RunPurger(ctx, cfg.PurgeInterval(), cfg.PurgeGrace())
	log.Info().Msg("worker: stopped")
}
