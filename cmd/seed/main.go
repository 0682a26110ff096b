// seed creates development users for local testing.
// Idempotent: users that already exist are skipped.
package main

import (
	"context"
	"errors"

	"sessionkeeper/backend/internal/app"
	userdomain "sessionkeeper/backend/internal/user/domain"
	userrepo "sessionkeeper/backend/internal/user/repository"
)

const devPassword = "Password123"

var devUsers = []struct {
	username string
	role     string
}{
	{"dev_admin", userdomain.RoleAdmin},
	{"dev_user", userdomain.RoleUser},
}

func main() {
	cfg, log, err := app.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.IsProduction() {
		log.Fatal().Msg("seed: refusing to run with APP_ENV=production")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup")
	}
	defer a.Close(ctx)

	for _, u := range devUsers {
		created, err := a.Auth.CreateUser(ctx, u.username, devPassword, u.role)
		switch {
		case errors.Is(err, userrepo.ErrUsernameTaken):
			log.Info().Str("username", u.username).Msg("seed: user exists, skipping")
		case err != nil:
			log.Fatal().Err(err).Str("username", u.username).Msg("seed: create user")
		default:
			log.Info().Str("username", created.Username).Str("id", created.ID).Str("role", created.Role).Msg("seed: created user")
		}
	}
}
