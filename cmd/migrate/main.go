// migrate runs DB migrations from embedded SQL for the configured DATABASE_DRIVER.
package main

import (
	"flag"
	"fmt"
	"os"

	"sessionkeeper/backend/internal/config"
	"sessionkeeper/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseDriver, cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
