package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/dcccrypto/percolator-sdk/internal/observability"
	"github.com/dcccrypto/percolator-sdk/internal/persistence"
)

func main() {
	log := observability.NewLogger("migrate")

	if len(os.Args) < 2 || (os.Args[1] != "up" && os.Args[1] != "down") {
		fmt.Fprintf(os.Stderr, "usage: %s up|down\n", os.Args[0])
		os.Exit(2)
	}
	direction := os.Args[1]

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal().Msg("POSTGRES_URL is required")
	}
	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open postgres")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping postgres")
	}

	migrator := persistence.NewMigrator(db, migrationsDir, log)

	switch direction {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Str("direction", direction).Msg("migration failed")
	}

	log.Info().Str("direction", direction).Msg("migration complete")
}
