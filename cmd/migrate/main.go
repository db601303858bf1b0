package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"marketplace-settlement/config"
	pgStorage "marketplace-settlement/internal/adapter/storage/postgres"
	"marketplace-settlement/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset")
	version := flag.String("version", "", "target version for -cmd=version")
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("migrate", cfg.Log.Level, cfg.Log.Pretty)

	ctx := context.Background()
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	log.Info().Str("cmd", *cmd).Msg("migrate ready")

	switch *cmd {
	case "up", "down", "status", "redo", "reset":
		err = pgStorage.Migrate(ctx, pool, *cmd)
	case "version":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for version command")
			os.Exit(1)
		}
		err = pgStorage.MigrateTo(ctx, pool, *version)
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
	if err != nil {
		log.Error().Err(err).Str("cmd", *cmd).Msg("migration failed")
		pool.Close()
		os.Exit(1)
	}
	log.Info().Str("cmd", *cmd).Msg("migration complete")
}
