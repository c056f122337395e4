package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/vrischmann/envconfig"

	"github.com/Sh00ty/host-orchestrator/internal/status/postgres"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	_ = godotenv.Load()

	cfg := postgres.Config{}
	err := envconfig.Init(&cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read database config")
	}

	pool, err := postgres.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, postgres.Schema)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to apply host status schema")
	}
	log.Info().Msg("host status schema applied")
}
