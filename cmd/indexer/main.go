package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/providerdirectory/internal/adapters/database"
	"github.com/zatekoja/providerdirectory/internal/adapters/search"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/observability"
	"github.com/zatekoja/providerdirectory/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Env)

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset || os.Getenv("RESET_TYPESENSE") == "true"); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_in", interval).Msg("reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	repo, closeRepo, err := openDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
	if err != nil {
		return err
	}

	if reset {
		log.Info().Str("collection", typesense.ProvidersCollection).Msg("deleting collection before reindex")
		if _, err := tsClient.Client().Collection(typesense.ProvidersCollection).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to delete collection")
		}
	}

	adapter := search.NewTypesenseAdapter(tsClient)
	if err := adapter.InitSchema(ctx); err != nil {
		return err
	}

	list, err := repo.List(ctx, repositories.ProviderFilter{})
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}

	start := time.Now()
	if err := adapter.Index(ctx, list); err != nil {
		return err
	}
	log.Info().Int("providers", len(list)).Dur("took", time.Since(start)).Msg("providers indexed")
	return nil
}

func openDirectory(ctx context.Context, cfg *config.Config) (repositories.ProviderRepository, func(), error) {
	if cfg.Directory.Source == "postgres" {
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return database.NewProviderAdapter(pgClient, nil), func() { _ = pgClient.Close() }, nil
	}

	adapter, err := database.NewStaticProviderAdapterFromFile(cfg.Directory.SeedPath)
	if err != nil {
		return nil, nil, err
	}
	return adapter, func() {}, nil
}
