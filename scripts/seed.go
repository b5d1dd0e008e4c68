package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/providerdirectory/internal/adapters/database"
	"github.com/zatekoja/providerdirectory/internal/adapters/events"
	"github.com/zatekoja/providerdirectory/internal/adapters/search"
	"github.com/zatekoja/providerdirectory/internal/application/services"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/redis"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/observability"
	"github.com/zatekoja/providerdirectory/pkg/config"
)

func main() {
	var seedPath, migrationsDir string
	flag.StringVar(&seedPath, "seed", "", "YAML seed file (defaults to DIRECTORY_SEED_PATH)")
	flag.StringVar(&migrationsDir, "migrations", "migrations", "directory of .sql files applied before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.Env)
	if seedPath == "" {
		seedPath = cfg.Directory.SeedPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	list, err := database.LoadSeedFile(seedPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load seed")
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	if err := applyMigrations(ctx, pgClient, migrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating providers before seeding")
		if err := pgClient.Exec(ctx, `TRUNCATE TABLE providers`); err != nil {
			log.Fatal().Err(err).Msg("failed to reset providers")
		}
	}

	// Publishing on Redis lets running API instances drop their caches
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; running servers will not be notified")
		} else {
			defer redisClient.Close()
			eventBus = events.NewRedisEventBus(redisClient)
			defer eventBus.Close()
		}
	}

	var searchRepo repositories.ProviderSearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("typesense unavailable; skipping index")
		} else {
			adapter := search.NewTypesenseAdapter(tsClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			searchRepo = adapter
		}
	}

	directory := services.NewDirectoryService(database.NewProviderAdapter(pgClient, nil), searchRepo, eventBus, nil, nil)
	if err := directory.Import(ctx, list); err != nil {
		log.Fatal().Err(err).Msg("failed to import providers")
	}

	log.Info().Int("providers", len(list)).Str("seed", seedPath).Msg("seeding completed")
}

// applyMigrations runs every .sql file in dir in name order. Statements are
// written to be re-runnable.
func applyMigrations(ctx context.Context, client *postgres.Client, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		statement, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if err := client.Exec(ctx, string(statement)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", file, err)
		}
		log.Info().Str("migration", filepath.Base(file)).Msg("migration applied")
	}
	return nil
}
