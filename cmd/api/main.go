package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/providerdirectory/internal/adapters/cache"
	"github.com/zatekoja/providerdirectory/internal/adapters/database"
	"github.com/zatekoja/providerdirectory/internal/adapters/events"
	"github.com/zatekoja/providerdirectory/internal/adapters/maps"
	"github.com/zatekoja/providerdirectory/internal/adapters/providers/geolocation"
	"github.com/zatekoja/providerdirectory/internal/adapters/search"
	"github.com/zatekoja/providerdirectory/internal/api/handlers"
	"github.com/zatekoja/providerdirectory/internal/api/middleware"
	"github.com/zatekoja/providerdirectory/internal/api/routes"
	"github.com/zatekoja/providerdirectory/internal/application/services"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/redis"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/observability"
	"github.com/zatekoja/providerdirectory/pkg/config"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Redis is optional: without it the bus is in-process and nothing is cached
	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; running without cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
		}
	}
	if eventBus == nil {
		eventBus = events.NewMemoryEventBus()
	}

	providerRepo, closeRepo, err := buildProviderRepository(ctx, cfg, metrics)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.Directory.Source).Msg("failed to open directory")
	}
	defer closeRepo()

	var cachedRepo *database.CachedProviderAdapter
	if cacheProvider != nil {
		cachedRepo = database.NewCachedProviderAdapter(providerRepo, cacheProvider, metrics)
		providerRepo = cachedRepo
		log.Info().Msg("provider repository wrapped with caching layer")
	}

	var searchRepo repositories.ProviderSearchRepository
	if cfg.Typesense.Enabled {
		typesenseClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("typesense unavailable; suggestions served from memory")
		} else {
			adapter := search.NewTypesenseAdapter(typesenseClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			searchRepo = adapter
		}
	}

	positionSource := buildPositionSource(cfg)

	// Initialize services
	directoryService := services.NewDirectoryService(
		providerRepo,
		searchRepo,
		eventBus,
		services.NewFilterComposer(cfg.Directory.MatchAllTokens),
		metrics,
	)
	locationService := services.NewLocationService(positionSource, services.LocationOptions{
		Timeout:   cfg.Geolocation.Timeout,
		MaxAge:    cfg.Geolocation.MaxAge,
		CacheSize: cfg.Geolocation.CacheSize,
	}, metrics)
	mapSessions := services.NewMapSessionService(directoryService, services.MapSessionOptions{
		TTL:         cfg.Map.SessionTTL,
		MaxSessions: cfg.Map.MaxSessions,
		NewAdapter: func(sessionID string) services.RecordingMapAdapter {
			return maps.NewOpRecorder(sessionID)
		},
	}, metrics)

	var invalidator services.DirectoryInvalidator
	if cachedRepo != nil {
		invalidator = cachedRepo
	}
	cacheInvalidationService := services.NewCacheInvalidationService(cacheProvider, eventBus, invalidator)
	if err := cacheInvalidationService.Start(); err != nil {
		log.Warn().Err(err).Msg("failed to start cache invalidation service")
	}

	warmCtx, stopWarming := context.WithCancel(context.Background())
	defer stopWarming()
	if cachedRepo != nil && cfg.Directory.WarmInterval > 0 {
		services.NewCacheWarmingService(cachedRepo).StartPeriodicWarming(warmCtx, cfg.Directory.WarmInterval)
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics)
	}

	router := routes.NewRouter(
		handlers.NewDirectoryHandler(directoryService),
		handlers.NewLocationHandler(locationService),
		handlers.NewMapHandler(mapSessions),
		handlers.NewSSEHandler(eventBus),
		routes.Options{
			ProviderRepo:    providerRepo,
			CacheMiddleware: cacheMiddleware,
			RateLimiter:     middleware.NewIPRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			Metrics:         metrics,
		},
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: directory streams stay open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", serverAddr).
			Str("directory", cfg.Directory.Source).
			Str("geolocation", locationService.SourceName()).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	stopWarming()
	cacheInvalidationService.Stop()
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}
	if cachedRepo != nil {
		cachedRepo.Flush()
	}

	log.Info().Msg("server stopped")
}

// buildProviderRepository opens the configured directory source. The returned
// func releases it.
func buildProviderRepository(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (repositories.ProviderRepository, func(), error) {
	switch cfg.Directory.Source {
	case "postgres":
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := pgClient.Close(); err != nil {
				log.Error().Err(err).Msg("error closing PostgreSQL client")
			}
		}
		return database.NewProviderAdapter(pgClient, metrics), closeFn, nil
	default:
		adapter, err := database.NewStaticProviderAdapterFromFile(cfg.Directory.SeedPath)
		if err != nil {
			return nil, nil, err
		}
		return adapter, func() {}, nil
	}
}

func buildPositionSource(cfg *config.Config) providers.PositionSource {
	switch cfg.Geolocation.Source {
	case "ip":
		return geolocation.NewIPLookupSource(geolocation.IPLookupOptions{
			BaseURL:       cfg.Geolocation.LookupURL,
			RatePerSecond: cfg.Geolocation.LookupRate,
		})
	case "static":
		return geolocation.NewStaticSource(geo.Coordinate{
			Latitude:  cfg.Geolocation.StaticLatitude,
			Longitude: cfg.Geolocation.StaticLongitude,
		})
	case "none":
		return nil
	default:
		return geolocation.NewBrowserReportSource()
	}
}
