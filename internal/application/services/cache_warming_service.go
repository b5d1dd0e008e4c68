package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
)

// CacheWarmingService keeps the read-through provider cache populated so the
// first searches after a restart or a directory change skip the database.
type CacheWarmingService struct {
	providerRepo repositories.ProviderRepository
}

// NewCacheWarmingService creates a warming service. providerRepo should be
// the cached repository; reads through it fill the cache.
func NewCacheWarmingService(providerRepo repositories.ProviderRepository) *CacheWarmingService {
	return &CacheWarmingService{providerRepo: providerRepo}
}

// WarmCache reads the listed directory and every listed provider by id. It
// returns the number of providers warmed.
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	list, err := s.providerRepo.List(ctx, repositories.ProviderFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch providers: %w", err)
	}

	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	if _, err := s.providerRepo.GetByIDs(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to warm providers: %w", err)
	}
	return len(ids), nil
}

// StartPeriodicWarming warms once and then every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	s.warm(ctx)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopping cache warming service")
				return
			case <-ticker.C:
				s.warm(ctx)
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("started periodic cache warming")
}

func (s *CacheWarmingService) warm(ctx context.Context) {
	start := time.Now()
	n, err := s.WarmCache(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cache warming failed")
		return
	}
	log.Debug().Int("providers", n).Dur("took", time.Since(start)).Msg("cache warmed")
}
