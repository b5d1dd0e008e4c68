package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/observability"
)

// Cache TTLs (in seconds)
const (
	providerByIDTTL  = 300
	providersListTTL = 180
)

const (
	providerKeyPrefix      = "provider:"
	providersListKeyPrefix = "providers:list:"
)

func providerCacheKey(id string) string {
	return providerKeyPrefix + id
}

func providersListCacheKey(filter repositories.ProviderFilter) string {
	scope := "published"
	if filter.IncludeUnlisted {
		scope = "all"
	}
	if filter.Bounds == nil {
		return providersListKeyPrefix + scope
	}
	b := filter.Bounds
	return fmt.Sprintf("%s%s:%g:%g:%g:%g:%t:%t", providersListKeyPrefix, scope,
		b.MinLatitude, b.MaxLatitude, b.MinLongitude, b.MaxLongitude, b.WrapsAntimeridian, b.AllLongitudes)
}

// CachedProviderAdapter wraps a ProviderRepository with a read-through cache.
// Cache writes happen in the background.
type CachedProviderAdapter struct {
	adapter repositories.ProviderRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
	pending sync.WaitGroup
}

var _ repositories.ProviderRepository = (*CachedProviderAdapter)(nil)

// NewCachedProviderAdapter creates a new cached provider adapter
func NewCachedProviderAdapter(adapter repositories.ProviderRepository, cache providers.CacheProvider, metrics *observability.Metrics) *CachedProviderAdapter {
	return &CachedProviderAdapter{
		adapter: adapter,
		cache:   cache,
		metrics: metrics,
	}
}

// List retrieves providers with caching
func (a *CachedProviderAdapter) List(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	cacheKey := providersListCacheKey(filter)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var list []*entities.Provider
		if err := json.Unmarshal(cached, &list); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "providers_list")
			return list, nil
		}
		log.Warn().Err(err).Str("key", cacheKey).Msg("failed to unmarshal cached provider list")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "providers_list")

	list, err := a.adapter.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	a.background(func(bgCtx context.Context) {
		data, err := json.Marshal(list)
		if err != nil {
			return
		}
		if err := a.cache.Set(bgCtx, cacheKey, data, providersListTTL); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache provider list")
		}
	})

	return list, nil
}

// GetByID retrieves a provider by ID with caching
func (a *CachedProviderAdapter) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	cacheKey := providerCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var p entities.Provider
		if err := json.Unmarshal(cached, &p); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "provider")
			return &p, nil
		}
		log.Warn().Err(err).Str("provider_id", id).Msg("failed to unmarshal cached provider")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "provider")

	p, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.background(func(bgCtx context.Context) {
		data, err := json.Marshal(p)
		if err != nil {
			return
		}
		if err := a.cache.Set(bgCtx, cacheKey, data, providerByIDTTL); err != nil {
			log.Warn().Err(err).Str("provider_id", id).Msg("failed to cache provider")
		}
	})

	return p, nil
}

// GetByIDs retrieves providers in the order of ids, reading the cache in one batch
func (a *CachedProviderAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	if len(ids) == 0 {
		return []*entities.Provider{}, nil
	}

	cacheKeys := make([]string, len(ids))
	for i, id := range ids {
		cacheKeys[i] = providerCacheKey(id)
	}

	cached, err := a.cache.GetMulti(ctx, cacheKeys)
	if err != nil {
		log.Warn().Err(err).Msg("batch cache read failed, falling back to repository")
		cached = map[string][]byte{}
	}

	found := make(map[string]*entities.Provider, len(ids))
	missingIDs := make([]string, 0)
	for i, id := range ids {
		if data, ok := cached[cacheKeys[i]]; ok {
			var p entities.Provider
			if err := json.Unmarshal(data, &p); err == nil {
				found[id] = &p
				continue
			}
		}
		missingIDs = append(missingIDs, id)
	}

	if len(missingIDs) > 0 {
		observability.RecordCacheMiss(ctx, a.metrics, "provider")
		fetched, err := a.adapter.GetByIDs(ctx, missingIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range fetched {
			found[p.ID] = p
		}

		a.background(func(bgCtx context.Context) {
			items := make(map[string][]byte, len(fetched))
			for _, p := range fetched {
				if data, err := json.Marshal(p); err == nil {
					items[providerCacheKey(p.ID)] = data
				}
			}
			if err := a.cache.SetMulti(bgCtx, items, providerByIDTTL); err != nil {
				log.Warn().Err(err).Msg("failed to batch cache providers")
			}
		})
	} else {
		observability.RecordCacheHit(ctx, a.metrics, "provider")
	}

	result := make([]*entities.Provider, 0, len(found))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok && !seen[id] {
			result = append(result, p)
			seen[id] = true
		}
	}
	return result, nil
}

// Upsert writes through to the repository and then drops cached entries
func (a *CachedProviderAdapter) Upsert(ctx context.Context, list []*entities.Provider) error {
	if err := a.adapter.Upsert(ctx, list); err != nil {
		return err
	}
	return a.Invalidate(ctx)
}

// Invalidate drops every cached provider and provider list
func (a *CachedProviderAdapter) Invalidate(ctx context.Context) error {
	if err := a.cache.DeletePattern(ctx, providersListKeyPrefix+"*"); err != nil {
		return fmt.Errorf("failed to invalidate provider lists: %w", err)
	}
	if err := a.cache.DeletePattern(ctx, providerKeyPrefix+"*"); err != nil {
		return fmt.Errorf("failed to invalidate providers: %w", err)
	}
	return nil
}

// Flush waits for background cache writes to finish
func (a *CachedProviderAdapter) Flush() {
	a.pending.Wait()
}

func (a *CachedProviderAdapter) background(fn func(ctx context.Context)) {
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		fn(context.Background())
	}()
}
