package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/providerdirectory/pkg/errors"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

const (
	defaultSuggestLimit = 8
	maxSuggestLimit     = 25
)

// DirectoryService handles directory search and lookups
type DirectoryService struct {
	repo       repositories.ProviderRepository
	searchRepo repositories.ProviderSearchRepository
	eventBus   providers.EventBus
	composer   *FilterComposer
	metrics    *observability.Metrics
}

// NewDirectoryService creates a new directory service. searchRepo and
// eventBus are optional.
func NewDirectoryService(
	repo repositories.ProviderRepository,
	searchRepo repositories.ProviderSearchRepository,
	eventBus providers.EventBus,
	composer *FilterComposer,
	metrics *observability.Metrics,
) *DirectoryService {
	if composer == nil {
		composer = NewFilterComposer(false)
	}
	return &DirectoryService{
		repo:       repo,
		searchRepo: searchRepo,
		eventBus:   eventBus,
		composer:   composer,
		metrics:    metrics,
	}
}

// Search returns the providers matching state. When proximity is active the
// repository is narrowed to a bounding box first; the distance stage of the
// composer still decides membership.
func (s *DirectoryService) Search(ctx context.Context, state entities.FilterState) (*entities.SearchResult, error) {
	ctx, span := observability.StartSpan(ctx, "DirectoryService.Search")
	defer span.End()

	entries, err := s.candidates(ctx, state)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	filtered := s.composer.ApplyFilters(entries, state)
	result := &entities.SearchResult{
		Providers:       DistancesFrom(filtered, state.Location),
		Total:           len(filtered),
		TierCounts:      TierCounts(filtered),
		ProximityActive: state.HasProximity(),
	}

	observability.SetSpanAttributes(span,
		attribute.Int("search.candidates", len(entries)),
		attribute.Int("search.results", result.Total),
		attribute.Bool("search.proximity", result.ProximityActive),
	)
	observability.RecordSearchResults(ctx, s.metrics, result.Total, result.ProximityActive)
	return result, nil
}

// Filter runs the composer without building a result; map sessions use it
func (s *DirectoryService) Filter(ctx context.Context, state entities.FilterState) ([]*entities.Provider, error) {
	entries, err := s.candidates(ctx, state)
	if err != nil {
		return nil, err
	}
	return s.composer.ApplyFilters(entries, state), nil
}

func (s *DirectoryService) candidates(ctx context.Context, state entities.FilterState) ([]*entities.Provider, error) {
	filter := repositories.ProviderFilter{}
	if state.HasProximity() && state.Location.Valid() {
		bounds := geo.BoundsAround(*state.Location, state.RadiusMiles)
		filter.Bounds = &bounds
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return entries, nil
}

// GetByID retrieves a provider by ID
func (s *DirectoryService) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("provider id is required")
	}
	return s.repo.GetByID(ctx, id)
}

// GetByIDs retrieves providers in the order of ids, skipping unknown ids
func (s *DirectoryService) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	if len(ids) == 0 {
		return []*entities.Provider{}, nil
	}
	return s.repo.GetByIDs(ctx, ids)
}

// Facets lists the distinct facet values across the listed directory
func (s *DirectoryService) Facets(ctx context.Context) (*entities.FacetValues, error) {
	entries, err := s.repo.List(ctx, repositories.ProviderFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	facets := Facets(entries)
	return &facets, nil
}

// Suggest returns autocomplete entries for prefix. The search index is used
// when configured; if it is absent or fails, the directory is matched in
// memory instead.
func (s *DirectoryService) Suggest(ctx context.Context, prefix string, limit int) ([]entities.Suggestion, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []entities.Suggestion{}, nil
	}
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	if limit > maxSuggestLimit {
		limit = maxSuggestLimit
	}

	if s.searchRepo != nil {
		suggestions, err := s.searchRepo.Suggest(ctx, prefix, limit)
		if err == nil {
			return suggestions, nil
		}
		log.Warn().Err(err).Str("prefix", prefix).Msg("search index suggest failed, using directory scan")
	}

	entries, err := s.repo.List(ctx, repositories.ProviderFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return suggestFromEntries(entries, prefix, limit), nil
}

// suggestFromEntries matches prefix against the start of any word of name,
// specialty or practice, best tier first.
func suggestFromEntries(entries []*entities.Provider, prefix string, limit int) []entities.Suggestion {
	prefix = strings.ToLower(prefix)
	matched := make([]*entities.Provider, 0)
	for _, p := range entries {
		if wordPrefixMatch(prefix, p.Name, p.Specialty, p.Practice) {
			matched = append(matched, p)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if ri, rj := matched[i].Tier.Rank(), matched[j].Tier.Rank(); ri != rj {
			return ri > rj
		}
		if matched[i].SearchPriority != matched[j].SearchPriority {
			return matched[i].SearchPriority > matched[j].SearchPriority
		}
		return strings.ToLower(matched[i].Name) < strings.ToLower(matched[j].Name)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]entities.Suggestion, len(matched))
	for i, p := range matched {
		out[i] = entities.Suggestion{
			ID:        p.ID,
			Name:      p.Name,
			Specialty: p.Specialty,
			City:      p.Address.City,
			State:     p.Address.State,
		}
	}
	return out
}

func wordPrefixMatch(prefix string, fields ...string) bool {
	for _, f := range fields {
		f = strings.ToLower(f)
		if strings.HasPrefix(f, prefix) {
			return true
		}
		for _, word := range strings.Fields(f) {
			if strings.HasPrefix(strings.TrimLeft(word, "(\"'"), prefix) {
				return true
			}
		}
	}
	return false
}

// Import upserts providers, refreshes the search index and announces the
// change. Index and publish failures are logged; the store is the source of
// truth.
func (s *DirectoryService) Import(ctx context.Context, list []*entities.Provider) error {
	ctx, span := observability.StartSpan(ctx, "DirectoryService.Import")
	defer span.End()

	ids := make([]string, 0, len(list))
	for _, p := range list {
		if p == nil || strings.TrimSpace(p.ID) == "" {
			return apperrors.NewValidationError("every provider needs an id")
		}
		ids = append(ids, p.ID)
	}

	if err := s.repo.Upsert(ctx, list); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("failed to store providers: %w", err)
	}

	if s.searchRepo != nil {
		if err := s.searchRepo.Index(ctx, list); err != nil {
			log.Warn().Err(err).Int("providers", len(list)).Msg("failed to index providers")
		}
	}

	if s.eventBus != nil {
		event := entities.NewDirectoryEvent(entities.DirectoryEventReloaded, ids)
		if err := s.eventBus.Publish(ctx, providers.EventChannelDirectory, event); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("failed to publish directory event")
		}
	}

	log.Info().Int("providers", len(list)).Msg("directory import complete")
	return nil
}
