package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
)

// responseCachePattern matches every cached HTTP response
const responseCachePattern = "http:cache:*"

// DirectoryInvalidator drops cached directory data
type DirectoryInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CacheInvalidationService handles cache invalidation based on directory events
type CacheInvalidationService struct {
	cache       providers.CacheProvider
	eventBus    providers.EventBus
	invalidator DirectoryInvalidator
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewCacheInvalidationService creates a new cache invalidation service.
// invalidator may be nil when the repository is not cached.
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus, invalidator DirectoryInvalidator) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:       cache,
		eventBus:    eventBus,
		invalidator: invalidator,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelDirectory)
	if err != nil {
		return fmt.Errorf("failed to subscribe to directory updates: %w", err)
	}

	s.done = make(chan struct{})
	go s.processEvents(eventChan)
	log.Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.done != nil {
		<-s.done
	}
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.DirectoryEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

// handleEvent drops cached providers and cached responses. Any change to the
// directory can move a provider in or out of a list, so lists always go.
func (s *CacheInvalidationService) handleEvent(event *entities.DirectoryEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := log.With().
		Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Int("providers", event.Count).
		Logger()

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate cached providers")
		}
	}

	if err := s.InvalidateResponseCaches(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to invalidate response caches")
		return
	}
	logger.Debug().Msg("directory caches invalidated")
}

// InvalidateResponseCaches drops every cached HTTP response
func (s *CacheInvalidationService) InvalidateResponseCaches(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeletePattern(ctx, responseCachePattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", responseCachePattern, err)
	}
	return nil
}
