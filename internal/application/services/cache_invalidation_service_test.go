package services_test

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/adapters/events"
	"github.com/zatekoja/providerdirectory/internal/application/services"
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
)

// MockCacheProvider for testing
type MockCacheProvider struct {
	mu      sync.RWMutex
	data    map[string][]byte
	deleted []string
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{data: make(map[string][]byte)}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, providers.ErrCacheMiss
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheProvider) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string][]byte)
	for _, key := range keys {
		if val, ok := m.data[key]; ok {
			result[key] = val
		}
	}
	return result, nil
}

func (m *MockCacheProvider) SetMulti(ctx context.Context, items map[string][]byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range items {
		m.data[key] = value
	}
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
			m.deleted = append(m.deleted, key)
		}
	}
	return nil
}

func (m *MockCacheProvider) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingInvalidator) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestCacheInvalidationService_HandlesDirectoryEvents(t *testing.T) {
	cache := NewMockCacheProvider()
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	invalidator := &countingInvalidator{}

	service := services.NewCacheInvalidationService(cache, bus, invalidator)
	require.NoError(t, service.Start())
	defer service.Stop()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "http:cache:abc", []byte("{}"), 300))
	require.NoError(t, cache.Set(ctx, "session:keep", []byte("x"), 300))

	event := entities.NewDirectoryEvent(entities.DirectoryEventProviderUpdated, []string{"1"})
	require.NoError(t, bus.Publish(ctx, providers.EventChannelDirectory, event))

	assert.Eventually(t, func() bool {
		return invalidator.Calls() == 1 && !cache.Has("http:cache:abc")
	}, time.Second, 10*time.Millisecond)
	assert.True(t, cache.Has("session:keep"))
}

func TestCacheInvalidationService_InvalidateResponseCaches(t *testing.T) {
	cache := NewMockCacheProvider()
	service := services.NewCacheInvalidationService(cache, events.NewMemoryEventBus(), nil)

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "http:cache:1", []byte("data"), 300))
	require.NoError(t, cache.Set(ctx, "http:cache:2", []byte("data"), 300))

	require.NoError(t, service.InvalidateResponseCaches(ctx))
	assert.False(t, cache.Has("http:cache:1"))
	assert.False(t, cache.Has("http:cache:2"))
}

func TestCacheInvalidationService_StartFailsOnClosedBus(t *testing.T) {
	bus := events.NewMemoryEventBus()
	require.NoError(t, bus.Close())

	service := services.NewCacheInvalidationService(NewMockCacheProvider(), bus, nil)
	assert.Error(t, service.Start())
}
