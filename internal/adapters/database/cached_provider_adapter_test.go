package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/adapters/cache"
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	redisclient "github.com/zatekoja/providerdirectory/internal/infrastructure/clients/redis"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) List(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) Upsert(ctx context.Context, providers []*entities.Provider) error {
	args := m.Called(ctx, providers)
	return args.Error(0)
}

func newCachedAdapter(t *testing.T) (*CachedProviderAdapter, *MockProviderRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.NewClientWithOptions(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &MockProviderRepository{}
	return NewCachedProviderAdapter(inner, cache.NewRedisAdapter(client), nil), inner, mr
}

func TestCachedProviderAdapter_GetByIDReadsThrough(t *testing.T) {
	a, inner, mr := newCachedAdapter(t)
	ctx := context.Background()

	inner.On("GetByID", mock.Anything, "1").Return(&entities.Provider{ID: "1", Name: "Dr. Sarah Johnson"}, nil).Once()

	p, err := a.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah Johnson", p.Name)

	a.Flush()
	assert.True(t, mr.Exists("provider:1"))

	p, err = a.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah Johnson", p.Name)

	inner.AssertExpectations(t)
}

func TestCachedProviderAdapter_ListCachesByScope(t *testing.T) {
	a, inner, mr := newCachedAdapter(t)
	ctx := context.Background()

	inner.On("List", mock.Anything, repositories.ProviderFilter{}).
		Return([]*entities.Provider{{ID: "1"}, {ID: "2"}}, nil).Once()

	list, err := a.List(ctx, repositories.ProviderFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	a.Flush()
	assert.True(t, mr.Exists("providers:list:published"))

	list, err = a.List(ctx, repositories.ProviderFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	inner.AssertExpectations(t)
}

func TestCachedProviderAdapter_GetByIDsMixesCacheAndRepository(t *testing.T) {
	a, inner, _ := newCachedAdapter(t)
	ctx := context.Background()

	inner.On("GetByID", mock.Anything, "2").Return(&entities.Provider{ID: "2", Name: "B"}, nil).Once()
	_, err := a.GetByID(ctx, "2")
	require.NoError(t, err)
	a.Flush()

	inner.On("GetByIDs", mock.Anything, []string{"1", "3"}).
		Return([]*entities.Provider{{ID: "1", Name: "A"}}, nil).Once()

	list, err := a.GetByIDs(ctx, []string{"1", "2", "3"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "2", list[1].ID)

	inner.AssertExpectations(t)
}

func TestCachedProviderAdapter_UpsertInvalidates(t *testing.T) {
	a, inner, mr := newCachedAdapter(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("providers:list:published", "[]"))
	require.NoError(t, mr.Set("provider:1", "{}"))

	update := []*entities.Provider{{ID: "1", Name: "A"}}
	inner.On("Upsert", mock.Anything, update).Return(nil).Once()

	require.NoError(t, a.Upsert(ctx, update))
	assert.False(t, mr.Exists("providers:list:published"))
	assert.False(t, mr.Exists("provider:1"))
	inner.AssertExpectations(t)
}

func TestProvidersListCacheKey_DistinguishesNearbyBounds(t *testing.T) {
	a := repositories.ProviderFilter{Bounds: &geo.Bounds{MinLatitude: 39.00001, MaxLatitude: 40, MinLongitude: -105, MaxLongitude: -104}}
	b := repositories.ProviderFilter{Bounds: &geo.Bounds{MinLatitude: 39.00004, MaxLatitude: 40, MinLongitude: -105, MaxLongitude: -104}}

	assert.NotEqual(t, providersListCacheKey(a), providersListCacheKey(b))
	assert.Equal(t, providersListCacheKey(a), providersListCacheKey(a))
	assert.Equal(t, "providers:list:published", providersListCacheKey(repositories.ProviderFilter{}))
	assert.Equal(t, "providers:list:all", providersListCacheKey(repositories.ProviderFilter{IncludeUnlisted: true}))
}
