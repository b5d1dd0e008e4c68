package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/adapters/database"
	"github.com/zatekoja/providerdirectory/internal/adapters/events"
	"github.com/zatekoja/providerdirectory/internal/application/services"
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	apperrors "github.com/zatekoja/providerdirectory/pkg/errors"
)

type MockProviderSearchRepository struct {
	mock.Mock
}

func (m *MockProviderSearchRepository) Suggest(ctx context.Context, prefix string, limit int) ([]entities.Suggestion, error) {
	args := m.Called(ctx, prefix, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Suggestion), args.Error(1)
}

func (m *MockProviderSearchRepository) Index(ctx context.Context, list []*entities.Provider) error {
	return m.Called(ctx, list).Error(0)
}

func (m *MockProviderSearchRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type failingRepository struct {
	repositories.ProviderRepository
}

func (failingRepository) List(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	return nil, errors.New("connection refused")
}

func newDirectoryService(search repositories.ProviderSearchRepository, bus providers.EventBus) *services.DirectoryService {
	repo := database.NewStaticProviderAdapter(sampleDirectory())
	return services.NewDirectoryService(repo, search, bus, nil, nil)
}

func TestDirectoryService_Search(t *testing.T) {
	svc := newDirectoryService(nil, nil)
	ctx := context.Background()

	t.Run("no constraints", func(t *testing.T) {
		res, err := svc.Search(ctx, entities.FilterState{})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Total)
		assert.False(t, res.ProximityActive)
		assert.Equal(t, 2, res.TierCounts[entities.TierBasic])
		for _, m := range res.Providers {
			assert.Nil(t, m.DistanceMiles)
		}
	})

	t.Run("proximity around denver", func(t *testing.T) {
		res, err := svc.Search(ctx, entities.FilterState{Location: at(39.74, -104.99), RadiusMiles: 50})
		require.NoError(t, err)
		assert.True(t, res.ProximityActive)
		require.Equal(t, 2, res.Total)
		assert.Equal(t, "1", res.Providers[0].ID)
		assert.Equal(t, "2", res.Providers[1].ID)
		require.NotNil(t, res.Providers[1].DistanceMiles)
		assert.InDelta(t, 24, *res.Providers[1].DistanceMiles, 3)
	})

	t.Run("repository failure", func(t *testing.T) {
		broken := services.NewDirectoryService(failingRepository{}, nil, nil, nil, nil)
		_, err := broken.Search(ctx, entities.FilterState{})
		assert.Error(t, err)
	})
}

func TestDirectoryService_GetByID(t *testing.T) {
	svc := newDirectoryService(nil, nil)
	ctx := context.Background()

	p, err := svc.GetByID(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Michael Chen", p.Name)

	_, err = svc.GetByID(ctx, "404")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.GetByID(ctx, " ")
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	list, err := svc.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDirectoryService_Suggest(t *testing.T) {
	ctx := context.Background()

	t.Run("in-memory fallback", func(t *testing.T) {
		svc := newDirectoryService(nil, nil)
		got, err := svc.Suggest(ctx, "chi", 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "1", got[0].ID, "premier first")
		assert.Equal(t, "4", got[1].ID)

		got, err = svc.Suggest(ctx, "chen", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Boulder", got[0].City)

		got, err = svc.Suggest(ctx, "  ", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("search index", func(t *testing.T) {
		search := &MockProviderSearchRepository{}
		search.On("Suggest", mock.Anything, "sar", 25).Return([]entities.Suggestion{{ID: "1", Name: "Dr. Sarah Johnson"}}, nil).Once()
		svc := newDirectoryService(search, nil)

		got, err := svc.Suggest(ctx, "sar", 100)
		require.NoError(t, err)
		assert.Equal(t, []entities.Suggestion{{ID: "1", Name: "Dr. Sarah Johnson"}}, got)
		search.AssertExpectations(t)
	})

	t.Run("index failure falls back", func(t *testing.T) {
		search := &MockProviderSearchRepository{}
		search.On("Suggest", mock.Anything, "emily", 8).Return(nil, errors.New("timeout")).Once()
		svc := newDirectoryService(search, nil)

		got, err := svc.Suggest(ctx, "emily", 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "3", got[0].ID)
	})
}

func TestDirectoryService_Facets(t *testing.T) {
	svc := newDirectoryService(nil, nil)
	facets, err := svc.Facets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CO", "TX", "WA"}, facets.Values[entities.FacetState])
}

func TestDirectoryService_Import(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := bus.Subscribe(ctx, providers.EventChannelDirectory)
	require.NoError(t, err)

	search := &MockProviderSearchRepository{}
	search.On("Index", mock.Anything, mock.Anything).Return(errors.New("index down")).Once()
	svc := newDirectoryService(search, bus)

	incoming := []*entities.Provider{{ID: "9", Name: "Dr. New", Tier: entities.TierPremier}}
	require.NoError(t, svc.Import(ctx, incoming), "index failures do not fail an import")

	p, err := svc.GetByID(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, "Dr. New", p.Name)

	select {
	case event := <-updates:
		assert.Equal(t, entities.DirectoryEventReloaded, event.EventType)
		assert.Equal(t, []string{"9"}, event.ProviderIDs)
	case <-time.After(time.Second):
		t.Fatal("no directory event published")
	}

	assert.Error(t, svc.Import(ctx, []*entities.Provider{{Name: "no id"}}))
	search.AssertExpectations(t)
}
