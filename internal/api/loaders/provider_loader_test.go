package loaders

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/adapters/database"
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
)

type countingRepository struct {
	repositories.ProviderRepository
	batches int32
	fail    bool
}

func (c *countingRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	atomic.AddInt32(&c.batches, 1)
	if c.fail {
		return nil, errors.New("database unavailable")
	}
	return c.ProviderRepository.GetByIDs(ctx, ids)
}

func newRepo() *countingRepository {
	return &countingRepository{ProviderRepository: database.NewStaticProviderAdapter([]*entities.Provider{
		{ID: "1", Name: "One"},
		{ID: "2", Name: "Two"},
		{ID: "3", Name: "Three"},
	})}
}

func TestLoadProviders(t *testing.T) {
	repo := newRepo()
	l := NewLoaders(repo)

	list, err := l.LoadProviders(context.Background(), []string{"3", "missing", "1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "3", list[0].ID)
	assert.Equal(t, "1", list[1].ID)
	assert.LessOrEqual(t, atomic.LoadInt32(&repo.batches), int32(2), "lookups are batched")
}

func TestLoadProviders_RepositoryError(t *testing.T) {
	repo := newRepo()
	repo.fail = true

	_, err := NewLoaders(repo).LoadProviders(context.Background(), []string{"1"})
	assert.Error(t, err)
}

func TestMiddlewareAttachesLoaders(t *testing.T) {
	var seen *Loaders
	handler := Middleware(newRepo())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = For(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotNil(t, seen)
	assert.Nil(t, For(context.Background()))
}
