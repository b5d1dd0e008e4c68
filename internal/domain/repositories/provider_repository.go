package repositories

import (
	"context"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// ProviderRepository is the directory's data provider
type ProviderRepository interface {
	// List retrieves listed providers, optionally narrowed by a bounding box
	List(ctx context.Context, filter ProviderFilter) ([]*entities.Provider, error)

	// GetByID retrieves a provider by ID. Returns a not found error when absent.
	GetByID(ctx context.Context, id string) (*entities.Provider, error)

	// GetByIDs retrieves providers by ID, skipping ids that do not exist
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error)

	// Upsert inserts or replaces providers by ID
	Upsert(ctx context.Context, providers []*entities.Provider) error
}

// ProviderSearchRepository is the suggestion index (e.g. Typesense)
type ProviderSearchRepository interface {
	// Suggest returns providers whose name, specialty or practice starts with prefix
	Suggest(ctx context.Context, prefix string, limit int) ([]entities.Suggestion, error)

	// Index adds or replaces providers in the index
	Index(ctx context.Context, providers []*entities.Provider) error

	// Delete removes a provider from the index
	Delete(ctx context.Context, id string) error
}

// ProviderFilter narrows a List call. A nil Bounds loads every provider;
// with Bounds set, providers without a position are excluded.
type ProviderFilter struct {
	Bounds          *geo.Bounds
	IncludeUnlisted bool
}
