package loaders

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	apperrors "github.com/zatekoja/providerdirectory/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains the request-scoped dataloaders
type Loaders struct {
	ProviderLoader *dataloader.Loader[string, *entities.Provider]
}

// NewLoaders creates loaders that batch provider lookups into GetByIDs calls
func NewLoaders(providerRepo repositories.ProviderRepository) *Loaders {
	return &Loaders{
		ProviderLoader: dataloader.NewBatchedLoader(
			func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Provider] {
				results := make([]*dataloader.Result[*entities.Provider], len(keys))
				list, err := providerRepo.GetByIDs(ctx, keys)

				byID := make(map[string]*entities.Provider, len(list))
				if err == nil {
					for _, p := range list {
						byID[p.ID] = p
					}
				}

				for i, key := range keys {
					if err != nil {
						results[i] = &dataloader.Result[*entities.Provider]{Error: err}
					} else if p, ok := byID[key]; ok {
						results[i] = &dataloader.Result[*entities.Provider]{Data: p}
					} else {
						results[i] = &dataloader.Result[*entities.Provider]{Error: apperrors.NewNotFoundError("provider " + key + " not found")}
					}
				}
				return results
			},
			dataloader.WithWait[string, *entities.Provider](2*time.Millisecond),
			dataloader.WithBatchCapacity[string, *entities.Provider](100),
		),
	}
}

// LoadProviders resolves ids through the loader, dropping ids that were not
// found. Any other failure is returned.
func (l *Loaders) LoadProviders(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	data, errs := l.ProviderLoader.LoadMany(ctx, ids)()

	out := make([]*entities.Provider, 0, len(data))
	for i, p := range data {
		if i < len(errs) && errs[i] != nil {
			if apperrors.IsNotFound(errs[i]) {
				continue
			}
			return nil, errs[i]
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches fresh loaders to every request so batches and their
// cache never outlive one request.
func Middleware(providerRepo repositories.ProviderRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(providerRepo))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
