package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/providerdirectory/internal/api/loaders"
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
)

// maxBatchIDs bounds one batch lookup
const maxBatchIDs = 100

// DirectoryService is the directory behaviour the HTTP layer needs
type DirectoryService interface {
	Search(ctx context.Context, state entities.FilterState) (*entities.SearchResult, error)
	GetByID(ctx context.Context, id string) (*entities.Provider, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error)
	Facets(ctx context.Context) (*entities.FacetValues, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]entities.Suggestion, error)
}

// DirectoryHandler handles provider directory requests
type DirectoryHandler struct {
	service DirectoryService
}

// NewDirectoryHandler creates a new directory handler
func NewDirectoryHandler(service DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

// SearchProviders handles GET /api/providers
func (h *DirectoryHandler) SearchProviders(w http.ResponseWriter, r *http.Request) {
	state, err := ParseFilterState(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.service.Search(r.Context(), state)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetFacets handles GET /api/providers/facets
func (h *DirectoryHandler) GetFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := h.service.Facets(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, facets)
}

// SuggestProviders handles GET /api/providers/suggest?q=&limit=
func (h *DirectoryHandler) SuggestProviders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	suggestions, err := h.service.Suggest(r.Context(), strings.TrimSpace(query.Get("q")), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// BatchProviders handles GET /api/providers/batch?ids=1,2,3. Ids that do not
// exist are left out of the response.
func (h *DirectoryHandler) BatchProviders(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query()["ids"])
	if len(ids) == 0 {
		respondWithError(w, http.StatusBadRequest, "ids parameter is required")
		return
	}
	if len(ids) > maxBatchIDs {
		respondWithError(w, http.StatusBadRequest, "too many ids")
		return
	}

	var (
		list []*entities.Provider
		err  error
	)
	if l := loaders.For(r.Context()); l != nil {
		list, err = l.LoadProviders(r.Context(), ids)
	} else {
		list, err = h.service.GetByIDs(r.Context(), ids)
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"providers": list,
		"count":     len(list),
	})
}

// GetProvider handles GET /api/providers/{id}. The profile carries its
// reviews and a rating summary.
func (h *DirectoryHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "provider ID is required")
		return
	}

	var (
		provider *entities.Provider
		err      error
	)
	if l := loaders.For(r.Context()); l != nil {
		provider, err = l.ProviderLoader.Load(r.Context(), id)()
	} else {
		provider, err = h.service.GetByID(r.Context(), id)
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, entities.NewProviderDetail(provider))
}

// splitIDs flattens repeated and comma separated ids, keeping first
// occurrences in order.
func splitIDs(raw []string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, value := range raw {
		for _, id := range strings.Split(value, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
