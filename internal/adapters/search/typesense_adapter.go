package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	tsclient "github.com/zatekoja/providerdirectory/internal/infrastructure/clients/typesense"
)

const collectionName = tsclient.ProvidersCollection

// TypesenseAdapter implements provider suggestions using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.ProviderSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts providers into the index
func (a *TypesenseAdapter) Index(ctx context.Context, providers []*entities.Provider) error {
	for _, p := range providers {
		if _, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, providerDocument(p)); err != nil {
			return fmt.Errorf("failed to index provider %s: %w", p.ID, err)
		}
	}
	return nil
}

// Delete removes a provider from index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	if _, err := a.client.Client().Collection(collectionName).Document(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete provider from index: %w", err)
	}
	return nil
}

// Suggest returns providers matching prefix, best search priority first
func (a *TypesenseAdapter) Suggest(ctx context.Context, prefix string, limit int) ([]entities.Suggestion, error) {
	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(strings.TrimSpace(prefix)),
		QueryBy: pointer.String("name,specialty,practice,specializations"),
		SortBy:  pointer.String("_text_match:desc,search_priority:desc"),
		PerPage: pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search providers: %w", err)
	}

	suggestions := []entities.Suggestion{}
	if result.Hits == nil {
		return suggestions, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if s, ok := suggestionFromDocument(*hit.Document); ok {
			suggestions = append(suggestions, s)
		}
	}
	return suggestions, nil
}

func providerDocument(p *entities.Provider) map[string]interface{} {
	doc := map[string]interface{}{
		"id":              p.ID,
		"name":            p.Name,
		"specialty":       p.Specialty,
		"practice":        p.Practice,
		"city":            p.Address.City,
		"state":           p.Address.State,
		"tier":            string(p.Tier),
		"specializations": nonNilStrings(p.Specializations),
		"search_priority": p.SearchPriority,
		"rating":          p.Rating,
		"is_verified":     p.IsVerified,
	}
	if p.HasValidPosition() {
		doc["location"] = []float64{p.Position.Latitude, p.Position.Longitude}
	}
	return doc
}

func suggestionFromDocument(doc map[string]interface{}) (entities.Suggestion, bool) {
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return entities.Suggestion{}, false
	}
	str := func(key string) string {
		v, _ := doc[key].(string)
		return v
	}
	return entities.Suggestion{
		ID:        id,
		Name:      str("name"),
		Specialty: str("specialty"),
		City:      str("city"),
		State:     str("state"),
	}, true
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
