package database

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	apperrors "github.com/zatekoja/providerdirectory/pkg/errors"
)

// SeedFile is the layout of the YAML directory seed
type SeedFile struct {
	Providers []*entities.Provider `yaml:"providers"`
}

// LoadSeedFile reads providers from a YAML seed. Entries without an id are
// dropped, and for duplicate ids the first entry wins.
func LoadSeedFile(path string) ([]*entities.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed parses a YAML seed document
func ParseSeed(data []byte) ([]*entities.Provider, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	seen := make(map[string]bool, len(seed.Providers))
	out := make([]*entities.Provider, 0, len(seed.Providers))
	for i, p := range seed.Providers {
		if p == nil || p.ID == "" {
			log.Warn().Int("index", i).Msg("skipping seed entry without id")
			continue
		}
		if seen[p.ID] {
			log.Warn().Str("provider_id", p.ID).Msg("skipping duplicate seed entry")
			continue
		}
		if p.Position != nil && !p.Position.Valid() {
			log.Warn().Str("provider_id", p.ID).
				Float64("latitude", p.Position.Latitude).
				Float64("longitude", p.Position.Longitude).
				Msg("seed entry has an invalid position; it will not be mapped")
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

// StaticProviderAdapter serves the directory from memory, typically loaded
// from the YAML seed.
type StaticProviderAdapter struct {
	mu        sync.RWMutex
	providers map[string]*entities.Provider
}

var _ repositories.ProviderRepository = (*StaticProviderAdapter)(nil)

// NewStaticProviderAdapter creates an adapter holding list
func NewStaticProviderAdapter(list []*entities.Provider) *StaticProviderAdapter {
	a := &StaticProviderAdapter{providers: make(map[string]*entities.Provider, len(list))}
	for _, p := range list {
		if _, exists := a.providers[p.ID]; !exists {
			a.providers[p.ID] = p
		}
	}
	return a
}

// NewStaticProviderAdapterFromFile loads the adapter from a YAML seed file
func NewStaticProviderAdapterFromFile(path string) (*StaticProviderAdapter, error) {
	list, err := LoadSeedFile(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("providers", len(list)).Msg("loaded directory seed")
	return NewStaticProviderAdapter(list), nil
}

// List returns providers ordered by id
func (a *StaticProviderAdapter) List(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*entities.Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if !filter.IncludeUnlisted && !p.IsListed() {
			continue
		}
		if filter.Bounds != nil && (!p.HasValidPosition() || !filter.Bounds.Contains(*p.Position)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByID retrieves a listed provider by ID
func (a *StaticProviderAdapter) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.providers[id]
	if !ok || !p.IsListed() {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", id))
	}
	return p, nil
}

// GetByIDs retrieves listed providers in the order of ids
func (a *StaticProviderAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*entities.Provider, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if p, ok := a.providers[id]; ok && p.IsListed() && !seen[id] {
			out = append(out, p)
			seen[id] = true
		}
	}
	return out, nil
}

// Upsert replaces providers by ID
func (a *StaticProviderAdapter) Upsert(ctx context.Context, list []*entities.Provider) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range list {
		if p == nil || p.ID == "" {
			return apperrors.NewValidationError("provider id is required")
		}
		a.providers[p.ID] = p
	}
	return nil
}
