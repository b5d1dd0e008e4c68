package geolocation

import (
	"context"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// StaticSource always reports the same configured position. Used for kiosks
// and local development.
type StaticSource struct {
	position geo.Coordinate
}

var _ providers.PositionSource = (*StaticSource)(nil)

// NewStaticSource creates a source fixed at position
func NewStaticSource(position geo.Coordinate) *StaticSource {
	return &StaticSource{position: position}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) CurrentPosition(ctx context.Context, req entities.PositionRequest) (geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, contextError(err)
	}
	if !s.position.Valid() {
		return geo.Coordinate{}, providers.ErrPositionUnavailable
	}
	return s.position, nil
}
