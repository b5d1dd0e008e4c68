package providers

import (
	"context"
	"errors"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// Errors a PositionSource returns to classify a failed lookup. Any other
// error is treated as the position being unavailable.
var (
	ErrPermissionDenied    = errors.New("position permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrPositionTimeout     = errors.New("position request timed out")
	ErrPositionUnsupported = errors.New("position lookup unsupported")
)

// PositionSource is a capability that can determine where a user is
type PositionSource interface {
	// CurrentPosition returns the position for req. Implementations must
	// honour ctx cancellation.
	CurrentPosition(ctx context.Context, req entities.PositionRequest) (geo.Coordinate, error)

	// Name identifies the source in logs
	Name() string
}
