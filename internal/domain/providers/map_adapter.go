package providers

import (
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// MapAdapter is the marker surface of a map. The reconciler only talks to a
// map through it.
type MapAdapter interface {
	// CreateMarker adds a marker; popup is nil for the user marker
	CreateMarker(position geo.Coordinate, icon entities.MarkerIcon, popup *entities.MarkerPopup) entities.MarkerHandle
	RemoveMarker(handle entities.MarkerHandle)
	SetIcon(handle entities.MarkerHandle, icon entities.MarkerIcon)
	SetPosition(handle entities.MarkerHandle, position geo.Coordinate)
	// PanTo animates the view to position at zoom
	PanTo(position geo.Coordinate, zoom int)
}
