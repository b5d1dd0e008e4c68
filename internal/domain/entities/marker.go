package entities

import (
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// Default map viewport for a new session (continental US)
var DefaultMapCenter = geo.Coordinate{Latitude: 39.8283, Longitude: -98.5795}

const (
	DefaultMapZoom = 4
	// SelectedZoom is the zoom level used when flying to a selected provider
	SelectedZoom = 14
)

// MarkerHandle identifies a marker inside a map adapter
type MarkerHandle string

// MarkerIcon describes how a marker is drawn
type MarkerIcon struct {
	Color       string `json:"color"`
	Label       string `json:"label"`
	Size        int    `json:"size"`
	Highlighted bool   `json:"highlighted,omitempty"`
}

// MarkerPopup is the content bound to a provider marker
type MarkerPopup struct {
	ProviderID  string `json:"provider_id"`
	Name        string `json:"name"`
	Credentials string `json:"credentials,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
	Practice    string `json:"practice,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Tier        Tier   `json:"tier"`

	// Rating is omitted for unrated providers
	Rating       float64 `json:"rating,omitempty"`
	TotalReviews int     `json:"total_reviews,omitempty"`
	Verified     bool    `json:"verified,omitempty"`
}

// PopupFor builds the popup content for p
func PopupFor(p *Provider) *MarkerPopup {
	return &MarkerPopup{
		ProviderID:   p.ID,
		Name:         p.Name,
		Credentials:  p.Credentials,
		Specialty:    p.Specialty,
		Practice:     p.Practice,
		City:         p.Address.City,
		State:        p.Address.State,
		Phone:        p.Phone,
		Tier:         p.Tier,
		Rating:       p.Rating,
		TotalReviews: p.TotalReviews,
		Verified:     p.IsVerified,
	}
}

// MarkerRecord is one live provider marker
type MarkerRecord struct {
	Handle   MarkerHandle
	Position geo.Coordinate
	Icon     MarkerIcon
}

// UserMarker is the marker for the user's own location
type UserMarker struct {
	Handle   MarkerHandle
	Position geo.Coordinate
}

// MarkerState is the map-side projection of a result list. After each
// reconcile the Entries key set equals the visible provider ids.
type MarkerState struct {
	Entries    map[string]MarkerRecord
	User       *UserMarker
	SelectedID string
}

// NewMarkerState returns an empty state
func NewMarkerState() MarkerState {
	return MarkerState{Entries: make(map[string]MarkerRecord)}
}

// IDs returns the ids of every provider marker, in no particular order
func (s MarkerState) IDs() []string {
	ids := make([]string, 0, len(s.Entries))
	for id := range s.Entries {
		ids = append(ids, id)
	}
	return ids
}

// MapOpType names one marker operation
type MapOpType string

const (
	MapOpCreate      MapOpType = "create"
	MapOpRemove      MapOpType = "remove"
	MapOpSetIcon     MapOpType = "set_icon"
	MapOpSetPosition MapOpType = "set_position"
	MapOpPanTo       MapOpType = "pan_to"
)

// MapOp is one marker operation for the browser map to replay, in order
type MapOp struct {
	Op       MapOpType       `json:"op"`
	Handle   MarkerHandle    `json:"handle,omitempty"`
	Position *geo.Coordinate `json:"position,omitempty"`
	Icon     *MarkerIcon     `json:"icon,omitempty"`
	Popup    *MarkerPopup    `json:"popup,omitempty"`
	Zoom     int             `json:"zoom,omitempty"`
}
