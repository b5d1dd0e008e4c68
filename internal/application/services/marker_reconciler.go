package services

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

const (
	markerSize            = 30
	markerSizeHighlighted = 38
	userMarkerSize        = 24
	userMarkerColor       = "#4285F4"
)

var tierStyles = map[entities.Tier]struct{ color, label string }{
	entities.TierBasic:     {"#7C9699", "B"},
	entities.TierPreferred: {"#057A63", "P"},
	entities.TierPremier:   {"#FC7961", "★"},
}

// TierIcon returns the marker icon for a tier. Unknown tiers are drawn as basic.
func TierIcon(tier entities.Tier, highlighted bool) entities.MarkerIcon {
	style, ok := tierStyles[tier]
	if !ok {
		style = tierStyles[entities.TierBasic]
	}
	icon := entities.MarkerIcon{Color: style.color, Label: style.label, Size: markerSize}
	if highlighted {
		icon.Size = markerSizeHighlighted
		icon.Highlighted = true
	}
	return icon
}

// UserIcon returns the icon of the user location marker
func UserIcon() entities.MarkerIcon {
	return entities.MarkerIcon{Color: userMarkerColor, Size: userMarkerSize}
}

// ReconcileInput is the desired picture of the map
type ReconcileInput struct {
	Desired      []*entities.Provider
	SelectedID   string
	UserLocation *geo.Coordinate
}

// ReconcileStats counts what one reconcile pass did
type ReconcileStats struct {
	Created int  `json:"created"`
	Removed int  `json:"removed"`
	Updated int  `json:"updated"`
	Skipped int  `json:"skipped"`
	Panned  bool `json:"panned"`
}

// Reconcile brings the markers on adapter in line with input using a diff by
// provider id: stale markers are removed, new ones created, and markers that
// stay are only updated in place. Entries without a valid position are
// skipped. The given state is not modified; the returned state describes the
// map after the pass.
func Reconcile(adapter providers.MapAdapter, state entities.MarkerState, input ReconcileInput) (entities.MarkerState, ReconcileStats) {
	var stats ReconcileStats

	desired := make([]*entities.Provider, 0, len(input.Desired))
	wanted := make(map[string]*entities.Provider, len(input.Desired))
	seen := make(map[string]bool, len(input.Desired))
	for _, p := range input.Desired {
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if !p.HasValidPosition() {
			log.Warn().Str("provider_id", p.ID).Msg("skipping marker for provider without a valid position")
			stats.Skipped++
			continue
		}
		wanted[p.ID] = p
		desired = append(desired, p)
	}

	next := entities.MarkerState{
		Entries: make(map[string]entities.MarkerRecord, len(desired)),
		User:    state.User,
	}

	// removals first, in id order so the op stream is deterministic
	current := state.IDs()
	sort.Strings(current)
	for _, id := range current {
		if _, keep := wanted[id]; !keep {
			adapter.RemoveMarker(state.Entries[id].Handle)
			stats.Removed++
		}
	}

	for _, p := range desired {
		icon := TierIcon(p.Tier, p.ID == input.SelectedID)
		rec, exists := state.Entries[p.ID]
		if !exists {
			handle := adapter.CreateMarker(*p.Position, icon, entities.PopupFor(p))
			next.Entries[p.ID] = entities.MarkerRecord{Handle: handle, Position: *p.Position, Icon: icon}
			stats.Created++
			continue
		}

		changed := false
		if rec.Icon != icon {
			adapter.SetIcon(rec.Handle, icon)
			rec.Icon = icon
			changed = true
		}
		if rec.Position != *p.Position {
			adapter.SetPosition(rec.Handle, *p.Position)
			rec.Position = *p.Position
			changed = true
		}
		if changed {
			stats.Updated++
		}
		next.Entries[p.ID] = rec
	}

	next.User = reconcileUser(adapter, state.User, input.UserLocation)

	if sel, visible := next.Entries[input.SelectedID]; visible && input.SelectedID != "" {
		if input.SelectedID != state.SelectedID {
			adapter.PanTo(sel.Position, entities.SelectedZoom)
			stats.Panned = true
		}
		next.SelectedID = input.SelectedID
	}

	return next, stats
}

// reconcileUser handles the single user location marker independently of
// the provider markers.
func reconcileUser(adapter providers.MapAdapter, current *entities.UserMarker, location *geo.Coordinate) *entities.UserMarker {
	if location != nil && !location.Valid() {
		log.Warn().Float64("latitude", location.Latitude).Float64("longitude", location.Longitude).
			Msg("ignoring invalid user location")
		location = nil
	}

	switch {
	case location == nil && current == nil:
		return nil
	case location == nil:
		adapter.RemoveMarker(current.Handle)
		return nil
	case current == nil:
		handle := adapter.CreateMarker(*location, UserIcon(), nil)
		return &entities.UserMarker{Handle: handle, Position: *location}
	case current.Position != *location:
		adapter.SetPosition(current.Handle, *location)
		return &entities.UserMarker{Handle: current.Handle, Position: *location}
	default:
		return current
	}
}
