package maps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

func TestOpRecorder_RecordsInOrder(t *testing.T) {
	r := NewOpRecorder("m")
	pos := geo.Coordinate{Latitude: 39.74, Longitude: -104.99}
	icon := entities.MarkerIcon{Color: "#057A63", Label: "P", Size: 30}

	h1 := r.CreateMarker(pos, icon, &entities.MarkerPopup{ProviderID: "1"})
	h2 := r.CreateMarker(pos, icon, nil)
	assert.NotEqual(t, h1, h2)

	r.SetIcon(h1, entities.MarkerIcon{Color: "#057A63", Label: "P", Size: 38, Highlighted: true})
	r.SetPosition(h2, geo.Coordinate{Latitude: 40, Longitude: -105})
	r.RemoveMarker(h2)
	r.PanTo(pos, entities.SelectedZoom)

	assert.Equal(t, map[entities.MapOpType]int{
		entities.MapOpCreate:      2,
		entities.MapOpSetIcon:     1,
		entities.MapOpSetPosition: 1,
		entities.MapOpRemove:      1,
		entities.MapOpPanTo:       1,
	}, r.Counts())

	ops := r.Drain()
	require.Len(t, ops, 6)
	assert.Equal(t, entities.MapOpCreate, ops[0].Op)
	assert.Equal(t, "1", ops[0].Popup.ProviderID)
	assert.Equal(t, entities.MapOpPanTo, ops[5].Op)
	assert.Equal(t, entities.SelectedZoom, ops[5].Zoom)

	assert.Empty(t, r.Drain())

	h3 := r.CreateMarker(pos, icon, nil)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h2, h3)
}
