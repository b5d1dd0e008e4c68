// Package maps holds MapAdapter implementations.
package maps

import (
	"fmt"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// OpRecorder is a MapAdapter for a browser map driven over HTTP. It assigns
// marker handles and records every call as a MapOp; the client replays the
// ops against its Leaflet layer in order.
type OpRecorder struct {
	prefix string
	next   uint64
	ops    []entities.MapOp
}

var _ providers.MapAdapter = (*OpRecorder)(nil)

// NewOpRecorder creates a recorder whose handles start with prefix
func NewOpRecorder(prefix string) *OpRecorder {
	return &OpRecorder{prefix: prefix}
}

// CreateMarker records a marker creation and returns its new handle
func (r *OpRecorder) CreateMarker(position geo.Coordinate, icon entities.MarkerIcon, popup *entities.MarkerPopup) entities.MarkerHandle {
	r.next++
	handle := entities.MarkerHandle(fmt.Sprintf("%s%d", r.prefix, r.next))
	r.ops = append(r.ops, entities.MapOp{
		Op:       entities.MapOpCreate,
		Handle:   handle,
		Position: &position,
		Icon:     &icon,
		Popup:    popup,
	})
	return handle
}

func (r *OpRecorder) RemoveMarker(handle entities.MarkerHandle) {
	r.ops = append(r.ops, entities.MapOp{Op: entities.MapOpRemove, Handle: handle})
}

func (r *OpRecorder) SetIcon(handle entities.MarkerHandle, icon entities.MarkerIcon) {
	r.ops = append(r.ops, entities.MapOp{Op: entities.MapOpSetIcon, Handle: handle, Icon: &icon})
}

func (r *OpRecorder) SetPosition(handle entities.MarkerHandle, position geo.Coordinate) {
	r.ops = append(r.ops, entities.MapOp{Op: entities.MapOpSetPosition, Handle: handle, Position: &position})
}

func (r *OpRecorder) PanTo(position geo.Coordinate, zoom int) {
	r.ops = append(r.ops, entities.MapOp{Op: entities.MapOpPanTo, Position: &position, Zoom: zoom})
}

// Drain returns the ops recorded since the last Drain and clears them.
// Handle numbering continues across drains.
func (r *OpRecorder) Drain() []entities.MapOp {
	ops := r.ops
	r.ops = nil
	if ops == nil {
		return []entities.MapOp{}
	}
	return ops
}

// Counts tallies pending ops by type
func (r *OpRecorder) Counts() map[entities.MapOpType]int {
	counts := make(map[entities.MapOpType]int)
	for _, op := range r.ops {
		counts[op.Op]++
	}
	return counts
}
