package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/providerdirectory/internal/application/services"
)

// MapSessionService owns the marker state of open maps
type MapSessionService interface {
	Open(ctx context.Context) (*services.MapSession, error)
	Reconcile(ctx context.Context, sessionID string, req services.MapReconcileRequest) (*services.MapReconcileResult, error)
	Close(sessionID string) bool
}

// MapHandler handles map session requests
type MapHandler struct {
	sessions MapSessionService
}

// NewMapHandler creates a new map handler
func NewMapHandler(sessions MapSessionService) *MapHandler {
	return &MapHandler{sessions: sessions}
}

// OpenSession handles POST /api/map/sessions
func (h *MapHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Open(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, session)
}

// ReconcileSession handles POST /api/map/sessions/{id}/reconcile
func (h *MapHandler) ReconcileSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	var req services.MapReconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if err := ValidateFilterState(req.Filters); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.UserLocation != nil {
		if err := validate.Struct(*req.UserLocation); err != nil {
			respondWithAppError(w, r, err)
			return
		}
	}

	result, err := h.sessions.Reconcile(r.Context(), id, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// CloseSession handles DELETE /api/map/sessions/{id}
func (h *MapHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(r.PathValue("id")) {
		respondWithError(w, http.StatusNotFound, "map session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
