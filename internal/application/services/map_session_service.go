package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/providerdirectory/pkg/errors"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// RecordingMapAdapter is a MapAdapter whose calls can be collected and sent
// to a remote map.
type RecordingMapAdapter interface {
	providers.MapAdapter
	Drain() []entities.MapOp
}

// MapSessionOptions configures a MapSessionService
type MapSessionOptions struct {
	TTL         time.Duration
	MaxSessions int
	// NewAdapter builds the adapter for a new session
	NewAdapter func(sessionID string) RecordingMapAdapter
}

type mapSession struct {
	mu      sync.Mutex
	adapter RecordingMapAdapter
	state   entities.MarkerState
	closed  bool
}

// MapSession describes a newly opened map
type MapSession struct {
	ID     string         `json:"id"`
	Center geo.Coordinate `json:"center"`
	Zoom   int            `json:"zoom"`
}

// MapReconcileRequest is the desired view of one map
type MapReconcileRequest struct {
	Filters    entities.FilterState `json:"filters"`
	SelectedID string               `json:"selected_id,omitempty"`
	// UserLocation defaults to Filters.Location
	UserLocation *geo.Coordinate `json:"user_location,omitempty" validate:"omitempty"`
}

// MapReconcileResult carries the marker operations for the client to replay
// along with the providers behind them.
type MapReconcileResult struct {
	SessionID string                   `json:"session_id"`
	Ops       []entities.MapOp         `json:"ops"`
	Stats     ReconcileStats           `json:"stats"`
	Providers []entities.ProviderMatch `json:"providers"`
	Total     int                      `json:"total"`
}

// MapSessionService owns the marker state of every open browser map. Each
// session serialises its own reconcile passes.
type MapSessionService struct {
	directory  *DirectoryService
	sessions   *expirable.LRU[string, *mapSession]
	newAdapter func(sessionID string) RecordingMapAdapter
	metrics    *observability.Metrics
}

// NewMapSessionService creates a map session service
func NewMapSessionService(directory *DirectoryService, opts MapSessionOptions, metrics *observability.Metrics) *MapSessionService {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 5000
	}

	return &MapSessionService{
		directory:  directory,
		sessions:   expirable.NewLRU[string, *mapSession](opts.MaxSessions, nil, opts.TTL),
		newAdapter: opts.NewAdapter,
		metrics:    metrics,
	}
}

// Open starts a session with an empty map at the default viewport
func (s *MapSessionService) Open(ctx context.Context) (*MapSession, error) {
	if s.newAdapter == nil {
		return nil, apperrors.NewUnavailableError("map sessions are not configured", nil)
	}

	id := uuid.NewString()
	s.sessions.Add(id, &mapSession{
		adapter: s.newAdapter(id),
		state:   entities.NewMarkerState(),
	})

	log.Debug().Str("session_id", id).Msg("map session opened")
	return &MapSession{ID: id, Center: entities.DefaultMapCenter, Zoom: entities.DefaultMapZoom}, nil
}

// Reconcile runs the directory search for req and diffs the session's
// markers against the result.
func (s *MapSessionService) Reconcile(ctx context.Context, sessionID string, req MapReconcileRequest) (*MapReconcileResult, error) {
	ctx, span := observability.StartSpan(ctx, "MapSessionService.Reconcile")
	defer span.End()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("map session %s not found", sessionID))
	}

	filtered, err := s.directory.Filter(ctx, req.Filters)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	userLocation := req.UserLocation
	if userLocation == nil {
		userLocation = req.Filters.Location
	}

	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("map session %s not found", sessionID))
	}
	next, stats := Reconcile(session.adapter, session.state, ReconcileInput{
		Desired:      filtered,
		SelectedID:   req.SelectedID,
		UserLocation: userLocation,
	})
	session.state = next
	ops := session.adapter.Drain()
	// refresh the expiry while Close is held off
	s.sessions.Add(sessionID, session)
	session.mu.Unlock()

	counts := make(map[entities.MapOpType]int)
	for _, op := range ops {
		counts[op.Op]++
	}
	for op, n := range counts {
		observability.RecordMarkerOps(ctx, s.metrics, string(op), n)
	}
	observability.ComponentLogger(ctx, "map_sessions").Debug().
		Str("session_id", sessionID).
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("removed", stats.Removed).
		Int("skipped", stats.Skipped).
		Msg("markers reconciled")

	return &MapReconcileResult{
		SessionID: sessionID,
		Ops:       ops,
		Stats:     stats,
		Providers: DistancesFrom(filtered, req.Filters.Location),
		Total:     len(filtered),
	}, nil
}

// Close drops a session and reports whether it existed
func (s *MapSessionService) Close(sessionID string) bool {
	session, ok := s.sessions.Peek(sessionID)
	if !ok {
		return false
	}
	session.mu.Lock()
	session.closed = true
	session.mu.Unlock()
	return s.sessions.Remove(sessionID)
}

// Len reports the number of open sessions
func (s *MapSessionService) Len() int {
	return s.sessions.Len()
}
