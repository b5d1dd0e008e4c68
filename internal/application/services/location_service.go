package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/observability"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

const (
	defaultLocationTimeout   = 10 * time.Second
	defaultLocationMaxAge    = 5 * time.Minute
	defaultLocationCacheSize = 10000
)

// LocationOptions configures a LocationService
type LocationOptions struct {
	// Timeout bounds a single position request
	Timeout time.Duration
	// MaxAge is how long a previous fix is reused before a fresh request is needed
	MaxAge    time.Duration
	CacheSize int
}

type locationFix struct {
	position   geo.Coordinate
	acquiredAt time.Time
}

// keyState tracks lookups in flight for one key. gen moves on whenever a
// newer lookup starts or the key is cleared; only the lookup holding the
// current gen may touch the stored fix.
type keyState struct {
	gen      uint64
	inflight int
}

// LocationService turns a PositionSource into classified location results.
// Successful fixes are remembered per key for MaxAge, and concurrent requests
// for one key share a single lookup unless they carry a client report. The
// most recently started lookup decides the stored fix: a failure drops it.
// There is no automatic retry.
type LocationService struct {
	source  providers.PositionSource
	timeout time.Duration
	fixes   *expirable.LRU[string, locationFix]
	group   singleflight.Group
	metrics *observability.Metrics
	now     func() time.Time

	mu   sync.Mutex
	keys map[string]*keyState
}

// NewLocationService creates a location service. A nil source reports every
// request as unsupported.
func NewLocationService(source providers.PositionSource, opts LocationOptions, metrics *observability.Metrics) *LocationService {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLocationTimeout
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultLocationMaxAge
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultLocationCacheSize
	}

	return &LocationService{
		source:  source,
		timeout: opts.Timeout,
		fixes:   expirable.NewLRU[string, locationFix](opts.CacheSize, nil, opts.MaxAge),
		metrics: metrics,
		now:     time.Now,
		keys:    make(map[string]*keyState),
	}
}

// SourceName names the configured capability, or "none"
func (s *LocationService) SourceName() string {
	if s.source == nil {
		return "none"
	}
	return s.source.Name()
}

// RequestLocation resolves the caller's position. It never returns an error:
// failures come back as a result with a reason and a user-facing message.
//
// A fix younger than MaxAge is reused unless req.Refresh is set or the
// request carries a new client report.
func (s *LocationService) RequestLocation(ctx context.Context, req entities.PositionRequest) entities.LocationResult {
	ctx, span := observability.StartSpan(ctx, "LocationService.RequestLocation")
	defer span.End()

	if s.source == nil {
		return s.record(ctx, entities.LocationFailure(entities.LocationUnsupported))
	}

	if req.Key != "" && !req.Refresh && req.Report == nil {
		if fix, ok := s.fixes.Get(req.Key); ok {
			return s.record(ctx, entities.LocationSuccess(fix.position, fix.acquiredAt, true))
		}
	}

	// a client report is already the answer; sharing a flight would hand one
	// report's outcome to another
	if req.Key == "" || req.Report != nil {
		return s.record(ctx, s.lookup(ctx, req))
	}

	ch := s.group.DoChan(req.Key, func() (interface{}, error) {
		// detached from the first caller so a cancelled caller does not fail the others
		return s.lookup(context.WithoutCancel(ctx), req), nil
	})

	select {
	case res := <-ch:
		return s.record(ctx, res.Val.(entities.LocationResult))
	case <-ctx.Done():
		return s.record(ctx, entities.LocationFailure(classifyPositionError(ctx.Err())))
	}
}

// ClearLocation forgets the fix held for key and reports whether one existed.
// Lookups still running for key can no longer store their result.
func (s *LocationService) ClearLocation(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.keys[key]; ok {
		st.gen++
	}
	s.group.Forget(key)
	return s.fixes.Remove(key)
}

func (s *LocationService) lookup(ctx context.Context, req entities.PositionRequest) entities.LocationResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	gen := s.begin(req.Key)

	position, err := s.source.CurrentPosition(ctx, req)
	if err == nil && !position.Valid() {
		err = providers.ErrPositionUnavailable
	}
	if err != nil {
		reason := classifyPositionError(err)
		log.Debug().Err(err).
			Str("source", s.source.Name()).
			Str("reason", string(reason)).
			Msg("location request failed")
		s.finish(req.Key, gen, nil)
		return entities.LocationFailure(reason)
	}

	fix := locationFix{position: position, acquiredAt: s.now()}
	s.finish(req.Key, gen, &fix)
	return entities.LocationSuccess(position, fix.acquiredAt, false)
}

// begin registers a lookup for key and returns its generation
func (s *LocationService) begin(key string) uint64 {
	if key == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.keys[key]
	if !ok {
		st = &keyState{}
		s.keys[key] = st
	}
	st.gen++
	st.inflight++
	return st.gen
}

// finish stores fix for key, or drops the held fix when the lookup failed.
// A lookup overtaken by a newer one or by ClearLocation changes nothing.
func (s *LocationService) finish(key string, gen uint64, fix *locationFix) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.keys[key]
	current := st.gen == gen
	st.inflight--
	if st.inflight == 0 {
		delete(s.keys, key)
	}
	if !current {
		log.Debug().Str("key", key).Msg("discarding superseded location result")
		return
	}

	if fix != nil {
		s.fixes.Add(key, *fix)
	} else {
		s.fixes.Remove(key)
	}
}

func (s *LocationService) record(ctx context.Context, result entities.LocationResult) entities.LocationResult {
	outcome := "ok"
	if !result.OK {
		outcome = string(result.Reason)
	}
	observability.RecordLocationOutcome(ctx, s.metrics, s.SourceName(), outcome, result.Cached)
	return result
}

// classifyPositionError maps a capability error onto a failure reason.
// Anything unrecognised counts as unavailable.
func classifyPositionError(err error) entities.LocationFailureReason {
	switch {
	case errors.Is(err, providers.ErrPermissionDenied):
		return entities.LocationPermissionDenied
	case errors.Is(err, providers.ErrPositionUnsupported):
		return entities.LocationUnsupported
	case errors.Is(err, providers.ErrPositionTimeout), errors.Is(err, context.DeadlineExceeded):
		return entities.LocationTimeout
	default:
		return entities.LocationUnavailable
	}
}
