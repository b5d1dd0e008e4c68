package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

const (
	defaultLookupURL   = "http://ip-api.com/json"
	defaultHTTPTimeout = 8 * time.Second
)

// IPLookupSource approximates a position from the client's IP address using
// an ip-api style JSON endpoint. Calls are rate limited and guarded by a
// circuit breaker.
type IPLookupSource struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

var _ providers.PositionSource = (*IPLookupSource)(nil)

// IPLookupOptions configures an IPLookupSource
type IPLookupOptions struct {
	BaseURL string
	// RatePerSecond bounds outgoing lookups; ip-api's free tier allows 45/minute
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type lookupOutcome struct {
	position geo.Coordinate
	failure  string
}

// NewIPLookupSource creates an IP lookup source
func NewIPLookupSource(opts IPLookupOptions) *IPLookupSource {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaultLookupURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 0.75
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ip-lookup",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &IPLookupSource{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		breaker:    breaker,
	}
}

func (s *IPLookupSource) Name() string { return "ip" }

// CurrentPosition looks up req.ClientIP
func (s *IPLookupSource) CurrentPosition(ctx context.Context, req entities.PositionRequest) (geo.Coordinate, error) {
	ip := net.ParseIP(strings.TrimSpace(req.ClientIP))
	if ip == nil {
		return geo.Coordinate{}, fmt.Errorf("%w: no client address", providers.ErrPositionUnavailable)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
		return geo.Coordinate{}, fmt.Errorf("%w: address %s is not routable", providers.ErrPositionUnavailable, ip)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return geo.Coordinate{}, contextError(ctxErr)
		}
		return geo.Coordinate{}, fmt.Errorf("%w: lookup rate exceeded", providers.ErrPositionUnavailable)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.lookup(ctx, ip.String())
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return geo.Coordinate{}, contextError(ctxErr)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return geo.Coordinate{}, fmt.Errorf("%w: lookup service circuit open", providers.ErrPositionUnavailable)
		}
		return geo.Coordinate{}, fmt.Errorf("%w: %v", providers.ErrPositionUnavailable, err)
	}

	outcome := result.(lookupOutcome)
	if outcome.failure != "" {
		return geo.Coordinate{}, fmt.Errorf("%w: %s", providers.ErrPositionUnavailable, outcome.failure)
	}
	return outcome.position, nil
}

// lookup performs the HTTP call. A well-formed "fail" answer is an outcome,
// not an error, so it does not count against the breaker.
func (s *IPLookupSource) lookup(ctx context.Context, ip string) (lookupOutcome, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=%s", s.baseURL, url.PathEscape(ip), url.QueryEscape("status,message,lat,lon"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return lookupOutcome{}, err
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return lookupOutcome{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return lookupOutcome{}, fmt.Errorf("lookup returned status %d", resp.StatusCode)
	}

	var body ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return lookupOutcome{}, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	if body.Status != "success" {
		msg := body.Message
		if msg == "" {
			msg = "lookup failed"
		}
		return lookupOutcome{failure: msg}, nil
	}

	pos := geo.Coordinate{Latitude: body.Lat, Longitude: body.Lon}
	if !pos.Valid() {
		return lookupOutcome{failure: "lookup returned invalid coordinates"}, nil
	}
	return lookupOutcome{position: pos}, nil
}
