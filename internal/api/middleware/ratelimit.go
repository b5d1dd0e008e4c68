package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// IPRateLimiter manages per-IP rate limiters. The least recently seen clients
// are forgotten once maxTrackedClients is reached.
type IPRateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

// NewIPRateLimiter creates a limiter allowing r requests per second per IP
func NewIPRateLimiter(r float64, burst int) *IPRateLimiter {
	limiters, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	if burst <= 0 {
		burst = 1
	}
	return &IPRateLimiter{
		limiters: limiters,
		rate:     rate.Limit(r),
		burst:    burst,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	if limiter, ok := i.limiters.Get(ip); ok {
		return limiter
	}
	limiter := rate.NewLimiter(i.rate, i.burst)
	if existing, ok, _ := i.limiters.PeekOrAdd(ip, limiter); ok {
		return existing
	}
	return limiter
}

// Middleware rejects requests over the client's budget with 429
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !i.getLimiter(ip).Allow() {
			log.Warn().Str("remote_ip", ip).Str("path", r.URL.Path).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For address, or the remote address
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
