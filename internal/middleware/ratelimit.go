package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/hearth-app/backend/internal/ratelimit"
)

type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	exempt  map[string]struct{}
}

func NewRateLimitMiddleware(limiter *ratelimit.Limiter, exemptPaths []string) *RateLimitMiddleware {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}
	return &RateLimitMiddleware{limiter: limiter, exempt: exempt}
}

// Handler gates every request through the fixed-window counter. Exempt paths
// (health probes) bypass the counter regardless of its health.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		if !m.limiter.Allow(r.Context(), r.URL.Path, ClientAddress(r)) {
			windowSeconds := int(m.limiter.Window().Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(windowSeconds))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limiter.Limit()))
			w.Header().Set("X-RateLimit-Window", strconv.Itoa(windowSeconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientAddress resolves the client address for rate-limit bucketing: first
// entry of X-Forwarded-For, else the transport peer, else "unknown" (all
// unknown-origin clients then share a single bucket).
func ClientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
