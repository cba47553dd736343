package middleware

import (
	"math"
	"net"
	"net/http"

	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/ratelimit"
)

// Key requests by client address
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Reject requests over the limit with 429
// If limiter is unavailable request is let through
func RateLimitMiddleware(limiter ratelimit.Limiter, scope string, l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + ClientIP(r)

			allowed, retryAfter, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.FromContext(r.Context(), l).Warn("rate limiter unavailable", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				seconds := max(1, int(math.Ceil(retryAfter.Seconds())))
				render.TooManyRequests(w, seconds)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
