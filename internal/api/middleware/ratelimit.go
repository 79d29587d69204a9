package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/eoex/internal/api/response"
	"github.com/kiranshivaraju/eoex/internal/cache"
	"github.com/kiranshivaraju/eoex/internal/observability"
)

const (
	defaultRequestsPerMinute = 60
	rateLimitWindow          = time.Minute
)

// KeyFunc extracts the rate-limit subject from a request. ok=false skips
// limiting for that request.
type KeyFunc func(r *http.Request) (subject string, ok bool)

// ByUser keys on the authenticated user id.
func ByUser(r *http.Request) (string, bool) {
	ac, ok := GetAuthContext(r)
	if !ok {
		return "", false
	}
	return ac.UserID.String(), true
}

// ByClientIP keys on the remote address without its port.
func ByClientIP(r *http.Request) (string, bool) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host, host != ""
}

// RateLimit provides fixed-window rate limiting via Redis.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
	now            func() time.Time
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin, now: time.Now}
}

// Limit returns middleware counting requests per subject within scope.
func (rl *RateLimit) Limit(scope string, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := key(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			now := rl.now()
			count, err := rl.cache.IncrWithExpiry(r.Context(),
				cache.RateLimitKey(scope, subject, rateLimitWindow, now), rateLimitWindow)
			if err != nil {
				// On Redis error, allow the request (fail open)
				next.ServeHTTP(w, r)
				return
			}

			remaining := rl.requestsPerMin - int(count)
			if remaining < 0 {
				remaining = 0
			}
			reset := now.Truncate(rateLimitWindow).Add(rateLimitWindow)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if count > int64(rl.requestsPerMin) {
				observability.RateLimitRejectedTotal.WithLabelValues(scope).Inc()
				retryAfter := int(reset.Sub(now).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				response.Error(w, http.StatusTooManyRequests,
					"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
