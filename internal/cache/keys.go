package cache

import (
	"fmt"
	"time"
)

// RateLimitKey names the fixed-window counter for subject within scope.
// The window start is part of the key, so each window gets a fresh counter.
func RateLimitKey(scope, subject string, window time.Duration, now time.Time) string {
	start := now.Truncate(window).Unix()
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, subject, start)
}
