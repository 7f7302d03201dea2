package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/hendrianz14/tripay-callback-service/internal/api/ack"
)

// PublicRateLimiter limits requests per IP on the public callback route.
// 429 is in the retryable class for the gateway, so shedding load here is
// safe.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			ack.Fail(w, http.StatusTooManyRequests, fmt.Sprintf("rate limit of %d req/s exceeded", rps))
		}),
	)
}
