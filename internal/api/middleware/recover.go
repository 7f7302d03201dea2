package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hendrianz14/tripay-callback-service/internal/api/ack"
)

// RecoverMiddleware converts panics into retryable 500 acknowledgments and
// logs stack context. The gateway redelivers after a 500, which is safe
// because settlement is idempotent.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
						zap.String("trace_id", TraceIDFromContext(r.Context())),
					)
					ack.Fail(w, http.StatusInternalServerError, "unexpected server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
