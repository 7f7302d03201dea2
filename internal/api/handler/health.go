package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hendrianz14/tripay-callback-service/internal/api/ack"
)

// HealthHandler exposes liveness and readiness endpoints.
type HealthHandler struct {
	db    *pgxpool.Pool
	redis redis.Cmdable
}

func NewHealthHandler(db *pgxpool.Pool, redis redis.Cmdable) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Live always reports OK and performs no I/O. The gateway's monitoring and
// the process manager both probe it.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Ready checks dependencies like the database and redis.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if h.db == nil {
		ack.Fail(w, http.StatusServiceUnavailable, "database not configured")
		return
	}
	if err := h.db.Ping(ctx); err != nil {
		ack.Fail(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			ack.Fail(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
